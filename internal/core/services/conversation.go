package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

// Ensure ConversationService implements the interface.
var _ driving.ConversationService = (*ConversationService)(nil)

// ConversationService is the ledger of sessions and turns. Appends on
// the same conversation are serialised so observed creation times are
// monotonically non-decreasing; different conversations do not contend.
type ConversationService struct {
	store    driven.ConversationStore
	embedder driven.EmbeddingService // optional; nil disables message embeddings

	mu        sync.Mutex
	convLocks map[string]*sync.Mutex
}

// NewConversationService creates a new conversation service. The
// embedder is optional: when present, message content is embedded and
// stored alongside the message, best effort.
func NewConversationService(store driven.ConversationStore, embedder driven.EmbeddingService) *ConversationService {
	return &ConversationService{
		store:     store,
		embedder:  embedder,
		convLocks: make(map[string]*sync.Mutex),
	}
}

// GetOrCreate resolves the conversation for a session token, creating it
// lazily on first use.
func (s *ConversationService) GetOrCreate(
	ctx context.Context, sessionToken, userID string,
) (*domain.Conversation, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: empty session token", domain.ErrInvalidInput)
	}

	// Serialise on the token so two first-requests for the same session
	// cannot both create a conversation.
	lock := s.lockKey("token:" + sessionToken)
	lock.Lock()
	defer lock.Unlock()

	conv, err := s.store.GetBySessionToken(ctx, sessionToken)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	conv = &domain.Conversation{
		ID:           uuid.New().String(),
		SessionToken: sessionToken,
		UserID:       userID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.store.CreateConversation(ctx, conv); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}

	logger.Debug("Created conversation %s for session %s", conv.ID, sessionToken)
	return conv, nil
}

// Get resolves the conversation for a session token without creating one.
func (s *ConversationService) Get(ctx context.Context, sessionToken string) (*domain.Conversation, error) {
	if sessionToken == "" {
		return nil, fmt.Errorf("%w: empty session token", domain.ErrInvalidInput)
	}
	return s.store.GetBySessionToken(ctx, sessionToken)
}

// Append records one turn in a conversation.
func (s *ConversationService) Append(
	ctx context.Context, conversationID string, role domain.Role, content string, relevantChunkIDs []string,
) (*domain.Message, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidRole, role)
	}
	if role == domain.RoleUser && len(relevantChunkIDs) > 0 {
		return nil, fmt.Errorf("%w: relevant chunks are only recorded on assistant turns", domain.ErrInvalidInput)
	}

	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}

	// The message's own embedding is provenance enrichment, never a
	// reason to lose the turn.
	var embedding []float32
	if s.embedder != nil {
		var err error
		embedding, err = s.embedder.Embed(ctx, content)
		if err != nil {
			logger.Warn("Append: embed message content: %v", err)
			embedding = nil
		}
	}

	lock := s.lockKey("conv:" + conversationID)
	lock.Lock()
	defer lock.Unlock()

	msg := &domain.Message{
		ID:               uuid.New().String(),
		ConversationID:   conversationID,
		Role:             role,
		Content:          content,
		Embedding:        embedding,
		RelevantChunkIDs: relevantChunkIDs,
		CreatedAt:        time.Now().UTC(),
	}
	if err := s.store.AppendMessage(ctx, msg); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

// History returns the conversation's messages, oldest first.
func (s *ConversationService) History(
	ctx context.Context, conversationID string, limit int,
) ([]domain.Message, error) {
	msgs, err := s.store.ListMessages(ctx, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return msgs, nil
}

// lockKey returns the mutex for a serialisation key, creating it on
// first use.
func (s *ConversationService) lockKey(key string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.convLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.convLocks[key] = lock
	}
	return lock
}
