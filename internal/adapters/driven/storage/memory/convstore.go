package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// Ensure ConversationStore implements the interface.
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore is an in-memory implementation of driven.ConversationStore.
type ConversationStore struct {
	mu            sync.RWMutex
	conversations map[string]domain.Conversation
	byToken       map[string]string // session token -> conversation ID
	messages      map[string][]domain.Message
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		conversations: make(map[string]domain.Conversation),
		byToken:       make(map[string]string),
		messages:      make(map[string][]domain.Message),
	}
}

// CreateConversation stores a new conversation record.
func (s *ConversationStore) CreateConversation(_ context.Context, conv *domain.Conversation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.byToken[conv.SessionToken]; exists {
		return fmt.Errorf("%w: session token already in use", domain.ErrInvalidInput)
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	s.conversations[conv.ID] = *conv
	s.byToken[conv.SessionToken] = conv.ID
	return nil
}

// GetConversation retrieves a conversation by ID.
func (s *ConversationStore) GetConversation(_ context.Context, id string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &conv, nil
}

// GetBySessionToken retrieves the conversation for a session token.
func (s *ConversationStore) GetBySessionToken(_ context.Context, token string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, domain.ErrNotFound
	}
	conv := s.conversations[id]
	return &conv, nil
}

// AppendMessage stores one message.
func (s *ConversationStore) AppendMessage(_ context.Context, msg *domain.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.conversations[msg.ConversationID]; !ok {
		return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, msg.ConversationID)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	s.messages[msg.ConversationID] = append(s.messages[msg.ConversationID], *msg)
	return nil
}

// ListMessages returns messages oldest first. When limit > 0 only the
// most recent limit messages are returned, still oldest first.
func (s *ConversationStore) ListMessages(
	_ context.Context,
	conversationID string,
	limit int,
) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]domain.Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
