package services

import (
	"context"
	"fmt"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

// Ensure ChatService implements the interface.
var _ driving.ChatService = (*ChatService)(nil)

// DefaultHistoryLimit is the number of recent turns handed to the
// generator as conversational context.
const DefaultHistoryLimit = 6

// ChatService is the top-level question-answering coordinator: it
// resolves the conversation, records the user turn, retrieves evidence,
// calls the generator and records the grounded assistant turn.
type ChatService struct {
	conversations driving.ConversationService
	retrieval     driving.RetrievalService
	generator     driven.Generator
	historyLimit  int
}

// NewChatService creates a new chat service. A historyLimit <= 0 selects
// DefaultHistoryLimit.
func NewChatService(
	conversations driving.ConversationService,
	retrieval driving.RetrievalService,
	generator driven.Generator,
	historyLimit int,
) *ChatService {
	if historyLimit <= 0 {
		historyLimit = DefaultHistoryLimit
	}
	return &ChatService{
		conversations: conversations,
		retrieval:     retrieval,
		generator:     generator,
		historyLimit:  historyLimit,
	}
}

// Answer runs one question/answer turn for the session.
func (s *ChatService) Answer(
	ctx context.Context, sessionToken, question string, opts domain.RetrieveOptions,
) (*domain.Answer, error) {
	if question == "" {
		return nil, fmt.Errorf("%w: empty question", domain.ErrInvalidInput)
	}

	logger.Section("Answer")
	conv, err := s.conversations.GetOrCreate(ctx, sessionToken, "")
	if err != nil {
		return nil, err
	}

	// The user turn is recorded before anything slow or fallible runs,
	// so a retrieval or generation failure still leaves it in the
	// ledger.
	if _, err := s.conversations.Append(ctx, conv.ID, domain.RoleUser, question, nil); err != nil {
		return nil, err
	}

	history, err := s.conversations.History(ctx, conv.ID, s.historyLimit)
	if err != nil {
		return nil, err
	}

	evidence, err := s.retrieval.Search(ctx, question, opts)
	if err != nil {
		return nil, err
	}
	logger.Info("Retrieved %d evidence chunks", len(evidence))

	answer, err := s.generator.Answer(ctx, question, history, evidence)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrGenerationFailure, err)
	}

	chunkIDs := make([]string, len(evidence))
	for i := range evidence {
		chunkIDs[i] = evidence[i].ChunkID
	}
	if _, err := s.conversations.Append(ctx, conv.ID, domain.RoleAssistant, answer, chunkIDs); err != nil {
		return nil, err
	}

	return &domain.Answer{
		ConversationID: conv.ID,
		Text:           answer,
		Evidence:       evidence,
	}, nil
}

// History returns the session's recorded messages, oldest first.
// Unknown session tokens yield domain.ErrNotFound rather than an empty
// conversation being created.
func (s *ChatService) History(
	ctx context.Context, sessionToken string, limit int,
) ([]domain.Message, error) {
	conv, err := s.conversations.Get(ctx, sessionToken)
	if err != nil {
		return nil, err
	}
	return s.conversations.History(ctx, conv.ID, limit)
}
