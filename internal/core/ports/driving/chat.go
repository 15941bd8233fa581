package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// ChatService answers questions within a session-scoped conversation,
// grounding each answer in retrieved evidence and recording both turns.
type ChatService interface {
	// Answer runs one question/answer turn for the session. The user
	// message is recorded before generation starts, so a generation
	// failure still leaves the question in the ledger.
	Answer(ctx context.Context, sessionToken, question string, opts domain.RetrieveOptions) (*domain.Answer, error)

	// History returns the session's messages, oldest first. When
	// limit > 0 only the most recent limit messages are returned.
	History(ctx context.Context, sessionToken string, limit int) ([]domain.Message, error)
}

// ConversationService is the ledger of sessions and turns.
type ConversationService interface {
	// GetOrCreate resolves the conversation for a session token,
	// creating it on first use. Subsequent calls with the same token
	// return the same conversation.
	GetOrCreate(ctx context.Context, sessionToken, userID string) (*domain.Conversation, error)

	// Get resolves the conversation for a session token without creating
	// one. Returns domain.ErrNotFound for unknown tokens.
	Get(ctx context.Context, sessionToken string) (*domain.Conversation, error)

	// Append records one turn. Role must be user or assistant;
	// relevantChunkIDs is only meaningful for assistant turns and must
	// be empty for user turns.
	Append(ctx context.Context, conversationID string, role domain.Role, content string, relevantChunkIDs []string) (*domain.Message, error)

	// History returns messages oldest first. When limit > 0 only the
	// most recent limit messages are returned.
	History(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}
