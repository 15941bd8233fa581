package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// ConversationStore persists conversations and their messages.
// Messages are append-only; the store never mutates or deletes them.
type ConversationStore interface {
	// CreateConversation stores a new conversation record.
	CreateConversation(ctx context.Context, conv *domain.Conversation) error

	// GetConversation retrieves a conversation by ID.
	GetConversation(ctx context.Context, id string) (*domain.Conversation, error)

	// GetBySessionToken retrieves the conversation for a session token.
	// Returns domain.ErrNotFound when no conversation exists yet.
	GetBySessionToken(ctx context.Context, token string) (*domain.Conversation, error)

	// AppendMessage stores one message. Fails with domain.ErrNotFound
	// when the owning conversation does not exist.
	AppendMessage(ctx context.Context, msg *domain.Message) error

	// ListMessages returns messages for a conversation ordered by
	// creation time ascending. When limit > 0 only the most recent limit
	// messages are returned, still oldest first.
	ListMessages(ctx context.Context, conversationID string, limit int) ([]domain.Message, error)
}
