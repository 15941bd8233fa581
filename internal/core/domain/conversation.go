package domain

import "time"

// Role identifies the author of a message.
type Role string

const (
	// RoleUser marks a message written by the end user.
	RoleUser Role = "user"

	// RoleAssistant marks a generated answer.
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two permitted values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation is a persistent grouping of exchanged messages, correlated
// to client requests by an externally supplied session token.
type Conversation struct {
	// ID is the unique identifier for the conversation.
	ID string

	// SessionToken correlates client requests to this conversation.
	// One token maps to exactly one conversation.
	SessionToken string

	// UserID optionally links the conversation to a user account.
	UserID string

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the conversation was created.
	CreatedAt time.Time
}

// Message is one turn within a conversation. Messages are append-only.
type Message struct {
	// ID is the unique identifier for the message.
	ID string

	// ConversationID links to the owning Conversation.
	ConversationID string

	// Role is either RoleUser or RoleAssistant.
	Role Role

	// Content is the message text.
	Content string

	// Embedding optionally holds a vector of the message's own content.
	Embedding []float32

	// RelevantChunkIDs lists the chunks whose content grounded an
	// assistant answer, in rank order. Empty for user messages.
	// These are soft references: a chunk may be deleted later and the
	// ids kept here still record the provenance of the answer.
	RelevantChunkIDs []string

	// CreatedAt is when the message was appended.
	CreatedAt time.Time
}
