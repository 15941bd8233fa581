package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrDuplicateChunkPosition indicates a chunk write collided with an
	// already-occupied (document, position) slot. Callers must delete a
	// document before re-ingesting it.
	ErrDuplicateChunkPosition = errors.New("duplicate chunk position")

	// ErrInvalidRole indicates a message role outside {user, assistant}.
	ErrInvalidRole = errors.New("invalid message role")

	// ErrEmbeddingFailure indicates the embedding service errored or
	// timed out. Embeddings are never silently substituted.
	ErrEmbeddingFailure = errors.New("embedding failure")

	// ErrGenerationFailure indicates the generator errored or timed out.
	// The user's message remains recorded when this is returned.
	ErrGenerationFailure = errors.New("generation failure")

	// ErrStorage indicates an underlying durable-store error that
	// survived the bounded internal retries.
	ErrStorage = errors.New("storage failure")

	// ErrIndexUnavailable indicates the vector index is not configured.
	ErrIndexUnavailable = errors.New("vector index unavailable")
)
