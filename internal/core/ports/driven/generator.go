package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// Generator turns a question, the recent conversation history and the
// retrieved evidence into an answer. The produced text is opaque to the
// core; it is recorded verbatim. The core never retries a failed
// generation - retry policy belongs to the caller.
type Generator interface {
	// Answer produces the answer text for a question. Evidence may be
	// empty; the implementation decides how to answer without grounding.
	Answer(ctx context.Context, question string, history []domain.Message, evidence []domain.Evidence) (string, error)

	// ModelName returns the name of the generation model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
