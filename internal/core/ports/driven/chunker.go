package driven

import "github.com/custodia-labs/sercha-core/internal/core/domain"

// Chunker splits raw document text into an ordered sequence of non-empty
// fragments. The core is agnostic to the splitting policy (fixed-size
// with overlap, sentence-aware, etc); it only requires order and
// non-emptiness.
type Chunker interface {
	// Split returns the fragments of text in document order. Empty input
	// yields no fragments.
	Split(text string) []domain.Fragment
}
