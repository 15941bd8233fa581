// Package chunker provides fixed-size text chunking with overlap.
package chunker

import (
	"strings"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = 700

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = 100

// Ensure Fixed implements the interface.
var _ driven.Chunker = (*Fixed)(nil)

// Fixed splits text into fixed-size fragments with overlap between
// consecutive fragments, so sentences cut at a boundary still appear
// whole in one of the two neighbours.
type Fixed struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker.
type Option func(*Fixed)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(c *Fixed) {
		if size > 0 {
			c.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Fixed) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a new fixed-size chunker with the given options.
func New(opts ...Option) *Fixed {
	c := &Fixed{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Ensure overlap doesn't exceed chunk size
	if c.overlap >= c.chunkSize {
		c.overlap = c.chunkSize / 4
	}

	return c
}

// Split divides text into ordered fragments. Sizes are counted in
// runes, not bytes, so multibyte text never splits mid-character.
// Fragments that trim to nothing are skipped.
func (c *Fixed) Split(text string) []domain.Fragment {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	total := len(runes)
	step := c.chunkSize - c.overlap

	fragments := make([]domain.Fragment, 0, total/step+1)
	for start := 0; start < total; start += step {
		end := start + c.chunkSize
		if end > total {
			end = total
		}

		content := strings.TrimSpace(string(runes[start:end]))
		if content != "" {
			fragments = append(fragments, domain.Fragment{Content: content})
		}

		if end == total {
			break
		}
	}

	return fragments
}

// ChunkSize returns the configured chunk size.
func (c *Fixed) ChunkSize() int {
	return c.chunkSize
}

// Overlap returns the configured overlap.
func (c *Fixed) Overlap() int {
	return c.overlap
}
