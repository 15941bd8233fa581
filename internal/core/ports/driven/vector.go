package driven

import "context"

// VectorIndex provides approximate nearest-neighbour search over chunk
// embeddings using cosine similarity. The index trades perfect recall
// for sub-linear query cost; occasionally missing a true neighbour is
// permitted and tunable, not a correctness bug.
type VectorIndex interface {
	// Add inserts a vector for the given chunk ID. Adding an id that is
	// already present with the same vector is a no-op.
	Add(ctx context.Context, chunkID string, embedding []float32) error

	// Delete removes a vector from the index. Deleting an unknown id is
	// a no-op.
	Delete(ctx context.Context, chunkID string) error

	// Search finds the k nearest neighbours to the query vector, ordered
	// by descending similarity.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Close releases resources.
	Close() error
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Similarity is the cosine similarity score in [-1, 1].
	Similarity float64
}
