package driven

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// DocumentStore persists documents and their chunks.
// Backed by SQLite; an in-memory implementation exists for tests.
type DocumentStore interface {
	// CreateDocument stores a new document record.
	CreateDocument(ctx context.Context, doc *domain.Document) error

	// AddChunks stores chunks for a document. Positions must already be
	// assigned; writing to an occupied (document, position) slot fails
	// with domain.ErrDuplicateChunkPosition and leaves no partial batch.
	AddChunks(ctx context.Context, chunks []domain.Chunk) error

	// GetDocument retrieves a document by ID.
	GetDocument(ctx context.Context, id string) (*domain.Document, error)

	// GetChunks retrieves all chunks for a document, ordered by position.
	GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error)

	// GetChunksByIDs retrieves the chunks with the given ids, preserving
	// the input order. Missing ids are silently omitted, not an error.
	GetChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error)

	// DeleteDocument removes a document and all its chunks. Deleting an
	// unknown id is a no-op.
	DeleteDocument(ctx context.Context, id string) error

	// ListDocuments returns all stored documents.
	ListDocuments(ctx context.Context) ([]domain.Document, error)
}
