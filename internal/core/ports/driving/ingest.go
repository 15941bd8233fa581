package driving

import (
	"context"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// IngestRequest describes one document to ingest.
type IngestRequest struct {
	// DocumentID optionally fixes the document id. Empty means a new id
	// is generated. Supplying an id of an existing document without
	// deleting it first fails with domain.ErrDuplicateChunkPosition.
	DocumentID string

	// Title is the human-readable title.
	Title string

	// SourceKind tags the origin, e.g. "file", "web", "manual".
	SourceKind string

	// SourceURI is the original location.
	SourceURI string

	// Content is the full raw text to be split and embedded.
	Content string

	// Metadata contains arbitrary key-value pairs copied onto the
	// document and its chunks.
	Metadata map[string]any
}

// IngestService coordinates the document write path: split, embed, store,
// index - atomically at document granularity.
type IngestService interface {
	// Ingest runs the pipeline for one document and returns its id.
	// On failure no document, chunk or index entry remains behind.
	Ingest(ctx context.Context, req IngestRequest) (string, error)

	// Delete removes a document, its chunks and its index entries.
	// Deleting an unknown id is a no-op.
	Delete(ctx context.Context, documentID string) error

	// List returns all ingested documents.
	List(ctx context.Context) ([]domain.Document, error)

	// Content returns a document's text reassembled from its stored
	// chunks in position order. Unknown ids fail with domain.ErrNotFound.
	Content(ctx context.Context, documentID string) (string, error)
}
