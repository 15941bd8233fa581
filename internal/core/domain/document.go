package domain

import "time"

// Document represents one ingested source text.
// The full text is not stored on the document itself; it lives split
// across the document's chunks.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// Title is the human-readable title.
	Title string

	// SourceKind is a free-form tag describing where the document came
	// from, e.g. "file", "web" or "manual".
	SourceKind string

	// SourceURI is the original location (file path, URL, etc).
	SourceURI string

	// Metadata contains arbitrary key-value pairs attached by the caller.
	Metadata map[string]any

	// CreatedAt is when the document was first ingested.
	CreatedAt time.Time

	// UpdatedAt is when the document was last updated.
	UpdatedAt time.Time
}

// Chunk is one contiguous fragment of a document's text, carrying its
// own embedding for similarity search.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the owning Document.
	DocumentID string

	// Content is the fragment text.
	Content string

	// Position is the zero-based sequence index within the document.
	// The pair (DocumentID, Position) is unique.
	Position int

	// Embedding is the vector representation used for similarity search.
	Embedding []float32

	// Metadata contains chunk-specific key-value pairs, e.g. page number.
	Metadata map[string]any

	// ImageURIs lists image resources associated with this fragment.
	ImageURIs []string

	// CreatedAt is when the chunk was written.
	CreatedAt time.Time
}

// Fragment is a piece of text produced by a Chunker before it becomes a
// stored Chunk. Fragments are ordered and never empty.
type Fragment struct {
	// Content is the fragment text.
	Content string

	// Metadata holds positional metadata attached by the chunker.
	Metadata map[string]any

	// ImageURIs lists image resources tied to this fragment.
	ImageURIs []string
}
