package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-core/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

// IngestService runs the document write path: split the raw text into
// fragments, embed them, persist document and chunks, then index the
// embeddings. Ingestions of different documents run fully in parallel;
// ingestions of the same document id are serialised internally.
type IngestService struct {
	docStore driven.DocumentStore
	index    driven.VectorIndex
	embedder driven.EmbeddingService
	chunker  driven.Chunker

	mu       sync.Mutex
	docLocks map[string]*sync.Mutex
}

// NewIngestService creates a new ingest service.
func NewIngestService(
	docStore driven.DocumentStore,
	index driven.VectorIndex,
	embedder driven.EmbeddingService,
	chunker driven.Chunker,
) *IngestService {
	return &IngestService{
		docStore: docStore,
		index:    index,
		embedder: embedder,
		chunker:  chunker,
		docLocks: make(map[string]*sync.Mutex),
	}
}

// Ingest processes one document and returns its id. Either the document
// and all its chunks are committed and indexed, or nothing remains.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (string, error) {
	if req.Content == "" {
		return "", fmt.Errorf("%w: empty document content", domain.ErrInvalidInput)
	}

	docID := req.DocumentID
	if docID == "" {
		docID = uuid.New().String()
	}

	lock := s.lockDocument(docID)
	lock.Lock()
	defer lock.Unlock()

	// Re-ingesting a live id would collide with the chunk positions the
	// store already holds; replacement goes through Delete first.
	if req.DocumentID != "" {
		_, err := s.docStore.GetDocument(ctx, docID)
		if err == nil {
			return "", fmt.Errorf("%w: document %s is already ingested", domain.ErrDuplicateChunkPosition, docID)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", fmt.Errorf("get document: %w", err)
		}
	}

	fragments := s.chunker.Split(req.Content)
	if len(fragments) == 0 {
		return "", fmt.Errorf("%w: no indexable content in document", domain.ErrInvalidInput)
	}
	logger.Debug("Ingest %s: %d fragments", docID, len(fragments))

	// Embed before any write so an embedder failure or timeout aborts
	// with nothing to roll back.
	texts := make([]string, len(fragments))
	for i, f := range fragments {
		texts[i] = f.Content
	}
	embeddings, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return "", fmt.Errorf("%w: embed %d fragments: %v", domain.ErrEmbeddingFailure, len(texts), err)
	}
	if len(embeddings) != len(fragments) {
		return "", fmt.Errorf("%w: got %d embeddings for %d fragments",
			domain.ErrEmbeddingFailure, len(embeddings), len(fragments))
	}

	now := time.Now().UTC()
	doc := &domain.Document{
		ID:         docID,
		Title:      req.Title,
		SourceKind: req.SourceKind,
		SourceURI:  req.SourceURI,
		Metadata:   req.Metadata,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	chunks := make([]domain.Chunk, len(fragments))
	for i, f := range fragments {
		chunks[i] = domain.Chunk{
			ID:         uuid.New().String(),
			DocumentID: docID,
			Content:    f.Content,
			Position:   i,
			Embedding:  embeddings[i],
			Metadata:   mergeMetadata(req.Metadata, f.Metadata),
			ImageURIs:  f.ImageURIs,
			CreatedAt:  now,
		}
	}

	if err := s.docStore.CreateDocument(ctx, doc); err != nil {
		return "", fmt.Errorf("create document: %w", err)
	}

	if err := s.docStore.AddChunks(ctx, chunks); err != nil {
		s.rollback(ctx, docID, nil)
		return "", fmt.Errorf("add chunks: %w", err)
	}

	// Index entries go in only after the chunk writes are durable; the
	// index must never reference a chunk the store does not hold.
	for i := range chunks {
		if err := s.index.Add(ctx, chunks[i].ID, chunks[i].Embedding); err != nil {
			s.rollback(ctx, docID, chunks[:i])
			return "", fmt.Errorf("index chunk %d: %w", i, err)
		}
	}

	logger.Info("Ingested document %s (%d chunks)", docID, len(chunks))
	return docID, nil
}

// Delete removes a document, its chunks and their index entries.
func (s *IngestService) Delete(ctx context.Context, documentID string) error {
	lock := s.lockDocument(documentID)
	lock.Lock()
	defer lock.Unlock()

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get chunks: %w", err)
	}

	for _, chunk := range chunks {
		if err := s.index.Delete(ctx, chunk.ID); err != nil {
			logger.Warn("Delete %s: drop index entry %s: %v", documentID, chunk.ID, err)
		}
	}

	if err := s.docStore.DeleteDocument(ctx, documentID); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// List returns all ingested documents.
func (s *IngestService) List(ctx context.Context) ([]domain.Document, error) {
	return s.docStore.ListDocuments(ctx)
}

// Content reassembles a document's text from its chunks in position
// order. With an overlapping chunker the seams repeat the overlap; the
// result is the indexed view of the document, not a byte-exact copy of
// the original file.
func (s *IngestService) Content(ctx context.Context, documentID string) (string, error) {
	if _, err := s.docStore.GetDocument(ctx, documentID); err != nil {
		return "", fmt.Errorf("get document: %w", err)
	}

	chunks, err := s.docStore.GetChunks(ctx, documentID)
	if err != nil {
		return "", fmt.Errorf("get chunks: %w", err)
	}

	parts := make([]string, len(chunks))
	for i := range chunks {
		parts[i] = chunks[i].Content
	}
	return strings.Join(parts, "\n\n"), nil
}

// rollback unwinds a partially-committed ingestion: already-indexed
// chunks come out of the index, then the document (cascading to its
// chunks) comes out of the store. Best effort; the original error is
// what surfaces to the caller.
func (s *IngestService) rollback(ctx context.Context, docID string, indexed []domain.Chunk) {
	for _, chunk := range indexed {
		if err := s.index.Delete(ctx, chunk.ID); err != nil {
			logger.Warn("Rollback %s: drop index entry %s: %v", docID, chunk.ID, err)
		}
	}
	if err := s.docStore.DeleteDocument(ctx, docID); err != nil {
		logger.Warn("Rollback %s: delete document: %v", docID, err)
	}
}

// lockDocument returns the mutex serialising operations on one document
// id. Locks are never reclaimed; the map grows with the set of ids seen,
// which is bounded by the number of documents.
func (s *IngestService) lockDocument(docID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.docLocks[docID]
	if !ok {
		lock = &sync.Mutex{}
		s.docLocks[docID] = lock
	}
	return lock
}

// mergeMetadata overlays fragment metadata on document metadata without
// mutating either input.
func mergeMetadata(docMeta, fragMeta map[string]any) map[string]any {
	if len(docMeta) == 0 && len(fragMeta) == 0 {
		return nil
	}
	merged := make(map[string]any, len(docMeta)+len(fragMeta))
	for k, v := range docMeta {
		merged[k] = v
	}
	for k, v := range fragMeta {
		merged[k] = v
	}
	return merged
}
