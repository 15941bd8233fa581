package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-core/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// seedChunk stores a chunk and indexes its embedding.
func seedChunk(t *testing.T, store *memory.DocumentStore, index *bruteIndex, docID, chunkID, content string, position int, embedding []float32) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.GetDocument(ctx, docID); err != nil {
		require.NoError(t, store.CreateDocument(ctx, &domain.Document{
			ID:        docID,
			Title:     "doc " + docID,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}))
	}
	require.NoError(t, store.AddChunks(ctx, []domain.Chunk{{
		ID:         chunkID,
		DocumentID: docID,
		Content:    content,
		Position:   position,
		Embedding:  embedding,
		CreatedAt:  time.Now().UTC(),
	}}))
	require.NoError(t, index.Add(ctx, chunkID, embedding))
}

func TestRetrieve_RanksBySimilarity(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 0)

	seedChunk(t, store, index, "doc-1", "chunk-a", "exact match", 0, []float32{1, 0, 0})
	seedChunk(t, store, index, "doc-1", "chunk-b", "close match", 1, []float32{0.9, 0.1, 0})
	seedChunk(t, store, index, "doc-1", "chunk-c", "unrelated", 2, []float32{0, 0, 1})

	results, err := svc.Retrieve(context.Background(), []float32{1, 0, 0}, domain.RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, results, 2) // chunk-c falls below the default threshold
	assert.Equal(t, "chunk-a", results[0].ChunkID)
	assert.Equal(t, "chunk-b", results[1].ChunkID)
	assert.InDelta(t, 1.0, results[0].Similarity, 1e-6)
	assert.Greater(t, results[0].Similarity, results[1].Similarity)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := NewRetrievalService(memory.NewDocumentStore(), newBruteIndex(), nil, 0)

	_, err := svc.Retrieve(context.Background(), nil, domain.RetrieveOptions{})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestRetrieve_NoIndex(t *testing.T) {
	svc := NewRetrievalService(memory.NewDocumentStore(), nil, nil, 0)

	_, err := svc.Retrieve(context.Background(), []float32{1, 0, 0}, domain.RetrieveOptions{})
	assert.ErrorIs(t, err, domain.ErrIndexUnavailable)
}

func TestRetrieve_ExplicitZeroThreshold(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 0)

	seedChunk(t, store, index, "doc-1", "chunk-a", "on topic", 0, []float32{1, 0, 0})
	seedChunk(t, store, index, "doc-1", "chunk-b", "off topic", 1, []float32{0, 1, 0})

	// Zero threshold set explicitly admits orthogonal chunks.
	results, err := svc.Retrieve(context.Background(), []float32{1, 0, 0},
		domain.RetrieveOptions{}.WithThreshold(0))
	require.NoError(t, err)
	assert.Len(t, results, 2)

	// The implicit default does not.
	results, err = svc.Retrieve(context.Background(), []float32{1, 0, 0}, domain.RetrieveOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestRetrieve_DocumentFilter(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 0)

	seedChunk(t, store, index, "doc-1", "chunk-a", "from one", 0, []float32{1, 0, 0})
	seedChunk(t, store, index, "doc-2", "chunk-b", "from two", 0, []float32{0.99, 0.14, 0})

	results, err := svc.Retrieve(context.Background(), []float32{1, 0, 0},
		domain.RetrieveOptions{DocumentID: "doc-2"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "chunk-b", results[0].ChunkID)
	assert.Equal(t, "doc-2", results[0].DocumentID)
}

func TestRetrieve_OversampleRescuesFilteredResults(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 4)

	// Three near-identical chunks of doc-1 crowd the top of the raw
	// ranking; the doc-2 chunk only surfaces because the index is asked
	// for more than matchCount candidates.
	seedChunk(t, store, index, "doc-1", "chunk-a", "noise", 0, []float32{1, 0, 0})
	seedChunk(t, store, index, "doc-1", "chunk-b", "noise", 1, []float32{0.99, 0.01, 0})
	seedChunk(t, store, index, "doc-1", "chunk-c", "noise", 2, []float32{0.98, 0.02, 0})
	seedChunk(t, store, index, "doc-2", "chunk-d", "wanted", 0, []float32{0.9, 0.1, 0})

	results, err := svc.Retrieve(context.Background(), []float32{1, 0, 0},
		domain.RetrieveOptions{MatchCount: 1, DocumentID: "doc-2"})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "chunk-d", results[0].ChunkID)
}

func TestRetrieve_TieBreaksByChunkID(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 0)

	vec := []float32{1, 0, 0}
	seedChunk(t, store, index, "doc-1", "chunk-z", "same", 0, vec)
	seedChunk(t, store, index, "doc-1", "chunk-a", "same", 1, vec)
	seedChunk(t, store, index, "doc-1", "chunk-m", "same", 2, vec)

	results, err := svc.Retrieve(context.Background(), vec, domain.RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, results, 3)
	assert.Equal(t, "chunk-a", results[0].ChunkID)
	assert.Equal(t, "chunk-m", results[1].ChunkID)
	assert.Equal(t, "chunk-z", results[2].ChunkID)
}

func TestRetrieve_MatchCountTruncates(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 0)

	for i, id := range []string{"chunk-a", "chunk-b", "chunk-c", "chunk-d"} {
		seedChunk(t, store, index, "doc-1", id, "content", i, []float32{1, float32(i) * 0.01, 0})
	}

	results, err := svc.Retrieve(context.Background(), []float32{1, 0, 0},
		domain.RetrieveOptions{MatchCount: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestRetrieve_DropsDanglingIndexEntries(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewRetrievalService(store, index, nil, 0)

	seedChunk(t, store, index, "doc-1", "chunk-a", "kept", 0, []float32{1, 0, 0})
	// Indexed but never stored; simulates a chunk deleted after indexing.
	require.NoError(t, index.Add(context.Background(), "chunk-ghost", []float32{1, 0, 0}))

	results, err := svc.Retrieve(context.Background(), []float32{1, 0, 0}, domain.RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].ChunkID)
}

func TestSearch_EmbedsQuery(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	embedder := &fakeEmbedder{vectors: map[string][]float32{
		"where is the treasure": {0, 1, 0},
	}}
	svc := NewRetrievalService(store, index, embedder, 0)

	seedChunk(t, store, index, "doc-1", "chunk-a", "the treasure is buried", 0, []float32{0, 1, 0})
	seedChunk(t, store, index, "doc-1", "chunk-b", "unrelated", 1, []float32{1, 0, 0})

	results, err := svc.Search(context.Background(), "where is the treasure", domain.RetrieveOptions{})
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "chunk-a", results[0].ChunkID)
}

func TestSearch_EmbedderFailure(t *testing.T) {
	embedder := &fakeEmbedder{err: assert.AnError}
	svc := NewRetrievalService(memory.NewDocumentStore(), newBruteIndex(), embedder, 0)

	_, err := svc.Search(context.Background(), "anything", domain.RetrieveOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}

func TestSearch_NoEmbedder(t *testing.T) {
	svc := NewRetrievalService(memory.NewDocumentStore(), newBruteIndex(), nil, 0)

	_, err := svc.Search(context.Background(), "anything", domain.RetrieveOptions{})
	assert.ErrorIs(t, err, domain.ErrEmbeddingFailure)
}
