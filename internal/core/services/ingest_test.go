package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-core/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driving"
)

func newIngestFixture() (*IngestService, *memory.DocumentStore, *bruteIndex) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewIngestService(store, index, &fakeEmbedder{}, paragraphChunker{})
	return svc, store, index
}

func TestIngest_StoresDocumentAndChunks(t *testing.T) {
	svc, store, index := newIngestFixture()
	ctx := context.Background()

	docID, err := svc.Ingest(ctx, driving.IngestRequest{
		Title:      "Handbook",
		SourceKind: "file",
		SourceURI:  "file:///tmp/handbook.md",
		Content:    "first paragraph\n\nsecond paragraph\n\nthird paragraph",
		Metadata:   map[string]any{"lang": "en"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, docID)

	doc, err := store.GetDocument(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "Handbook", doc.Title)
	assert.Equal(t, "file", doc.SourceKind)

	chunks, err := store.GetChunks(ctx, docID)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Position)
		assert.Equal(t, docID, chunk.DocumentID)
		assert.NotEmpty(t, chunk.Embedding)
		assert.Equal(t, "en", chunk.Metadata["lang"])
	}
	assert.Equal(t, "first paragraph", chunks[0].Content)

	assert.Equal(t, 3, index.len())
}

func TestIngest_UsesProvidedDocumentID(t *testing.T) {
	svc, _, _ := newIngestFixture()

	docID, err := svc.Ingest(context.Background(), driving.IngestRequest{
		DocumentID: "doc-fixed",
		Title:      "Pinned",
		Content:    "body",
	})
	require.NoError(t, err)
	assert.Equal(t, "doc-fixed", docID)
}

func TestIngest_EmptyContent(t *testing.T) {
	svc, _, _ := newIngestFixture()

	_, err := svc.Ingest(context.Background(), driving.IngestRequest{Title: "Empty"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestIngest_EmbedderFailureLeavesNoTrace(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	svc := NewIngestService(store, index, &fakeEmbedder{err: assert.AnError}, paragraphChunker{})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, driving.IngestRequest{Title: "Doomed", Content: "body"})
	require.ErrorIs(t, err, domain.ErrEmbeddingFailure)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, index.len())
}

func TestIngest_DuplicateDocumentID(t *testing.T) {
	svc, store, _ := newIngestFixture()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, driving.IngestRequest{DocumentID: "doc-1", Title: "First", Content: "body"})
	require.NoError(t, err)

	_, err = svc.Ingest(ctx, driving.IngestRequest{DocumentID: "doc-1", Title: "Second", Content: "body"})
	require.ErrorIs(t, err, domain.ErrDuplicateChunkPosition)

	doc, err := store.GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "First", doc.Title)
}

func TestIngest_WhitespaceOnlyContent(t *testing.T) {
	svc, store, index := newIngestFixture()
	ctx := context.Background()

	_, err := svc.Ingest(ctx, driving.IngestRequest{Title: "Blank", Content: " \n\n\t \n"})
	require.ErrorIs(t, err, domain.ErrInvalidInput)

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Empty(t, docs)
	assert.Equal(t, 0, index.len())
}

func TestIngest_IndexFailureRollsBack(t *testing.T) {
	store := memory.NewDocumentStore()
	index := newBruteIndex()
	index.failAddAt = 2
	svc := NewIngestService(store, index, &fakeEmbedder{}, paragraphChunker{})
	ctx := context.Background()

	_, err := svc.Ingest(ctx, driving.IngestRequest{
		DocumentID: "doc-1",
		Title:      "Partial",
		Content:    "one\n\ntwo\n\nthree",
	})
	require.Error(t, err)

	_, err = store.GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, index.len())
}

func TestDelete_RemovesDocumentAndIndexEntries(t *testing.T) {
	svc, store, index := newIngestFixture()
	ctx := context.Background()

	docID, err := svc.Ingest(ctx, driving.IngestRequest{Title: "Gone", Content: "one\n\ntwo"})
	require.NoError(t, err)
	require.Equal(t, 2, index.len())

	require.NoError(t, svc.Delete(ctx, docID))

	_, err = store.GetDocument(ctx, docID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 0, index.len())
}

func TestDelete_UnknownDocumentIsNoOp(t *testing.T) {
	svc, _, _ := newIngestFixture()

	assert.NoError(t, svc.Delete(context.Background(), "doc-missing"))
}

func TestContent_ReassemblesChunks(t *testing.T) {
	svc, _, _ := newIngestFixture()
	ctx := context.Background()

	docID, err := svc.Ingest(ctx, driving.IngestRequest{
		Title:   "Joined",
		Content: "first part\n\nsecond part",
	})
	require.NoError(t, err)

	content, err := svc.Content(ctx, docID)
	require.NoError(t, err)
	assert.Equal(t, "first part\n\nsecond part", content)
}

func TestContent_UnknownDocument(t *testing.T) {
	svc, _, _ := newIngestFixture()

	_, err := svc.Content(context.Background(), "doc-missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_ReturnsIngestedDocuments(t *testing.T) {
	svc, _, _ := newIngestFixture()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Ingest(ctx, driving.IngestRequest{
			Title:   fmt.Sprintf("Doc %d", i),
			Content: "body",
		})
		require.NoError(t, err)
	}

	docs, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 3)
}

func TestIngest_ConcurrentDocuments(t *testing.T) {
	svc, store, index := newIngestFixture()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, err := svc.Ingest(ctx, driving.IngestRequest{
				DocumentID: fmt.Sprintf("doc-%d", n),
				Title:      fmt.Sprintf("Doc %d", n),
				Content:    "alpha\n\nbeta",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	docs, err := store.ListDocuments(ctx)
	require.NoError(t, err)
	assert.Len(t, docs, 8)
	assert.Equal(t, 16, index.len())
}
