package sqlite

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-core/internal/core/domain"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()

	tempDir, err := os.MkdirTemp("", "sercha-test-*")
	require.NoError(t, err)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	require.NotNil(t, store)

	cleanup := func() {
		assert.NoError(t, store.Close())
		assert.NoError(t, os.RemoveAll(tempDir))
	}

	return store, cleanup
}

// createTestDocument creates a document to satisfy foreign key constraints.
func createTestDocument(t *testing.T, store *Store, docID string) {
	t.Helper()
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:         docID,
		Title:      "Test Document " + docID,
		SourceKind: "file",
		SourceURI:  "file:///test/" + docID,
		Metadata:   map[string]any{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.DocumentStore().CreateDocument(ctx, doc))
}

// createTestConversation creates a conversation keyed by the given token.
func createTestConversation(t *testing.T, store *Store, convID, token string) {
	t.Helper()
	ctx := context.Background()
	conv := &domain.Conversation{
		ID:           convID,
		SessionToken: token,
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, store.ConversationStore().CreateConversation(ctx, conv))
}

// ==================== Store Creation Tests ====================

func TestNewStore_CreatesDatabase(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := os.Stat(store.Path())
	assert.NoError(t, err)
}

func TestNewStore_Reopens(t *testing.T) {
	tempDir, err := os.MkdirTemp("", "sercha-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tempDir)

	store, err := NewStore(tempDir)
	require.NoError(t, err)
	createTestDocument(t, store, "doc-1")
	require.NoError(t, store.Close())

	// Migrations must be idempotent across reopens.
	store, err = NewStore(tempDir)
	require.NoError(t, err)
	defer store.Close()

	doc, err := store.DocumentStore().GetDocument(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Test Document doc-1", doc.Title)
}

// ==================== Document Store Tests ====================

func TestDocumentStore_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	doc := &domain.Document{
		ID:         "doc-1",
		Title:      "Release Notes",
		SourceKind: "file",
		SourceURI:  "file:///notes.md",
		Metadata:   map[string]any{"lang": "en"},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	require.NoError(t, store.DocumentStore().CreateDocument(ctx, doc))

	got, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Release Notes", got.Title)
	assert.Equal(t, "file", got.SourceKind)
	assert.Equal(t, "en", got.Metadata["lang"])
}

func TestDocumentStore_CreateDuplicateID(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestDocument(t, store, "doc-1")

	err := store.DocumentStore().CreateDocument(context.Background(), &domain.Document{ID: "doc-1"})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestDocumentStore_GetDocumentNotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.DocumentStore().GetDocument(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDocumentStore_AddAndGetChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestDocument(t, store, "doc-1")

	chunks := []domain.Chunk{
		{ID: "chunk-1", DocumentID: "doc-1", Content: "first", Position: 0,
			Embedding: []float32{0.1, 0.2, 0.3}},
		{ID: "chunk-2", DocumentID: "doc-1", Content: "second", Position: 1,
			Embedding: []float32{0.4, 0.5, 0.6}, Metadata: map[string]any{"page": float64(2)}},
	}
	require.NoError(t, store.DocumentStore().AddChunks(ctx, chunks))

	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "chunk-1", got[0].ID)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got[0].Embedding)
	assert.Equal(t, "chunk-2", got[1].ID)
	assert.Equal(t, float64(2), got[1].Metadata["page"])
}

func TestDocumentStore_AddChunks_DuplicatePosition(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestDocument(t, store, "doc-1")
	require.NoError(t, store.DocumentStore().AddChunks(ctx, []domain.Chunk{
		{ID: "chunk-1", DocumentID: "doc-1", Content: "first", Position: 0},
	}))

	err := store.DocumentStore().AddChunks(ctx, []domain.Chunk{
		{ID: "chunk-2", DocumentID: "doc-1", Content: "other", Position: 0},
		{ID: "chunk-3", DocumentID: "doc-1", Content: "third", Position: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDuplicateChunkPosition)

	// The failed batch must leave no partial writes behind.
	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestDocumentStore_GetChunksByIDs(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestDocument(t, store, "doc-1")
	require.NoError(t, store.DocumentStore().AddChunks(ctx, []domain.Chunk{
		{ID: "chunk-a", DocumentID: "doc-1", Content: "a", Position: 0},
		{ID: "chunk-b", DocumentID: "doc-1", Content: "b", Position: 1},
		{ID: "chunk-c", DocumentID: "doc-1", Content: "c", Position: 2},
	}))

	// Input order is preserved; unknown ids are omitted.
	got, err := store.DocumentStore().GetChunksByIDs(ctx, []string{"chunk-c", "missing", "chunk-a"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "chunk-c", got[0].ID)
	assert.Equal(t, "chunk-a", got[1].ID)
}

func TestDocumentStore_GetChunksByIDs_Empty(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	got, err := store.DocumentStore().GetChunksByIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestDocumentStore_DeleteDocument_CascadesChunks(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestDocument(t, store, "doc-1")
	require.NoError(t, store.DocumentStore().AddChunks(ctx, []domain.Chunk{
		{ID: "chunk-1", DocumentID: "doc-1", Content: "text", Position: 0},
	}))

	require.NoError(t, store.DocumentStore().DeleteDocument(ctx, "doc-1"))

	_, err := store.DocumentStore().GetDocument(ctx, "doc-1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := store.DocumentStore().GetChunks(ctx, "doc-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	// Deleting again is a no-op.
	assert.NoError(t, store.DocumentStore().DeleteDocument(ctx, "doc-1"))
}

func TestDocumentStore_ListDocuments(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestDocument(t, store, "doc-1")
	createTestDocument(t, store, "doc-2")

	docs, err := store.DocumentStore().ListDocuments(context.Background())
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

// ==================== Conversation Store Tests ====================

func TestConversationStore_CreateAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestConversation(t, store, "conv-1", "token-1")

	conv, err := store.ConversationStore().GetConversation(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "token-1", conv.SessionToken)

	conv, err = store.ConversationStore().GetBySessionToken(ctx, "token-1")
	require.NoError(t, err)
	assert.Equal(t, "conv-1", conv.ID)
}

func TestConversationStore_GetBySessionToken_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.ConversationStore().GetBySessionToken(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationStore_DuplicateSessionToken(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	createTestConversation(t, store, "conv-1", "token-1")

	err := store.ConversationStore().CreateConversation(context.Background(), &domain.Conversation{
		ID:           "conv-2",
		SessionToken: "token-1",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConversationStore_AppendMessage_UnknownConversation(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	err := store.ConversationStore().AppendMessage(context.Background(), &domain.Message{
		ID:             "msg-1",
		ConversationID: "missing",
		Role:           domain.RoleUser,
		Content:        "hello",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConversationStore_ListMessages(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestConversation(t, store, "conv-1", "token-1")

	base := time.Now().UTC().Truncate(time.Second)
	convStore := store.ConversationStore()
	for i, content := range []string{"one", "two", "three", "four"} {
		role := domain.RoleUser
		if i%2 == 1 {
			role = domain.RoleAssistant
		}
		require.NoError(t, convStore.AppendMessage(ctx, &domain.Message{
			ID:             "msg-" + content,
			ConversationID: "conv-1",
			Role:           role,
			Content:        content,
			CreatedAt:      base.Add(time.Duration(i) * time.Second),
		}))
	}

	// Full history, oldest first.
	msgs, err := convStore.ListMessages(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, "one", msgs[0].Content)
	assert.Equal(t, "four", msgs[3].Content)

	// Windowed history keeps the newest rows but stays chronological.
	msgs, err = convStore.ListMessages(ctx, "conv-1", 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "three", msgs[0].Content)
	assert.Equal(t, "four", msgs[1].Content)
}

func TestConversationStore_MessageRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	createTestConversation(t, store, "conv-1", "token-1")

	msg := &domain.Message{
		ID:               "msg-1",
		ConversationID:   "conv-1",
		Role:             domain.RoleAssistant,
		Content:          "answer",
		Embedding:        []float32{0.5, -0.25},
		RelevantChunkIDs: []string{"chunk-2", "chunk-1"},
	}
	require.NoError(t, store.ConversationStore().AppendMessage(ctx, msg))

	msgs, err := store.ConversationStore().ListMessages(ctx, "conv-1", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, domain.RoleAssistant, msgs[0].Role)
	assert.Equal(t, []float32{0.5, -0.25}, msgs[0].Embedding)
	assert.Equal(t, []string{"chunk-2", "chunk-1"}, msgs[0].RelevantChunkIDs)
}

// ==================== Helper Tests ====================

func TestFloat32SliceRoundTrip(t *testing.T) {
	in := []float32{0, 1.5, -2.25, 3.14159}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	assert.Equal(t, in, out)

	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}

func TestIsBusy(t *testing.T) {
	assert.False(t, isBusy(nil))
	assert.False(t, isBusy(context.Canceled))
	assert.True(t, isBusy(errors.New("database is locked (5) (SQLITE_BUSY)")))
}
