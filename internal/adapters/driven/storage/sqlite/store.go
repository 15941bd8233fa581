package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/sercha-core/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/sercha-core/internal/core/domain"
	"github.com/custodia-labs/sercha-core/internal/core/ports/driven"
)

const (
	// busyRetries bounds retries after the driver-level busy timeout
	// has already been exhausted.
	busyRetries = 3
	busyBackoff = 50 * time.Millisecond
)

// Store is a unified SQLite-based storage that provides access to
// all metadata store interfaces through wrapper types.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.sercha/data/sercha.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".sercha", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sercha.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// DocumentStore returns a DocumentStore interface backed by this store.
func (s *Store) DocumentStore() driven.DocumentStore {
	return &documentStore{store: s}
}

// ConversationStore returns a ConversationStore interface backed by this store.
func (s *Store) ConversationStore() driven.ConversationStore {
	return &conversationStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

// execWrite runs a write operation, retrying a bounded number of times
// when SQLite reports the database busy past the driver timeout.
func (s *Store) execWrite(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		err = fn()
		if err == nil || !isBusy(err) {
			return err
		}
		select {
		case <-time.After(busyBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrStorage, err)
}

// ==================== Document Store ====================

// documentStore implements driven.DocumentStore.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// CreateDocument stores a new document record.
func (s *documentStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	metadataJSON, err := json.Marshal(doc.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	now := time.Now().UTC()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = now
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = doc.CreatedAt
	}

	return s.store.execWrite(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO documents (id, title, source_kind, source_uri, metadata, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, doc.ID, doc.Title, doc.SourceKind, doc.SourceURI,
			string(metadataJSON), doc.CreatedAt, doc.UpdatedAt)

		if isUniqueViolation(err, "documents.id") {
			return fmt.Errorf("%w: document %s already exists", domain.ErrInvalidInput, doc.ID)
		}
		if err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
		return nil
	})
}

// AddChunks stores chunks for a document in a single transaction. A
// collision on an occupied (document, position) slot aborts the whole
// batch with domain.ErrDuplicateChunkPosition.
func (s *documentStore) AddChunks(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	return s.store.execWrite(ctx, func() error {
		tx, err := s.store.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("beginning transaction: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, document_id, content, position, embedding, metadata, image_uris, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for _, chunk := range chunks {
			metadataJSON, err := json.Marshal(chunk.Metadata)
			if err != nil {
				return fmt.Errorf("marshalling chunk metadata: %w", err)
			}
			imageURIsJSON, err := json.Marshal(chunk.ImageURIs)
			if err != nil {
				return fmt.Errorf("marshalling chunk image uris: %w", err)
			}

			createdAt := chunk.CreatedAt
			if createdAt.IsZero() {
				createdAt = time.Now().UTC()
			}

			embeddingBlob := float32SliceToBytes(chunk.Embedding)

			_, err = stmt.ExecContext(ctx, chunk.ID, chunk.DocumentID, chunk.Content,
				chunk.Position, embeddingBlob, string(metadataJSON), string(imageURIsJSON), createdAt)
			if isUniqueViolation(err, "chunks.document_id, chunks.position") {
				return fmt.Errorf("%w: document %s position %d",
					domain.ErrDuplicateChunkPosition, chunk.DocumentID, chunk.Position)
			}
			if err != nil {
				return fmt.Errorf("saving chunk: %w", err)
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing transaction: %w", err)
		}
		return nil
	})
}

// GetDocument retrieves a document by ID.
func (s *documentStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, title, source_kind, source_uri, metadata, created_at, updated_at
		FROM documents WHERE id = ?
	`, id)

	return scanDocument(row)
}

// GetChunks retrieves all chunks for a document, ordered by position.
func (s *documentStore) GetChunks(ctx context.Context, documentID string) ([]domain.Chunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, document_id, content, position, embedding, metadata, image_uris, created_at
		FROM chunks WHERE document_id = ?
		ORDER BY position
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	return scanChunks(rows)
}

// GetChunksByIDs retrieves the chunks with the given ids, preserving the
// input order. Missing ids are silently omitted.
func (s *documentStore) GetChunksByIDs(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.store.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, document_id, content, position, embedding, metadata, image_uris, created_at
		FROM chunks WHERE id IN (%s)
	`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks by id: %w", err)
	}
	defer rows.Close()

	found, err := scanChunks(rows)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]domain.Chunk, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	chunks := make([]domain.Chunk, 0, len(found))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			chunks = append(chunks, c)
		}
	}
	return chunks, nil
}

// DeleteDocument removes a document and its chunks. Deleting an unknown
// id is a no-op.
func (s *documentStore) DeleteDocument(ctx context.Context, id string) error {
	return s.store.execWrite(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
		if err != nil {
			return fmt.Errorf("deleting document: %w", err)
		}
		return nil
	})
}

// ListDocuments returns all stored documents, oldest first.
func (s *documentStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, title, source_kind, source_uri, metadata, created_at, updated_at
		FROM documents ORDER BY created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		doc, err := scanDocumentRows(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, *doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}

	return docs, nil
}

// ==================== Conversation Store ====================

// conversationStore implements driven.ConversationStore.
type conversationStore struct {
	store *Store
}

var _ driven.ConversationStore = (*conversationStore)(nil)

// CreateConversation stores a new conversation record.
func (s *conversationStore) CreateConversation(ctx context.Context, conv *domain.Conversation) error {
	metadataJSON, err := json.Marshal(conv.Metadata)
	if err != nil {
		return fmt.Errorf("marshalling metadata: %w", err)
	}

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}

	return s.store.execWrite(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO conversations (id, session_token, user_id, metadata, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, conv.ID, conv.SessionToken, conv.UserID, string(metadataJSON), conv.CreatedAt)

		if isUniqueViolation(err, "conversations.session_token") {
			return fmt.Errorf("%w: session token already in use", domain.ErrInvalidInput)
		}
		if err != nil {
			return fmt.Errorf("saving conversation: %w", err)
		}
		return nil
	})
}

// GetConversation retrieves a conversation by ID.
func (s *conversationStore) GetConversation(ctx context.Context, id string) (*domain.Conversation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, session_token, user_id, metadata, created_at
		FROM conversations WHERE id = ?
	`, id)

	return scanConversation(row)
}

// GetBySessionToken retrieves the conversation for a session token.
func (s *conversationStore) GetBySessionToken(ctx context.Context, token string) (*domain.Conversation, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, session_token, user_id, metadata, created_at
		FROM conversations WHERE session_token = ?
	`, token)

	return scanConversation(row)
}

// AppendMessage stores one message.
func (s *conversationStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	chunkIDsJSON, err := json.Marshal(msg.RelevantChunkIDs)
	if err != nil {
		return fmt.Errorf("marshalling chunk ids: %w", err)
	}

	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	embeddingBlob := float32SliceToBytes(msg.Embedding)

	return s.store.execWrite(ctx, func() error {
		_, err := s.store.db.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, role, content, embedding, relevant_chunk_ids, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, msg.ID, msg.ConversationID, string(msg.Role), msg.Content,
			embeddingBlob, string(chunkIDsJSON), msg.CreatedAt)

		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: conversation %s", domain.ErrNotFound, msg.ConversationID)
		}
		if err != nil {
			return fmt.Errorf("saving message: %w", err)
		}
		return nil
	})
}

// ListMessages returns messages ordered by creation time ascending. When
// limit > 0 only the most recent limit messages are returned, still
// oldest first.
func (s *conversationStore) ListMessages(
	ctx context.Context,
	conversationID string,
	limit int,
) ([]domain.Message, error) {
	query := `
		SELECT id, conversation_id, role, content, embedding, relevant_chunk_ids, created_at
		FROM messages WHERE conversation_id = ?
		ORDER BY created_at, rowid
	`
	args := []any{conversationID}
	if limit > 0 {
		// Take the newest rows, then flip back to chronological order.
		query = `
			SELECT id, conversation_id, role, content, embedding, relevant_chunk_ids, created_at
			FROM messages WHERE conversation_id = ?
			ORDER BY created_at DESC, rowid DESC
			LIMIT ?
		`
		args = append(args, limit)
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message //nolint:prealloc // size unknown from query
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}

	if limit > 0 {
		for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
			messages[i], messages[j] = messages[j], messages[i]
		}
	}

	return messages, nil
}

// ==================== Helper Functions ====================

// float32SliceToBytes converts a []float32 to a byte slice for storage.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}

func isUniqueViolation(err error, columns string) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed: "+columns)
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

func isBusy(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// scanDocument scans a single document row.
func scanDocument(row *sql.Row) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string

	if err := row.Scan(&doc.ID, &doc.Title, &doc.SourceKind, &doc.SourceURI,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}

	return &doc, nil
}

// scanDocumentRows scans a document from *sql.Rows.
func scanDocumentRows(rows *sql.Rows) (*domain.Document, error) {
	var doc domain.Document
	var metadataJSON string

	if err := rows.Scan(&doc.ID, &doc.Title, &doc.SourceKind, &doc.SourceURI,
		&metadataJSON, &doc.CreatedAt, &doc.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning document: %w", err)
	}

	if err := unmarshalMetadata(metadataJSON, &doc.Metadata); err != nil {
		return nil, err
	}

	return &doc, nil
}

// scanChunks scans all chunk rows.
func scanChunks(rows *sql.Rows) ([]domain.Chunk, error) {
	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		var embeddingBlob []byte
		var metadataJSON, imageURIsJSON string

		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Content, &chunk.Position,
			&embeddingBlob, &metadataJSON, &imageURIsJSON, &chunk.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		chunk.Embedding = bytesToFloat32Slice(embeddingBlob)

		if err := unmarshalMetadata(metadataJSON, &chunk.Metadata); err != nil {
			return nil, err
		}
		if imageURIsJSON != "" && imageURIsJSON != jsonNull {
			if err := json.Unmarshal([]byte(imageURIsJSON), &chunk.ImageURIs); err != nil {
				return nil, fmt.Errorf("unmarshaling chunk image uris: %w", err)
			}
		}

		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return chunks, nil
}

// scanConversation scans a single conversation row.
func scanConversation(row *sql.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	var metadataJSON string

	if err := row.Scan(&conv.ID, &conv.SessionToken, &conv.UserID,
		&metadataJSON, &conv.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning conversation: %w", err)
	}

	if err := unmarshalMetadata(metadataJSON, &conv.Metadata); err != nil {
		return nil, err
	}

	return &conv, nil
}

// scanMessage scans a message from *sql.Rows.
func scanMessage(rows *sql.Rows) (*domain.Message, error) {
	var msg domain.Message
	var role string
	var embeddingBlob []byte
	var chunkIDsJSON string

	if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content,
		&embeddingBlob, &chunkIDsJSON, &msg.CreatedAt); err != nil {
		return nil, fmt.Errorf("scanning message: %w", err)
	}

	msg.Role = domain.Role(role)
	msg.Embedding = bytesToFloat32Slice(embeddingBlob)

	if chunkIDsJSON != "" && chunkIDsJSON != jsonNull {
		if err := json.Unmarshal([]byte(chunkIDsJSON), &msg.RelevantChunkIDs); err != nil {
			return nil, fmt.Errorf("unmarshaling chunk ids: %w", err)
		}
	}

	return &msg, nil
}

// jsonNull is the JSON representation of null.
const jsonNull = "null"

func unmarshalMetadata(raw string, dst *map[string]any) error {
	if raw == "" || raw == jsonNull {
		return nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return fmt.Errorf("unmarshaling metadata: %w", err)
	}
	return nil
}
