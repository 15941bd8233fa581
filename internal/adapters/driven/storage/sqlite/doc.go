// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document and chunk persistence
//   - ConversationStore: Conversation and message persistence
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
// Chunk embeddings are stored as little-endian float32 blobs; metadata and chunk
// id lists are stored as JSON text.
//
// # Data Location
//
// By default, the database is stored at ~/.sercha/data/sercha.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Writes that keep hitting SQLITE_BUSY past the busy
// timeout are retried a bounded number of times before surfacing a storage error.
package sqlite
