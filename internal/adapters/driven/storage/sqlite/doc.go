// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - JourneyStore: Journey persistence
//   - VersionStore: Append-only document version timeline
//   - ChunkStore: Chunk text, spans and embeddings
//   - NamespaceStore: Per-journey embedding dimension
//   - TaskStore: Background task status
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory and recorded in schema_migrations.
//
// # Data Location
//
// By default, the database is stored at ~/.traceq/data/traceq.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode.
package sqlite
