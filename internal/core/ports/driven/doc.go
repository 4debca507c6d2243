// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Required Interfaces
//
// These must be provided for the application to function:
//
//   - BlobStore: Raw document storage
//   - TextExtractor: Blob to plain text
//   - EmbeddingService: Text to fixed-dimension vectors
//   - VectorIndex: Namespaced similarity search over chunk vectors
//   - JourneyStore, VersionStore, ChunkStore, NamespaceStore: Persistence
//   - TaskStore: Background task status persistence
//
// # Optional Interfaces
//
// These can be nil - the application degrades gracefully:
//
//   - CompletionService: Without it, summaries fall back to leading sentences,
//     change analysis answers only whitespace-only deltas, and test generation
//     returns context-derived fallback cases.
//   - EmbeddingCache: Without it, every text is embedded on each call.
//   - PromptStore: Without it, built-in prompt templates are used.
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or extractor package
package driven
