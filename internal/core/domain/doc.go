// Package domain defines the core business entities for traceq.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Journey: A named business-process grouping of requirement documents
//   - DocumentVersion: One immutable ingested document within a journey
//   - Chunk: A token-bounded slice of a version's text, the unit of retrieval
//   - ContextBundle: A ranked, budgeted retrieval result
//   - ChangeAssessment: The classification of a delta between two versions
//   - Task: A background job polled by id
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
