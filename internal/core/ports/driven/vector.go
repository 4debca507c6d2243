package driven

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// VectorIndex stores chunk vectors and answers nearest-neighbour queries
// scoped to a journey namespace.
//
// Every implementation scores with domain.CosineScore semantics and orders
// results with domain.RankBefore, so implementations are substitutable.
type VectorIndex interface {
	// Upsert stores chunks with embeddings. Re-upserting a chunk id replaces
	// it. The first upsert fixes the namespace dimension; a mismatch fails
	// with a FatalError wrapping domain.ErrDimensionMismatch.
	Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error)

	// Query returns up to topK chunks of the namespace ranked by similarity.
	// filter may be nil.
	Query(ctx context.Context, namespace string, vector []float32, topK int,
		filter *domain.ChunkFilter) ([]domain.ScoredChunk, error)

	// Delete removes the chunks of versionID, or the whole namespace when
	// versionID is empty, and returns the number removed.
	Delete(ctx context.Context, namespace, versionID string) (int, error)

	// Prune removes the chunks of versionID whose sequence is keep or higher
	// and returns the number removed. It drops the tail left behind when a
	// version is re-chunked into fewer chunks.
	Prune(ctx context.Context, namespace, versionID string, keep int) (int, error)

	// Stats describes the namespace.
	Stats(ctx context.Context, namespace string) (domain.IndexStats, error)

	// Close releases resources.
	Close() error
}
