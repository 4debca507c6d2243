// Package failover wraps a remote vector index with an in-process mirror.
//
// Writes go to the remote first and reach the mirror only once the remote
// accepted them, so both always hold the same data; a failed remote write is
// returned to the caller. Reads and stats that fail with a RetrievableError
// are served by the mirror, which is rebuilt from the chunk store the first
// time a namespace is needed.
package failover

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/traceq/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// rebuildBatch bounds the chunks handed to the mirror per upsert.
const rebuildBatch = 256

// Verify interface compliance.
var _ driven.VectorIndex = (*Index)(nil)

// Index serves from the remote and falls back to the mirror.
type Index struct {
	remote driven.VectorIndex
	mirror *memory.Index
	chunks driven.ChunkStore

	mu     sync.Mutex
	loaded map[string]bool
}

// New creates a failover index over remote, rebuilding from chunks.
func New(remote driven.VectorIndex, chunks driven.ChunkStore) *Index {
	return &Index{
		remote: remote,
		mirror: memory.New(),
		chunks: chunks,
		loaded: make(map[string]bool),
	}
}

// NewLocal creates an index without a remote. The mirror is rebuilt from
// chunks per namespace on first use, so vectors survive restarts as long
// as the chunk store persists them.
func NewLocal(chunks driven.ChunkStore) *Index {
	return New(nil, chunks)
}

// Upsert writes to the remote, then mirrors the accepted chunks. A remote
// failure is returned unchanged so the caller can leave the version pending
// and retry.
func (f *Index) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	if f.remote == nil {
		if err := f.ensureLoaded(ctx, namespace); err != nil {
			return 0, err
		}
		return f.mirror.Upsert(ctx, namespace, chunks)
	}
	n, err := f.remote.Upsert(ctx, namespace, chunks)
	if err != nil {
		return 0, err
	}
	if _, err := f.mirror.Upsert(ctx, namespace, chunks); err != nil {
		return 0, fmt.Errorf("mirroring upsert: %w", err)
	}
	return n, nil
}

// Query asks the remote and falls back to the mirror.
func (f *Index) Query(ctx context.Context, namespace string, vector []float32, topK int,
	filter *domain.ChunkFilter) ([]domain.ScoredChunk, error) {
	if f.remote == nil {
		if err := f.ensureLoaded(ctx, namespace); err != nil {
			return nil, err
		}
		return f.mirror.Query(ctx, namespace, vector, topK, filter)
	}
	hits, err := f.remote.Query(ctx, namespace, vector, topK, filter)
	if err == nil || !domain.IsRetrievable(err) {
		return hits, err
	}

	logger.Warn("remote vector index unavailable, serving query from fallback",
		"namespace", namespace, "error", err)
	if err := f.ensureLoaded(ctx, namespace); err != nil {
		return nil, err
	}
	return f.mirror.Query(ctx, namespace, vector, topK, filter)
}

// Delete removes from the remote, then from the mirror.
func (f *Index) Delete(ctx context.Context, namespace, versionID string) (int, error) {
	if f.remote == nil {
		if err := f.ensureLoaded(ctx, namespace); err != nil {
			return 0, err
		}
		return f.mirror.Delete(ctx, namespace, versionID)
	}
	n, err := f.remote.Delete(ctx, namespace, versionID)
	if err != nil {
		return 0, err
	}
	if _, err := f.mirror.Delete(ctx, namespace, versionID); err != nil {
		return 0, fmt.Errorf("mirroring delete: %w", err)
	}
	return n, nil
}

// Prune removes the version's tail from the remote, then from the mirror.
func (f *Index) Prune(ctx context.Context, namespace, versionID string, keep int) (int, error) {
	if f.remote == nil {
		if err := f.ensureLoaded(ctx, namespace); err != nil {
			return 0, err
		}
		return f.mirror.Prune(ctx, namespace, versionID, keep)
	}
	n, err := f.remote.Prune(ctx, namespace, versionID, keep)
	if err != nil {
		return 0, err
	}
	if _, err := f.mirror.Prune(ctx, namespace, versionID, keep); err != nil {
		return 0, fmt.Errorf("mirroring prune: %w", err)
	}
	return n, nil
}

// Stats reports the remote, or the mirror when the remote is down.
func (f *Index) Stats(ctx context.Context, namespace string) (domain.IndexStats, error) {
	if f.remote == nil {
		if err := f.ensureLoaded(ctx, namespace); err != nil {
			return domain.IndexStats{}, err
		}
		return f.mirror.Stats(ctx, namespace)
	}
	stats, err := f.remote.Stats(ctx, namespace)
	if err == nil || !domain.IsRetrievable(err) {
		return stats, err
	}
	if err := f.ensureLoaded(ctx, namespace); err != nil {
		return domain.IndexStats{}, err
	}
	return f.mirror.Stats(ctx, namespace)
}

// Close closes both indexes.
func (f *Index) Close() error {
	var rerr error
	if f.remote != nil {
		rerr = f.remote.Close()
	}
	if err := f.mirror.Close(); err != nil {
		return err
	}
	return rerr
}

// ensureLoaded merges the chunk store's namespace into the mirror once.
func (f *Index) ensureLoaded(ctx context.Context, namespace string) error {
	key := domain.JourneyKey(namespace)

	f.mu.Lock()
	done := f.loaded[key]
	f.mu.Unlock()
	if done {
		return nil
	}

	chunks, err := f.chunks.ListChunks(ctx, namespace)
	if err != nil {
		return fmt.Errorf("rebuilding fallback index: %w", err)
	}

	embedded := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) > 0 {
			embedded = append(embedded, c)
		}
	}

	// Mirrored writes are already present; re-upserting them is idempotent.
	for start := 0; start < len(embedded); start += rebuildBatch {
		end := min(start+rebuildBatch, len(embedded))
		if _, err := f.mirror.Upsert(ctx, namespace, embedded[start:end]); err != nil {
			return fmt.Errorf("rebuilding fallback index: %w", err)
		}
	}

	f.mu.Lock()
	f.loaded[key] = true
	f.mu.Unlock()

	logger.Info("fallback vector index rebuilt", "namespace", namespace, "chunks", len(embedded))
	return nil
}
