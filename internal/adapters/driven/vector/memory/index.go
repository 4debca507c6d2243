// Package memory provides an in-process vector index.
//
// It scans every vector of a namespace on query. It serves as the default
// index for local use and as the fallback mirror of a remote index.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Backend is the name reported in IndexStats.
const Backend = "memory"

// Verify interface compliance.
var _ driven.VectorIndex = (*Index)(nil)

type space struct {
	name   string
	dims   int
	chunks map[string]domain.Chunk
}

// Index is a thread-safe in-memory VectorIndex.
type Index struct {
	mu     sync.RWMutex
	spaces map[string]*space
}

// New creates an empty index.
func New() *Index {
	return &Index{spaces: make(map[string]*space)}
}

// Upsert stores chunks under the namespace, replacing existing ids.
func (i *Index) Upsert(_ context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	if len(chunks) == 0 {
		return 0, nil
	}
	dims := len(chunks[0].Embedding)
	if dims == 0 {
		return 0, domain.Fatal("vector.memory.upsert",
			fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, chunks[0].ID))
	}
	for k := range chunks {
		if len(chunks[k].Embedding) != dims {
			return 0, domain.Fatal("vector.memory.upsert", fmt.Errorf("%w: chunk %s has %d dimensions, batch has %d",
				domain.ErrDimensionMismatch, chunks[k].ID, len(chunks[k].Embedding), dims))
		}
	}

	key := domain.JourneyKey(namespace)

	i.mu.Lock()
	defer i.mu.Unlock()

	sp, ok := i.spaces[key]
	if !ok {
		sp = &space{name: namespace, dims: dims, chunks: make(map[string]domain.Chunk)}
		i.spaces[key] = sp
	}
	if sp.dims != dims {
		return 0, domain.Fatal("vector.memory.upsert", fmt.Errorf("%w: namespace %q has %d dimensions, got %d",
			domain.ErrDimensionMismatch, namespace, sp.dims, dims))
	}

	for k := range chunks {
		c := chunks[k]
		c.Embedding = append([]float32(nil), c.Embedding...)
		sp.chunks[c.ID] = c
	}
	return len(chunks), nil
}

// Query ranks the namespace's chunks by cosine similarity to vector.
// Returned chunks carry no embeddings.
func (i *Index) Query(_ context.Context, namespace string, vector []float32, topK int,
	filter *domain.ChunkFilter) ([]domain.ScoredChunk, error) {
	if topK <= 0 {
		return nil, domain.Fatal("vector.memory.query", fmt.Errorf("%w: top_k=%d", domain.ErrInvalidInput, topK))
	}

	i.mu.RLock()
	sp, ok := i.spaces[domain.JourneyKey(namespace)]
	if !ok {
		i.mu.RUnlock()
		return nil, nil
	}
	if len(vector) != sp.dims {
		i.mu.RUnlock()
		return nil, domain.Fatal("vector.memory.query", fmt.Errorf("%w: namespace %q has %d dimensions, query has %d",
			domain.ErrDimensionMismatch, namespace, sp.dims, len(vector)))
	}

	hits := make([]domain.ScoredChunk, 0, len(sp.chunks))
	for _, c := range sp.chunks {
		if !filter.Matches(&c) {
			continue
		}
		score := domain.CosineScore(vector, c.Embedding)
		c.Embedding = nil
		hits = append(hits, domain.ScoredChunk{Chunk: c, Score: score})
	}
	i.mu.RUnlock()

	return domain.TopK(hits, topK), nil
}

// Delete removes one version's chunks, or the whole namespace when versionID
// is empty.
func (i *Index) Delete(_ context.Context, namespace, versionID string) (int, error) {
	key := domain.JourneyKey(namespace)

	i.mu.Lock()
	defer i.mu.Unlock()

	sp, ok := i.spaces[key]
	if !ok {
		return 0, nil
	}
	if versionID == "" {
		delete(i.spaces, key)
		return len(sp.chunks), nil
	}

	removed := 0
	for id, c := range sp.chunks {
		if c.VersionID == versionID {
			delete(sp.chunks, id)
			removed++
		}
	}
	return removed, nil
}

// Prune removes the version's chunks from sequence keep onwards.
func (i *Index) Prune(_ context.Context, namespace, versionID string, keep int) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	sp, ok := i.spaces[domain.JourneyKey(namespace)]
	if !ok {
		return 0, nil
	}
	removed := 0
	for id, c := range sp.chunks {
		if c.VersionID == versionID && c.Sequence >= keep {
			delete(sp.chunks, id)
			removed++
		}
	}
	return removed, nil
}

// Stats describes the namespace.
func (i *Index) Stats(_ context.Context, namespace string) (domain.IndexStats, error) {
	stats := domain.IndexStats{Backend: Backend, Namespace: namespace}

	i.mu.RLock()
	defer i.mu.RUnlock()

	sp, ok := i.spaces[domain.JourneyKey(namespace)]
	if !ok {
		return stats, nil
	}
	versions := make(map[string]struct{})
	for _, c := range sp.chunks {
		versions[c.VersionID] = struct{}{}
	}
	stats.Chunks = len(sp.chunks)
	stats.Versions = len(versions)
	stats.Dimensions = sp.dims
	return stats, nil
}

// Has reports whether the namespace holds any state.
func (i *Index) Has(namespace string) bool {
	i.mu.RLock()
	defer i.mu.RUnlock()
	_, ok := i.spaces[domain.JourneyKey(namespace)]
	return ok
}

// Close releases all stored vectors.
func (i *Index) Close() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.spaces = make(map[string]*space)
	return nil
}
