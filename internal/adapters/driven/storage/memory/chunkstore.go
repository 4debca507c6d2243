package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Ensure ChunkStore implements the interface.
var _ driven.ChunkStore = (*ChunkStore)(nil)

// ChunkStore is an in-memory implementation of driven.ChunkStore.
type ChunkStore struct {
	mu     sync.RWMutex
	chunks map[string]map[string][]domain.Chunk // journey key -> version id -> chunks
}

// NewChunkStore creates a new in-memory chunk store.
func NewChunkStore() *ChunkStore {
	return &ChunkStore{
		chunks: make(map[string]map[string][]domain.Chunk),
	}
}

// SaveChunks replaces the chunk set of one version.
func (s *ChunkStore) SaveChunks(_ context.Context, journey, versionID string, chunks []domain.Chunk) error {
	cp := make([]domain.Chunk, len(chunks))
	for i := range chunks {
		cp[i] = cloneChunk(chunks[i])
	}
	sort.Slice(cp, func(i, k int) bool { return cp[i].Sequence < cp[k].Sequence })

	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.JourneyKey(journey)
	if s.chunks[key] == nil {
		s.chunks[key] = make(map[string][]domain.Chunk)
	}
	s.chunks[key][versionID] = cp
	return nil
}

// GetChunks retrieves a version's chunks in sequence order.
func (s *ChunkStore) GetChunks(_ context.Context, journey, versionID string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.chunks[domain.JourneyKey(journey)][versionID]
	out := make([]domain.Chunk, len(stored))
	for i := range stored {
		out[i] = cloneChunk(stored[i])
	}
	return out, nil
}

// ListChunks returns every chunk of the journey, ordered by version then sequence.
func (s *ChunkStore) ListChunks(_ context.Context, journey string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	byVersion := s.chunks[domain.JourneyKey(journey)]
	ids := make([]string, 0, len(byVersion))
	for id := range byVersion {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []domain.Chunk
	for _, id := range ids {
		for i := range byVersion[id] {
			out = append(out, cloneChunk(byVersion[id][i]))
		}
	}
	return out, nil
}

// DeleteChunks removes a version's chunks, or the whole journey's.
func (s *ChunkStore) DeleteChunks(_ context.Context, journey, versionID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.JourneyKey(journey)
	byVersion := s.chunks[key]
	if versionID == "" {
		n := 0
		for _, c := range byVersion {
			n += len(c)
		}
		delete(s.chunks, key)
		return n, nil
	}
	n := len(byVersion[versionID])
	delete(byVersion, versionID)
	return n, nil
}

func cloneChunk(c domain.Chunk) domain.Chunk {
	if c.Embedding != nil {
		c.Embedding = append([]float32(nil), c.Embedding...)
	}
	return c
}
