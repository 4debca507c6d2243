package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Ensure VersionStore implements the interface.
var _ driven.VersionStore = (*VersionStore)(nil)

// VersionStore is an in-memory implementation of driven.VersionStore.
// Versions are keyed by journey key, then version id.
type VersionStore struct {
	mu       sync.RWMutex
	versions map[string]map[string]domain.DocumentVersion
}

// NewVersionStore creates a new in-memory version store.
func NewVersionStore() *VersionStore {
	return &VersionStore{
		versions: make(map[string]map[string]domain.DocumentVersion),
	}
}

// AppendVersion stores a new version.
func (s *VersionStore) AppendVersion(_ context.Context, v *domain.DocumentVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.JourneyKey(v.Journey)
	byID, ok := s.versions[key]
	if !ok {
		byID = make(map[string]domain.DocumentVersion)
		s.versions[key] = byID
	}
	if _, exists := byID[v.ID]; exists {
		return domain.ErrVersionExists
	}
	byID[v.ID] = *v
	return nil
}

// GetVersion retrieves a version.
func (s *VersionStore) GetVersion(_ context.Context, journey, versionID string) (*domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.versions[domain.JourneyKey(journey)][versionID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &v, nil
}

// ListVersions returns the journey's versions ascending by id.
func (s *VersionStore) ListVersions(_ context.Context, journey string) ([]domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(journey, func(domain.DocumentVersion) bool { return true }), nil
}

// VersionExists reports whether the id is taken.
func (s *VersionStore) VersionExists(_ context.Context, journey, versionID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.versions[domain.JourneyKey(journey)][versionID]
	return ok, nil
}

// MarkIndexed flips a pending version to indexed.
func (s *VersionStore) MarkIndexed(_ context.Context, journey, versionID string, chunkCount int, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byID := s.versions[domain.JourneyKey(journey)]
	v, ok := byID[versionID]
	if !ok {
		return domain.ErrNotFound
	}
	v.Status = domain.VersionIndexed
	v.ChunkCount = chunkCount
	v.EmbeddingModel = model
	byID[versionID] = v
	return nil
}

// ListVersionsCreatedBefore returns versions created strictly before cutoff.
func (s *VersionStore) ListVersionsCreatedBefore(
	_ context.Context, journey string, cutoff time.Time,
) ([]domain.DocumentVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sorted(journey, func(v domain.DocumentVersion) bool {
		return v.CreatedAt.Before(cutoff)
	}), nil
}

// DeleteVersion removes a version record.
func (s *VersionStore) DeleteVersion(_ context.Context, journey, versionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.JourneyKey(journey)
	if _, ok := s.versions[key][versionID]; !ok {
		return domain.ErrNotFound
	}
	delete(s.versions[key], versionID)
	if len(s.versions[key]) == 0 {
		delete(s.versions, key)
	}
	return nil
}

// ListVersionJourneys returns every journey name that owns versions.
func (s *VersionStore) ListVersionJourneys(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.versions))
	for _, byID := range s.versions {
		for _, v := range byID {
			out = append(out, v.Journey)
			break
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *VersionStore) sorted(journey string, keep func(domain.DocumentVersion) bool) []domain.DocumentVersion {
	byID := s.versions[domain.JourneyKey(journey)]
	out := make([]domain.DocumentVersion, 0, len(byID))
	for _, v := range byID {
		if keep(v) {
			out = append(out, v)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out
}
