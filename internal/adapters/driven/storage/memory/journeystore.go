package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Ensure JourneyStore implements the interface.
var _ driven.JourneyStore = (*JourneyStore)(nil)

// JourneyStore is an in-memory implementation of driven.JourneyStore.
type JourneyStore struct {
	mu       sync.RWMutex
	journeys map[string]domain.Journey
}

// NewJourneyStore creates a new in-memory journey store.
func NewJourneyStore() *JourneyStore {
	return &JourneyStore{
		journeys: make(map[string]domain.Journey),
	}
}

// SaveJourney creates or updates a journey.
func (s *JourneyStore) SaveJourney(_ context.Context, journey *domain.Journey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.journeys[domain.JourneyKey(journey.Name)] = *journey
	return nil
}

// GetJourney retrieves a journey by name.
func (s *JourneyStore) GetJourney(_ context.Context, name string) (*domain.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	j, ok := s.journeys[domain.JourneyKey(name)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

// ListJourneys returns all journeys ordered by name.
func (s *JourneyStore) ListJourneys(_ context.Context) ([]domain.Journey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Journey, 0, len(s.journeys))
	for _, j := range s.journeys {
		out = append(out, j)
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out, nil
}

// DeleteJourney removes a journey.
func (s *JourneyStore) DeleteJourney(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.JourneyKey(name)
	if _, ok := s.journeys[key]; !ok {
		return domain.ErrNotFound
	}
	delete(s.journeys, key)
	return nil
}
