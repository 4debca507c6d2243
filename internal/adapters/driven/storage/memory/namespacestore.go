package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Ensure NamespaceStore implements the interface.
var _ driven.NamespaceStore = (*NamespaceStore)(nil)

// NamespaceStore is an in-memory implementation of driven.NamespaceStore.
type NamespaceStore struct {
	mu         sync.RWMutex
	namespaces map[string]domain.Namespace
}

// NewNamespaceStore creates a new in-memory namespace store.
func NewNamespaceStore() *NamespaceStore {
	return &NamespaceStore{namespaces: make(map[string]domain.Namespace)}
}

// GetNamespace returns the namespace record.
func (s *NamespaceStore) GetNamespace(_ context.Context, journey string) (*domain.Namespace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ns, ok := s.namespaces[domain.JourneyKey(journey)]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &ns, nil
}

// SaveNamespace records the namespace if absent.
func (s *NamespaceStore) SaveNamespace(_ context.Context, ns *domain.Namespace) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := domain.JourneyKey(ns.Journey)
	if existing, ok := s.namespaces[key]; ok {
		if existing.Dimensions != ns.Dimensions {
			return fmt.Errorf("%w: namespace %q has %d, got %d",
				domain.ErrDimensionMismatch, ns.Journey, existing.Dimensions, ns.Dimensions)
		}
		return nil
	}
	s.namespaces[key] = *ns
	return nil
}

// DeleteNamespace forgets the namespace.
func (s *NamespaceStore) DeleteNamespace(_ context.Context, journey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.namespaces, domain.JourneyKey(journey))
	return nil
}
