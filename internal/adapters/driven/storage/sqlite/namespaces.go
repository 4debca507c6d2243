package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// namespaceStore implements driven.NamespaceStore.
type namespaceStore struct {
	store *Store
}

var _ driven.NamespaceStore = (*namespaceStore)(nil)

// GetNamespace returns the recorded namespace for a journey.
func (s *namespaceStore) GetNamespace(ctx context.Context, journey string) (*domain.Namespace, error) {
	var ns domain.Namespace
	err := s.store.db.QueryRowContext(ctx,
		"SELECT journey, dimensions, model FROM namespaces WHERE journey_key = ?",
		domain.JourneyKey(journey)).Scan(&ns.Journey, &ns.Dimensions, &ns.Model)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting namespace: %w", err)
	}
	return &ns, nil
}

// SaveNamespace records a namespace the first time it is written. The
// dimension of an existing namespace never changes.
func (s *namespaceStore) SaveNamespace(ctx context.Context, ns *domain.Namespace) error {
	if ns == nil || ns.Dimensions <= 0 {
		return domain.ErrInvalidInput
	}
	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		key := domain.JourneyKey(ns.Journey)
		var dims int
		err := tx.QueryRowContext(ctx, "SELECT dimensions FROM namespaces WHERE journey_key = ?", key).Scan(&dims)
		switch {
		case err == nil:
			if dims != ns.Dimensions {
				return fmt.Errorf("%w: namespace %q has %d dimensions, got %d",
					domain.ErrDimensionMismatch, ns.Journey, dims, ns.Dimensions)
			}
			return nil
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("reading namespace: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO namespaces (journey_key, journey, dimensions, model) VALUES (?, ?, ?, ?)",
			key, ns.Journey, ns.Dimensions, ns.Model); err != nil {
			return fmt.Errorf("saving namespace: %w", err)
		}
		return nil
	})
}

// DeleteNamespace forgets a namespace.
func (s *namespaceStore) DeleteNamespace(ctx context.Context, journey string) error {
	if _, err := s.store.db.ExecContext(ctx,
		"DELETE FROM namespaces WHERE journey_key = ?", domain.JourneyKey(journey)); err != nil {
		return fmt.Errorf("deleting namespace: %w", err)
	}
	return nil
}
