package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// journeyStore implements driven.JourneyStore.
type journeyStore struct {
	store *Store
}

var _ driven.JourneyStore = (*journeyStore)(nil)

// SaveJourney stores or updates a journey.
func (s *journeyStore) SaveJourney(ctx context.Context, j *domain.Journey) error {
	if j == nil {
		return domain.ErrInvalidInput
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO journeys (name_key, name, description, is_default, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name_key) DO UPDATE SET
			name = excluded.name,
			description = excluded.description,
			is_default = excluded.is_default
	`, domain.JourneyKey(j.Name), j.Name, j.Description, j.IsDefault, formatTime(j.CreatedAt))
	if err != nil {
		return fmt.Errorf("saving journey: %w", err)
	}
	return nil
}

// GetJourney retrieves a journey by name.
func (s *journeyStore) GetJourney(ctx context.Context, name string) (*domain.Journey, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT name, description, is_default, created_at FROM journeys WHERE name_key = ?
	`, domain.JourneyKey(name))
	return scanJourney(row)
}

// ListJourneys returns all journeys ordered by name.
func (s *journeyStore) ListJourneys(ctx context.Context) ([]domain.Journey, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT name, description, is_default, created_at FROM journeys ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("querying journeys: %w", err)
	}
	defer rows.Close()

	var journeys []domain.Journey //nolint:prealloc // size unknown from query
	for rows.Next() {
		j, err := scanJourney(rows)
		if err != nil {
			return nil, err
		}
		journeys = append(journeys, *j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating journeys: %w", err)
	}
	return journeys, nil
}

// DeleteJourney removes a journey record.
func (s *journeyStore) DeleteJourney(ctx context.Context, name string) error {
	res, err := s.store.db.ExecContext(ctx, "DELETE FROM journeys WHERE name_key = ?", domain.JourneyKey(name))
	if err != nil {
		return fmt.Errorf("deleting journey: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanJourney(row scanner) (*domain.Journey, error) {
	var j domain.Journey
	var createdAt string
	if err := row.Scan(&j.Name, &j.Description, &j.IsDefault, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning journey: %w", err)
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	j.CreatedAt = t
	return &j, nil
}
