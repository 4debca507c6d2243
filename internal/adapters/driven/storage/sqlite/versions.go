package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// versionStore implements driven.VersionStore.
type versionStore struct {
	store *Store
}

var _ driven.VersionStore = (*versionStore)(nil)

const versionColumns = `journey, id, source_type, document_uri, format, effective_date, notes,
	summary, created_at, status, chunk_count, embedding_model`

// AppendVersion stores a new version. Existing ids are never overwritten.
func (s *versionStore) AppendVersion(ctx context.Context, v *domain.DocumentVersion) error {
	if v == nil || v.ID == "" {
		return domain.ErrInvalidInput
	}
	var effective sql.NullString
	if v.EffectiveDate != nil {
		effective = nullTime(*v.EffectiveDate)
	}
	status := v.Status
	if status == "" {
		status = domain.VersionPending
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO versions (journey_key, journey, id, source_type, document_uri, format,
			effective_date, notes, summary, created_at, status, chunk_count, embedding_model)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		domain.JourneyKey(v.Journey), v.Journey, v.ID, string(v.SourceType), v.DocumentURI, v.Format,
		effective, v.Notes, v.Summary, formatTime(v.CreatedAt), string(status), v.ChunkCount, v.EmbeddingModel,
	)
	if err != nil {
		if isConstraintError(err) {
			return fmt.Errorf("%w: %s", domain.ErrVersionExists, v.ID)
		}
		return fmt.Errorf("appending version: %w", err)
	}
	return nil
}

// GetVersion retrieves a version by journey and id.
func (s *versionStore) GetVersion(ctx context.Context, journey, versionID string) (*domain.DocumentVersion, error) {
	row := s.store.db.QueryRowContext(ctx,
		"SELECT "+versionColumns+" FROM versions WHERE journey_key = ? AND id = ?",
		domain.JourneyKey(journey), versionID)
	return scanVersion(row)
}

// ListVersions returns the journey's versions ordered by id.
func (s *versionStore) ListVersions(ctx context.Context, journey string) ([]domain.DocumentVersion, error) {
	return s.query(ctx,
		"SELECT "+versionColumns+" FROM versions WHERE journey_key = ? ORDER BY id",
		domain.JourneyKey(journey))
}

// VersionExists reports whether a version id is taken.
func (s *versionStore) VersionExists(ctx context.Context, journey, versionID string) (bool, error) {
	var n int
	err := s.store.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM versions WHERE journey_key = ? AND id = ?",
		domain.JourneyKey(journey), versionID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking version: %w", err)
	}
	return n > 0, nil
}

// MarkIndexed flips a version to indexed and records its chunk count.
func (s *versionStore) MarkIndexed(ctx context.Context, journey, versionID string, chunkCount int, model string) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE versions SET status = ?, chunk_count = ?, embedding_model = ?
		WHERE journey_key = ? AND id = ?
	`, string(domain.VersionIndexed), chunkCount, model, domain.JourneyKey(journey), versionID)
	if err != nil {
		return fmt.Errorf("marking version indexed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListVersionsCreatedBefore returns versions created strictly before cutoff.
func (s *versionStore) ListVersionsCreatedBefore(ctx context.Context, journey string, cutoff time.Time) ([]domain.DocumentVersion, error) {
	return s.query(ctx,
		"SELECT "+versionColumns+" FROM versions WHERE journey_key = ? AND created_at < ? ORDER BY id",
		domain.JourneyKey(journey), formatTime(cutoff))
}

// DeleteVersion removes a version. Its chunks are removed by cascade.
func (s *versionStore) DeleteVersion(ctx context.Context, journey, versionID string) error {
	res, err := s.store.db.ExecContext(ctx,
		"DELETE FROM versions WHERE journey_key = ? AND id = ?",
		domain.JourneyKey(journey), versionID)
	if err != nil {
		return fmt.Errorf("deleting version: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ListVersionJourneys returns the distinct journeys that own versions.
func (s *versionStore) ListVersionJourneys(ctx context.Context) ([]string, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT journey_key, MIN(journey) FROM versions GROUP BY journey_key ORDER BY journey_key
	`)
	if err != nil {
		return nil, fmt.Errorf("querying version journeys: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var key, name string
		if err := rows.Scan(&key, &name); err != nil {
			return nil, fmt.Errorf("scanning version journey: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func (s *versionStore) query(ctx context.Context, query string, args ...any) ([]domain.DocumentVersion, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying versions: %w", err)
	}
	defer rows.Close()

	var versions []domain.DocumentVersion //nolint:prealloc // size unknown from query
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		versions = append(versions, *v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating versions: %w", err)
	}
	return versions, nil
}

func scanVersion(row scanner) (*domain.DocumentVersion, error) {
	var v domain.DocumentVersion
	var sourceType, status, createdAt string
	var effective sql.NullString

	err := row.Scan(&v.Journey, &v.ID, &sourceType, &v.DocumentURI, &v.Format, &effective, &v.Notes,
		&v.Summary, &createdAt, &status, &v.ChunkCount, &v.EmbeddingModel)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning version: %w", err)
	}

	v.SourceType = domain.SourceType(sourceType)
	v.Status = domain.VersionStatus(status)
	if v.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	eff, err := parseNullTime(effective)
	if err != nil {
		return nil, err
	}
	if !eff.IsZero() {
		v.EffectiveDate = &eff
	}
	return &v, nil
}

// isConstraintError matches primary key and unique violations.
func isConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "PRIMARY KEY") ||
		strings.Contains(msg, "constraint failed")
}
