package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure VersionService implements the interface.
var _ driving.VersionService = (*VersionService)(nil)

// journeyEnsurer creates a journey on first use.
type journeyEnsurer interface {
	Ensure(ctx context.Context, name string) (*domain.Journey, error)
}

// VersionService maintains the append-only version timeline of each journey.
type VersionService struct {
	versions driven.VersionStore
	chunks   driven.ChunkStore
	index    driven.VectorIndex
	journeys journeyEnsurer
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewVersionService creates a version service. journeys may be nil, in which
// case Record does not create missing journeys.
func NewVersionService(
	versions driven.VersionStore,
	chunks driven.ChunkStore,
	index driven.VectorIndex,
	journeys journeyEnsurer,
) *VersionService {
	return &VersionService{
		versions: versions,
		chunks:   chunks,
		index:    index,
		journeys: journeys,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetClock replaces the time source used for ids and retention.
func (s *VersionService) SetClock(now func() time.Time) {
	s.now = now
}

// Record appends a pending version. Ids collide only within the same second;
// the lock covers id generation and the append, nothing else.
func (s *VersionService) Record(ctx context.Context, req driving.RecordRequest) (*domain.DocumentVersion, error) {
	journey := strings.TrimSpace(req.Journey)
	if journey == "" {
		return nil, fmt.Errorf("%w: journey is required", domain.ErrInvalidInput)
	}
	if !req.SourceType.IsValid() {
		return nil, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, req.SourceType)
	}

	if s.journeys != nil {
		j, err := s.journeys.Ensure(ctx, journey)
		if err != nil {
			return nil, err
		}
		journey = j.Name
	}

	unlock := s.lock(journey)
	defer unlock()

	now := s.now().UTC()
	for attempt := 1; attempt <= domain.MaxVersionDisambiguator; attempt++ {
		id := domain.FormatVersionID(now, req.SourceType, attempt)
		exists, err := s.versions.VersionExists(ctx, journey, id)
		if err != nil {
			return nil, fmt.Errorf("checking version id: %w", err)
		}
		if exists {
			continue
		}

		v := &domain.DocumentVersion{
			ID:            id,
			Journey:       journey,
			SourceType:    req.SourceType,
			DocumentURI:   req.DocumentURI,
			Format:        req.Format,
			EffectiveDate: req.EffectiveDate,
			Notes:         req.Notes,
			Summary:       req.Summary,
			CreatedAt:     now,
			Status:        domain.VersionPending,
		}
		err = s.versions.AppendVersion(ctx, v)
		if errors.Is(err, domain.ErrVersionExists) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("recording version: %w", err)
		}
		logger.Debug("version recorded", "journey", journey, "version", id)
		return v, nil
	}

	return nil, domain.Fatal("versions.record", fmt.Errorf("%w: journey %q at %s",
		domain.ErrVersionIDExhausted, journey, now.Format(domain.VersionTimeLayout)))
}

// Timeline returns every version of the journey, pending ones included.
func (s *VersionService) Timeline(ctx context.Context, journey string) ([]domain.DocumentVersion, error) {
	versions, err := s.versions.ListVersions(ctx, journey)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	return versions, nil
}

// IndexedTimeline returns only the versions visible to queries.
func (s *VersionService) IndexedTimeline(ctx context.Context, journey string) ([]domain.DocumentVersion, error) {
	all, err := s.Timeline(ctx, journey)
	if err != nil {
		return nil, err
	}
	indexed := make([]domain.DocumentVersion, 0, len(all))
	for i := range all {
		if all[i].IsIndexed() {
			indexed = append(indexed, all[i])
		}
	}
	return indexed, nil
}

// Get returns one version or domain.ErrNotFound.
func (s *VersionService) Get(ctx context.Context, journey, versionID string) (*domain.DocumentVersion, error) {
	return s.versions.GetVersion(ctx, journey, versionID)
}

// MarkIndexed makes a version visible to queries.
func (s *VersionService) MarkIndexed(ctx context.Context, journey, versionID string, chunkCount int, model string) error {
	return s.versions.MarkIndexed(ctx, journey, versionID, chunkCount, model)
}

// Cleanup removes versions created strictly before now minus olderThanDays,
// deleting their vectors and chunks before the version record.
func (s *VersionService) Cleanup(ctx context.Context, journey string, olderThanDays int) (int, error) {
	if olderThanDays < 0 {
		return 0, fmt.Errorf("%w: older_than_days must not be negative", domain.ErrInvalidInput)
	}
	cutoff := s.now().UTC().Add(-time.Duration(olderThanDays) * 24 * time.Hour)

	stale, err := s.versions.ListVersionsCreatedBefore(ctx, journey, cutoff)
	if err != nil {
		return 0, fmt.Errorf("listing expired versions: %w", err)
	}

	removed := 0
	for i := range stale {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if err := s.removeVersion(ctx, &stale[i]); err != nil {
			return removed, err
		}
		removed++
	}
	if removed > 0 {
		logger.Info("versions cleaned up", "journey", journey, "removed", removed, "cutoff", cutoff)
	}
	return removed, nil
}

// removeVersion deletes a version and everything derived from it.
func (s *VersionService) removeVersion(ctx context.Context, v *domain.DocumentVersion) error {
	if _, err := s.index.Delete(ctx, v.Journey, v.ID); err != nil {
		return fmt.Errorf("deleting vectors of %s: %w", v.ID, err)
	}
	if _, err := s.chunks.DeleteChunks(ctx, v.Journey, v.ID); err != nil {
		return fmt.Errorf("deleting chunks of %s: %w", v.ID, err)
	}
	if err := s.versions.DeleteVersion(ctx, v.Journey, v.ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("deleting version %s: %w", v.ID, err)
	}
	return nil
}

// lock acquires the journey's id-generation mutex.
func (s *VersionService) lock(journey string) func() {
	key := domain.JourneyKey(journey)
	s.mu.Lock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}
