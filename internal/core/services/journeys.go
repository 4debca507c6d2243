package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure JourneyService implements the interface.
var _ driving.JourneyService = (*JourneyService)(nil)

// JourneyService manages journeys and applies the deletion policy.
type JourneyService struct {
	journeys   driven.JourneyStore
	versions   driven.VersionStore
	chunks     driven.ChunkStore
	namespaces driven.NamespaceStore
	index      driven.VectorIndex
	policy     domain.JourneyDeletePolicy
	now        func() time.Time
}

// NewJourneyService creates a journey service. An invalid policy falls back
// to orphaning.
func NewJourneyService(
	journeys driven.JourneyStore,
	versions driven.VersionStore,
	chunks driven.ChunkStore,
	namespaces driven.NamespaceStore,
	index driven.VectorIndex,
	policy domain.JourneyDeletePolicy,
) *JourneyService {
	if !policy.IsValid() {
		policy = domain.JourneyDeleteOrphan
	}
	return &JourneyService{
		journeys:   journeys,
		versions:   versions,
		chunks:     chunks,
		namespaces: namespaces,
		index:      index,
		policy:     policy,
		now:        time.Now,
	}
}

// SetClock replaces the time source.
func (s *JourneyService) SetClock(now func() time.Time) {
	s.now = now
}

// Create adds a journey.
func (s *JourneyService) Create(ctx context.Context, name, description string) (*domain.Journey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: journey name is required", domain.ErrInvalidInput)
	}

	_, err := s.journeys.GetJourney(ctx, name)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: %q", domain.ErrJourneyExists, name)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	j := &domain.Journey{Name: name, Description: description, CreatedAt: s.now().UTC()}
	if err := s.journeys.SaveJourney(ctx, j); err != nil {
		return nil, err
	}
	logger.Info("journey created", "journey", name)
	return j, nil
}

// Ensure returns the journey, creating it when missing.
func (s *JourneyService) Ensure(ctx context.Context, name string) (*domain.Journey, error) {
	j, err := s.journeys.GetJourney(ctx, name)
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	j, err = s.Create(ctx, name, "")
	if errors.Is(err, domain.ErrJourneyExists) {
		// Lost a race with a concurrent ingest.
		return s.journeys.GetJourney(ctx, name)
	}
	return j, err
}

// Update changes a journey's description.
func (s *JourneyService) Update(ctx context.Context, name, description string) (*domain.Journey, error) {
	j, err := s.journeys.GetJourney(ctx, name)
	if err != nil {
		return nil, err
	}
	j.Description = description
	if err := s.journeys.SaveJourney(ctx, j); err != nil {
		return nil, err
	}
	return j, nil
}

// Get returns a journey or domain.ErrNotFound.
func (s *JourneyService) Get(ctx context.Context, name string) (*domain.Journey, error) {
	return s.journeys.GetJourney(ctx, name)
}

// List returns all journeys.
func (s *JourneyService) List(ctx context.Context) ([]domain.Journey, error) {
	return s.journeys.ListJourneys(ctx)
}

// Delete removes a non-default journey. With the cascade policy every
// version, chunk and vector of the journey goes too; with orphan they stay
// and reattach if the journey is recreated.
func (s *JourneyService) Delete(ctx context.Context, name string) error {
	j, err := s.journeys.GetJourney(ctx, name)
	if err != nil {
		return err
	}
	if j.IsDefault {
		return fmt.Errorf("%w: %q", domain.ErrDefaultJourney, j.Name)
	}

	if s.policy == domain.JourneyDeleteCascade {
		if err := s.cascade(ctx, j.Name); err != nil {
			return err
		}
	}

	if err := s.journeys.DeleteJourney(ctx, j.Name); err != nil {
		return err
	}
	logger.Info("journey deleted", "journey", j.Name, "policy", s.policy)
	return nil
}

func (s *JourneyService) cascade(ctx context.Context, journey string) error {
	versions, err := s.versions.ListVersions(ctx, journey)
	if err != nil {
		return fmt.Errorf("listing versions: %w", err)
	}
	if _, err := s.index.Delete(ctx, journey, ""); err != nil {
		return fmt.Errorf("clearing vector namespace: %w", err)
	}
	if _, err := s.chunks.DeleteChunks(ctx, journey, ""); err != nil {
		return fmt.Errorf("deleting chunks: %w", err)
	}
	for i := range versions {
		if err := s.versions.DeleteVersion(ctx, journey, versions[i].ID); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("deleting version %s: %w", versions[i].ID, err)
		}
	}
	if err := s.namespaces.DeleteNamespace(ctx, journey); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("deleting namespace: %w", err)
	}
	return nil
}

// EnsureDefaults seeds the default journeys that do not exist yet.
func (s *JourneyService) EnsureDefaults(ctx context.Context) error {
	for _, d := range domain.DefaultJourneys() {
		_, err := s.journeys.GetJourney(ctx, d.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		j := d
		j.CreatedAt = s.now().UTC()
		if err := s.journeys.SaveJourney(ctx, &j); err != nil {
			return fmt.Errorf("seeding journey %q: %w", d.Name, err)
		}
	}
	return nil
}
