package driving

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// JourneyService manages business-process journeys.
type JourneyService interface {
	// Create adds a journey. Duplicate names (case-insensitive) fail with
	// domain.ErrJourneyExists.
	Create(ctx context.Context, name, description string) (*domain.Journey, error)

	// Ensure returns the journey, creating it implicitly when missing.
	Ensure(ctx context.Context, name string) (*domain.Journey, error)

	// Update changes a journey's description.
	Update(ctx context.Context, name, description string) (*domain.Journey, error)

	// Get returns a journey or domain.ErrNotFound.
	Get(ctx context.Context, name string) (*domain.Journey, error)

	// List returns all journeys.
	List(ctx context.Context) ([]domain.Journey, error)

	// Delete removes a non-default journey, applying the configured policy
	// to its versions. Default journeys fail with domain.ErrDefaultJourney.
	Delete(ctx context.Context, name string) error

	// EnsureDefaults seeds the default journeys.
	EnsureDefaults(ctx context.Context) error
}
