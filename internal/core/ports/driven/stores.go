package driven

import (
	"context"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// JourneyStore persists journeys. Names are matched case-insensitively.
type JourneyStore interface {
	// SaveJourney creates or updates a journey.
	SaveJourney(ctx context.Context, journey *domain.Journey) error

	// GetJourney returns the journey or domain.ErrNotFound.
	GetJourney(ctx context.Context, name string) (*domain.Journey, error)

	// ListJourneys returns all journeys ordered by name.
	ListJourneys(ctx context.Context) ([]domain.Journey, error)

	// DeleteJourney removes the journey record only.
	DeleteJourney(ctx context.Context, name string) error
}

// VersionStore persists document versions. It is append-only: the only
// mutation is MarkIndexed.
type VersionStore interface {
	// AppendVersion stores a new version. An existing id in the same journey
	// fails with domain.ErrVersionExists.
	AppendVersion(ctx context.Context, version *domain.DocumentVersion) error

	// GetVersion returns the version or domain.ErrNotFound.
	GetVersion(ctx context.Context, journey, versionID string) (*domain.DocumentVersion, error)

	// ListVersions returns the journey's versions ascending by id.
	ListVersions(ctx context.Context, journey string) ([]domain.DocumentVersion, error)

	// VersionExists reports whether the id is taken in the journey.
	VersionExists(ctx context.Context, journey, versionID string) (bool, error)

	// MarkIndexed flips a pending version to indexed.
	MarkIndexed(ctx context.Context, journey, versionID string, chunkCount int, model string) error

	// ListVersionsCreatedBefore returns versions created strictly before cutoff.
	ListVersionsCreatedBefore(ctx context.Context, journey string, cutoff time.Time) ([]domain.DocumentVersion, error)

	// DeleteVersion removes a version record.
	DeleteVersion(ctx context.Context, journey, versionID string) error

	// ListVersionJourneys returns every journey name that owns versions,
	// including orphans whose journey record was deleted.
	ListVersionJourneys(ctx context.Context) ([]string, error)
}

// ChunkStore persists chunk text, spans and embeddings. It is the
// reconstructible source of the in-process vector index and of full-version
// context.
type ChunkStore interface {
	// SaveChunks replaces the chunk set of one version atomically.
	SaveChunks(ctx context.Context, journey, versionID string, chunks []domain.Chunk) error

	// GetChunks returns a version's chunks in sequence order.
	GetChunks(ctx context.Context, journey, versionID string) ([]domain.Chunk, error)

	// ListChunks returns every chunk of the journey.
	ListChunks(ctx context.Context, journey string) ([]domain.Chunk, error)

	// DeleteChunks removes a version's chunks, or all of the journey's when
	// versionID is empty, and returns the number removed.
	DeleteChunks(ctx context.Context, journey, versionID string) (int, error)
}

// NamespaceStore records the embedding dimension of each journey namespace.
type NamespaceStore interface {
	// GetNamespace returns the namespace or domain.ErrNotFound.
	GetNamespace(ctx context.Context, journey string) (*domain.Namespace, error)

	// SaveNamespace records the namespace if absent. An existing namespace
	// with a different dimension fails with domain.ErrDimensionMismatch.
	SaveNamespace(ctx context.Context, ns *domain.Namespace) error

	// DeleteNamespace forgets the namespace.
	DeleteNamespace(ctx context.Context, journey string) error
}

// TaskStore persists background task status.
type TaskStore interface {
	// SaveTask creates or replaces a task.
	SaveTask(ctx context.Context, task *domain.Task) error

	// GetTask returns the task or domain.ErrNotFound.
	GetTask(ctx context.Context, id string) (*domain.Task, error)

	// ListTasks returns tasks newest first.
	ListTasks(ctx context.Context) ([]domain.Task, error)

	// DeleteTasksEndedBefore removes terminal tasks that ended before cutoff.
	DeleteTasksEndedBefore(ctx context.Context, cutoff time.Time) (int, error)
}
