package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// RecordRequest describes a new document version.
type RecordRequest struct {
	Journey       string
	SourceType    domain.SourceType
	DocumentURI   string
	Format        string
	EffectiveDate *time.Time
	Notes         string
	Summary       string
}

// VersionService is the append-only per-journey version timeline.
type VersionService interface {
	// Record appends a pending version with a freshly generated id.
	Record(ctx context.Context, req RecordRequest) (*domain.DocumentVersion, error)

	// Timeline returns every version of the journey ascending by id.
	Timeline(ctx context.Context, journey string) ([]domain.DocumentVersion, error)

	// Get returns one version or domain.ErrNotFound.
	Get(ctx context.Context, journey, versionID string) (*domain.DocumentVersion, error)

	// MarkIndexed makes a version visible to queries.
	MarkIndexed(ctx context.Context, journey, versionID string, chunkCount int, model string) error

	// Cleanup removes versions created more than olderThanDays ago, with
	// their chunks, and returns how many versions were removed.
	Cleanup(ctx context.Context, journey string, olderThanDays int) (int, error)
}
