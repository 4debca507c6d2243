package driving

import (
	"context"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// IngestRequest describes a document to ingest. Either Data or DocumentURI
// must be set.
type IngestRequest struct {
	Journey       string
	SourceType    domain.SourceType
	Filename      string
	Data          []byte
	DocumentURI   string
	Format        string
	EffectiveDate *time.Time
	Notes         string
}

// ProgressFunc reports done out of total units of work.
type ProgressFunc func(done, total int)

// IngestService runs the upload to indexed-version pipeline.
type IngestService interface {
	// Ingest stores, extracts, records, chunks, embeds and indexes a document.
	Ingest(ctx context.Context, req IngestRequest) (*domain.DocumentVersion, error)

	// Reindex rebuilds the chunks and vectors of an existing version.
	// Cancelling ctx between chunk units discards partial output.
	Reindex(ctx context.Context, journey, versionID string, progress ProgressFunc) (int, error)
}
