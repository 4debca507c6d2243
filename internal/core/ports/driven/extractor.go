package driven

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// TextExtractor converts a stored document into plain text.
type TextExtractor interface {
	// Extract loads uri from the blob store and returns its text.
	// formatHint may be empty, in which case the URI extension decides.
	// Unknown formats fail with domain.ErrUnsupportedFormat.
	Extract(ctx context.Context, uri, formatHint string) (string, error)
}

// FormatExtractor handles one family of document formats.
type FormatExtractor interface {
	// Formats returns the format keys this extractor handles (see domain.NormaliseFormat).
	Formats() []string

	// Extract returns the plain text of the document.
	Extract(ctx context.Context, raw *domain.RawDocument) (string, error)
}
