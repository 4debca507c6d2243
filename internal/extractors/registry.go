package extractors

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure Registry implements the interface.
var _ driven.TextExtractor = (*Registry)(nil)

// Registry dispatches documents to format extractors.
type Registry struct {
	blobs driven.BlobStore

	mu       sync.RWMutex
	byFormat map[string]driven.FormatExtractor
}

// NewRegistry creates a registry reading documents from blobs.
func NewRegistry(blobs driven.BlobStore, extractors ...driven.FormatExtractor) *Registry {
	r := &Registry{
		blobs:    blobs,
		byFormat: make(map[string]driven.FormatExtractor),
	}
	for _, e := range extractors {
		r.Register(e)
	}
	return r
}

// Register adds an extractor. A later registration for the same format wins.
func (r *Registry) Register(e driven.FormatExtractor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, f := range e.Formats() {
		r.byFormat[f] = e
	}
}

// Formats returns the supported format keys, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byFormat))
	for f := range r.byFormat {
		out = append(out, f)
	}
	sort.Strings(out)
	return out
}

// Supports reports whether a document with this hint and URI can be extracted.
func (r *Registry) Supports(formatHint, uri string) bool {
	_, _, err := r.lookup(formatHint, uri)
	return err == nil
}

// Extract loads uri from the blob store and returns its text.
func (r *Registry) Extract(ctx context.Context, uri, formatHint string) (string, error) {
	format, ext, err := r.lookup(formatHint, uri)
	if err != nil {
		return "", err
	}

	data, err := r.blobs.Get(ctx, uri)
	if err != nil {
		return "", fmt.Errorf("loading %s: %w", uri, err)
	}
	return r.extract(ctx, ext, &domain.RawDocument{URI: uri, Format: format, Content: data})
}

// ExtractBytes extracts text from in-memory content without the blob store.
func (r *Registry) ExtractBytes(ctx context.Context, name, formatHint string, data []byte) (string, error) {
	format, ext, err := r.lookup(formatHint, name)
	if err != nil {
		return "", err
	}
	return r.extract(ctx, ext, &domain.RawDocument{URI: name, Format: format, Content: data})
}

func (r *Registry) extract(ctx context.Context, ext driven.FormatExtractor, raw *domain.RawDocument) (string, error) {
	text, err := ext.Extract(ctx, raw)
	if err != nil {
		return "", fmt.Errorf("extracting %s (%s): %w", raw.URI, raw.Format, err)
	}
	text = strings.ToValidUTF8(text, "\uFFFD")
	logger.Debug("extracted document", "uri", raw.URI, "format", raw.Format, "bytes", len(text))
	return text, nil
}

func (r *Registry) lookup(formatHint, uri string) (string, driven.FormatExtractor, error) {
	format := domain.NormaliseFormat(formatHint, uri)
	r.mu.RLock()
	ext, ok := r.byFormat[format]
	r.mu.RUnlock()
	if format == "" || !ok {
		name := formatHint
		if name == "" {
			name = uri
		}
		return "", nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedFormat, name)
	}
	return format, ext, nil
}
