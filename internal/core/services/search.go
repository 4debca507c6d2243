package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// SearchService answers similarity queries over a journey.
type SearchService struct {
	assembler driving.ContextAssembler
	index     driven.VectorIndex
}

// NewSearchService creates a new search service.
func NewSearchService(assembler driving.ContextAssembler, index driven.VectorIndex) *SearchService {
	return &SearchService{assembler: assembler, index: index}
}

// Search returns the context bundle for a query, optionally restricted to
// some source types. A blank query returns an empty bundle.
func (s *SearchService) Search(
	ctx context.Context, journey, query string, opts driving.SearchOptions,
) (*domain.ContextBundle, error) {
	logger.Section("Search Execution")

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("empty query, returning no results")
		return &domain.ContextBundle{Journey: journey, Items: []domain.ContextItem{}}, nil
	}

	for _, st := range opts.SourceTypes {
		if !st.IsValid() {
			return nil, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, st)
		}
	}

	var filter *domain.ChunkFilter
	if len(opts.SourceTypes) > 0 {
		filter = &domain.ChunkFilter{SourceTypes: opts.SourceTypes}
		logger.Debug("source filter", "source_types", opts.SourceTypes)
	}

	bundle, err := s.assembler.Assemble(ctx, driving.AssembleRequest{
		Journey:     journey,
		Query:       query,
		TopK:        opts.TopK,
		TokenBudget: opts.TokenBudget,
		Filter:      filter,
	})
	if err != nil {
		logger.Warn("search failed", "journey", journey, "error", err)
		return nil, fmt.Errorf("search: %w", err)
	}
	return bundle, nil
}

// Stats describes the journey's vector namespace.
func (s *SearchService) Stats(ctx context.Context, journey string) (domain.IndexStats, error) {
	return s.index.Stats(ctx, journey)
}
