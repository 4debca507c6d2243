package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure ContextAssembler implements the interface.
var _ driving.ContextAssembler = (*ContextAssembler)(nil)

// Fallback retrieval defaults when the settings leave them unset.
const (
	defaultTopK        = 10
	defaultTokenBudget = 4000
)

// ContextAssembler retrieves, ranks, deduplicates and budgets chunks.
type ContextAssembler struct {
	embedder driven.EmbeddingService
	index    driven.VectorIndex
	versions driven.VersionStore
	chunks   driven.ChunkStore
	defaults domain.RetrievalSettings
}

// NewContextAssembler creates an assembler. embedder may be nil, in which
// case similarity assembly fails with domain.ErrEmbeddingUnavailable.
func NewContextAssembler(
	embedder driven.EmbeddingService,
	index driven.VectorIndex,
	versions driven.VersionStore,
	chunks driven.ChunkStore,
	defaults domain.RetrievalSettings,
) *ContextAssembler {
	if defaults.TopK <= 0 {
		defaults.TopK = defaultTopK
	}
	if defaults.TokenBudget <= 0 {
		defaults.TokenBudget = defaultTokenBudget
	}
	return &ContextAssembler{
		embedder: embedder,
		index:    index,
		versions: versions,
		chunks:   chunks,
		defaults: defaults,
	}
}

// Defaults returns the effective retrieval defaults.
func (a *ContextAssembler) Defaults() domain.RetrievalSettings {
	return a.defaults
}

// Assemble embeds the query, queries the journey namespace, drops chunks of
// versions that are not indexed, removes overlapping duplicates and packs
// the survivors into the token budget in rank order.
func (a *ContextAssembler) Assemble(ctx context.Context, req driving.AssembleRequest) (*domain.ContextBundle, error) {
	if strings.TrimSpace(req.Journey) == "" {
		return nil, fmt.Errorf("%w: journey is required", domain.ErrInvalidInput)
	}
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}
	if a.embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	topK := req.TopK
	if topK <= 0 {
		topK = a.defaults.TopK
	}
	budget := req.TokenBudget
	if budget <= 0 {
		budget = a.defaults.TokenBudget
	}

	vector, err := a.embedder.Embed(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}

	hits, err := a.index.Query(ctx, req.Journey, vector, topK, req.Filter)
	if err != nil {
		return nil, fmt.Errorf("querying vector index: %w", err)
	}

	visible, err := a.visible(ctx, req.Journey, hits)
	if err != nil {
		return nil, err
	}

	items, used, truncated := pack(dedupe(visible), budget)
	logger.Debug("context assembled",
		"journey", req.Journey, "considered", len(hits), "selected", len(items),
		"tokens", used, "budget", budget, "truncated", truncated)

	return &domain.ContextBundle{
		Journey:     req.Journey,
		Query:       req.Query,
		Items:       items,
		Considered:  len(hits),
		TokenBudget: budget,
		TokensUsed:  used,
		Truncated:   truncated,
	}, nil
}

// AssembleForVersions returns the full chunk set of each version in
// document order, unscored and unbudgeted.
func (a *ContextAssembler) AssembleForVersions(
	ctx context.Context, journey, fromVersion, toVersion string,
) (*domain.ContextBundle, *domain.ContextBundle, error) {
	from, err := a.versionBundle(ctx, journey, fromVersion)
	if err != nil {
		return nil, nil, err
	}
	to, err := a.versionBundle(ctx, journey, toVersion)
	if err != nil {
		return nil, nil, err
	}
	return from, to, nil
}

func (a *ContextAssembler) versionBundle(ctx context.Context, journey, versionID string) (*domain.ContextBundle, error) {
	v, err := a.versions.GetVersion(ctx, journey, versionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Fatal("assembler.versions",
			fmt.Errorf("%w: version %q in journey %q", domain.ErrNotFound, versionID, journey))
	}
	if err != nil {
		return nil, fmt.Errorf("loading version %s: %w", versionID, err)
	}
	if !v.IsIndexed() {
		return nil, domain.Fatal("assembler.versions",
			fmt.Errorf("%w: version %q in journey %q", domain.ErrNotIndexed, versionID, journey))
	}

	chunks, err := a.chunks.GetChunks(ctx, journey, versionID)
	if err != nil {
		return nil, fmt.Errorf("loading chunks of %s: %w", versionID, err)
	}
	sort.SliceStable(chunks, func(i, j int) bool { return chunks[i].Sequence < chunks[j].Sequence })

	bundle := &domain.ContextBundle{
		Journey:    journey,
		VersionID:  versionID,
		Items:      make([]domain.ContextItem, 0, len(chunks)),
		Considered: len(chunks),
	}
	for i := range chunks {
		chunks[i].Embedding = nil
		bundle.Items = append(bundle.Items, domain.ContextItem{Chunk: chunks[i], Score: 1, Rank: i + 1})
		bundle.TokensUsed += chunks[i].TokenCount
	}
	return bundle, nil
}

// visible drops hits whose version is missing or still pending.
func (a *ContextAssembler) visible(ctx context.Context, journey string, hits []domain.ScoredChunk) ([]domain.ScoredChunk, error) {
	indexed := make(map[string]bool)
	out := make([]domain.ScoredChunk, 0, len(hits))
	for i := range hits {
		id := hits[i].Chunk.VersionID
		ok, seen := indexed[id]
		if !seen {
			v, err := a.versions.GetVersion(ctx, journey, id)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				ok = false
			case err != nil:
				return nil, fmt.Errorf("checking version %s: %w", id, err)
			default:
				ok = v.IsIndexed()
			}
			indexed[id] = ok
		}
		if ok {
			out = append(out, hits[i])
		}
	}
	return out, nil
}

// dedupe keeps the best-ranked chunk among chunks of one version that cover
// the same new content. Adjacent chunks sharing only their overlap window
// are all kept.
func dedupe(hits []domain.ScoredChunk) []domain.ScoredChunk {
	domain.SortScored(hits)
	kept := make([]domain.ScoredChunk, 0, len(hits))
	for i := range hits {
		dup := false
		for k := range kept {
			if hits[i].Chunk.Overlaps(&kept[k].Chunk) {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, hits[i])
		}
	}
	return kept
}

// pack selects hits in order while they fit the budget. A hit that would
// overflow is skipped whole and marks the result truncated.
func pack(hits []domain.ScoredChunk, budget int) (items []domain.ContextItem, used int, truncated bool) {
	items = make([]domain.ContextItem, 0, len(hits))
	for i := range hits {
		cost := hits[i].Chunk.TokenCount
		if used+cost > budget {
			truncated = true
			continue
		}
		used += cost
		items = append(items, domain.ContextItem{
			Chunk: hits[i].Chunk,
			Score: hits[i].Score,
			Rank:  len(items) + 1,
		})
	}
	return items, used, truncated
}
