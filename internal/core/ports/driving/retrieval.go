package driving

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// AssembleRequest configures a similarity-driven context assembly.
// Zero TopK and TokenBudget take the configured defaults.
type AssembleRequest struct {
	Journey     string
	Query       string
	TopK        int
	TokenBudget int
	Filter      *domain.ChunkFilter
}

// ContextAssembler builds ranked, deduplicated, budgeted context.
type ContextAssembler interface {
	// Assemble retrieves and packs context for a query.
	Assemble(ctx context.Context, req AssembleRequest) (*domain.ContextBundle, error)

	// AssembleForVersions returns the full chunk sets of two versions in
	// document order.
	AssembleForVersions(ctx context.Context, journey, fromVersion, toVersion string) (
		*domain.ContextBundle, *domain.ContextBundle, error)
}

// SearchOptions narrows a search.
type SearchOptions struct {
	TopK        int
	TokenBudget int
	SourceTypes []domain.SourceType
}

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// Search returns the context bundle for a query.
	Search(ctx context.Context, journey, query string, opts SearchOptions) (*domain.ContextBundle, error)

	// Stats describes the journey's vector namespace.
	Stats(ctx context.Context, journey string) (domain.IndexStats, error)
}

// FactChecker answers whether a claim is backed by a journey's documents.
type FactChecker interface {
	Check(ctx context.Context, journey, claim string) (*domain.FactCheckResult, error)
}
