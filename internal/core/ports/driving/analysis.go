package driving

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// ChangeAnalyzer classifies the delta between two versions.
type ChangeAnalyzer interface {
	Analyze(ctx context.Context, journey, fromVersion, toVersion string) (*domain.ChangeAssessment, error)
}

// GenerateOptions configures test case generation.
type GenerateOptions struct {
	// MaxCases caps the number of generated cases.
	MaxCases int

	// Focus is the retrieval query; empty uses a generic requirements query.
	Focus string

	// TokenBudget bounds the context sent to the model.
	TokenBudget int
}

// TestGenerator produces QA test cases from journey context.
type TestGenerator interface {
	// Generate produces cases from the context most relevant to opts.Focus.
	Generate(ctx context.Context, journey string, opts GenerateOptions) ([]domain.TestCase, error)

	// GenerateAll walks every indexed chunk of the journey in batches.
	// Cancelling ctx between batches discards all output.
	GenerateAll(ctx context.Context, journey string, casesPerBatch int, progress ProgressFunc) ([]domain.TestCase, error)
}
