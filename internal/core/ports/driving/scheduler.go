package driving

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// RetentionScheduler runs the periodic retention jobs.
type RetentionScheduler interface {
	// Start begins running jobs on the configured schedule.
	Start() error

	// Stop halts the scheduler and waits for a running job.
	Stop()

	// RunOnce executes every enabled job immediately.
	RunOnce(ctx context.Context) []domain.JobResult

	// LastResults returns the latest result of each job.
	LastResults() []domain.JobResult
}
