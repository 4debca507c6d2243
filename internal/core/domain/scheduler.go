package domain

import "time"

// Scheduled job identifiers.
const (
	// JobVersionRetention removes versions older than the retention window.
	JobVersionRetention = "version-retention"

	// JobTaskPrune drops finished background tasks older than the task TTL.
	JobTaskPrune = "task-prune"
)

// JobResult represents the outcome of one scheduled job run.
type JobResult struct {
	// JobID identifies which job was run.
	JobID string

	// StartedAt is when the run started.
	StartedAt time.Time

	// EndedAt is when the run completed.
	EndedAt time.Time

	// Success indicates whether the run completed without error.
	Success bool

	// Error contains the error message if Success is false.
	Error string

	// ItemsProcessed counts removed versions or pruned tasks.
	ItemsProcessed int
}
