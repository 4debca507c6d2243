package driving

import (
	"context"
	"encoding/json"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// TaskFunc is the body of a background task. It reports progress and
// returns a JSON-encodable result. It must return promptly once ctx is done.
type TaskFunc func(ctx context.Context, progress ProgressFunc) (any, error)

// TaskRunner executes long operations in the background.
type TaskRunner interface {
	// Submit starts fn and returns the pending task immediately.
	Submit(ctx context.Context, kind domain.TaskKind, journey string, fn TaskFunc) (*domain.Task, error)

	// Get returns the task status or domain.ErrNotFound.
	Get(ctx context.Context, id string) (*domain.Task, error)

	// List returns all known tasks newest first.
	List(ctx context.Context) ([]domain.Task, error)

	// Cancel requests cooperative cancellation.
	Cancel(ctx context.Context, id string) error

	// Wait blocks until the task ends or ctx is done.
	Wait(ctx context.Context, id string) (*domain.Task, error)
}

// DecodeResult unmarshals a completed task's result.
func DecodeResult(task *domain.Task, out any) error {
	return json.Unmarshal(task.Result, out)
}
