package domain

import (
	"encoding/json"
	"time"
)

// TaskKind names a background task type.
type TaskKind string

// Background task kinds.
const (
	TaskReindex        TaskKind = "reindex"
	TaskTestGeneration TaskKind = "test_generation"
	TaskCleanup        TaskKind = "cleanup"
	TaskImpactAnalysis TaskKind = "impact_analysis"
)

// TaskStatus is the lifecycle state of a background task.
type TaskStatus string

// Task statuses. Completed, failed and cancelled are terminal.
const (
	TaskPending   TaskStatus = "pending"
	TaskRunning   TaskStatus = "running"
	TaskCompleted TaskStatus = "completed"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// IsTerminal returns true once the task can no longer change.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskCancelled
}

// Task is a long-running operation polled by id.
type Task struct {
	// ID is the task identifier.
	ID string `json:"id"`

	// Kind is the task type.
	Kind TaskKind `json:"kind"`

	// Journey is the journey the task works on, if any.
	Journey string `json:"journey,omitempty"`

	// Status is the current lifecycle state.
	Status TaskStatus `json:"status"`

	// Done and Total report progress in task-specific units.
	Done  int `json:"done"`
	Total int `json:"total"`

	// Result is the JSON-encoded output of a completed task.
	Result json.RawMessage `json:"result,omitempty"`

	// Error is the failure message of a failed task.
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	StartedAt time.Time `json:"started_at,omitempty"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
}

// Progress returns the completed fraction in [0,1].
func (t *Task) Progress() float64 {
	if t.Total <= 0 {
		if t.Status == TaskCompleted {
			return 1
		}
		return 0
	}
	p := float64(t.Done) / float64(t.Total)
	if p > 1 {
		return 1
	}
	return p
}
