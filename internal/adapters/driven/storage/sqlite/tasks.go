package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// taskStore implements driven.TaskStore.
type taskStore struct {
	store *Store
}

var _ driven.TaskStore = (*taskStore)(nil)

const taskColumns = `id, kind, journey, status, done, total, result, error, created_at, started_at, ended_at`

// GetTask retrieves a background task by ID.
func (s *taskStore) GetTask(ctx context.Context, id string) (*domain.Task, error) {
	row := s.store.db.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	return scanTask(row)
}

// ListTasks returns all tasks, newest first.
func (s *taskStore) ListTasks(ctx context.Context) ([]domain.Task, error) {
	rows, err := s.store.db.QueryContext(ctx,
		"SELECT "+taskColumns+" FROM tasks ORDER BY created_at DESC, id")
	if err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	defer rows.Close()

	var tasks []domain.Task //nolint:prealloc // size unknown from query
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tasks: %w", err)
	}

	return tasks, nil
}

// SaveTask persists a task's state.
// Creates or updates the task based on ID.
func (s *taskStore) SaveTask(ctx context.Context, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidInput
	}

	var result sql.NullString
	if len(task.Result) > 0 {
		result = sql.NullString{String: string(task.Result), Valid: true}
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO tasks (id, kind, journey, status, done, total, result, error, created_at, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			done = excluded.done,
			total = excluded.total,
			result = excluded.result,
			error = excluded.error,
			started_at = excluded.started_at,
			ended_at = excluded.ended_at
	`,
		task.ID, string(task.Kind), task.Journey, string(task.Status), task.Done, task.Total,
		result, task.Error, formatTime(task.CreatedAt), nullTime(task.StartedAt), nullTime(task.EndedAt),
	)
	if err != nil {
		return fmt.Errorf("saving task: %w", err)
	}

	return nil
}

// DeleteTasksEndedBefore removes terminal tasks that ended before cutoff.
func (s *taskStore) DeleteTasksEndedBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM tasks
		WHERE status IN (?, ?, ?) AND ended_at IS NOT NULL AND ended_at < ?
	`, string(domain.TaskCompleted), string(domain.TaskFailed), string(domain.TaskCancelled), formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("pruning tasks: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func scanTask(row scanner) (*domain.Task, error) {
	var task domain.Task
	var kind, status, createdAt string
	var result, startedAt, endedAt sql.NullString

	err := row.Scan(&task.ID, &kind, &task.Journey, &status, &task.Done, &task.Total,
		&result, &task.Error, &createdAt, &startedAt, &endedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning task: %w", err)
	}

	task.Kind = domain.TaskKind(kind)
	task.Status = domain.TaskStatus(status)
	if result.Valid {
		task.Result = []byte(result.String)
	}
	if task.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if task.StartedAt, err = parseNullTime(startedAt); err != nil {
		return nil, err
	}
	if task.EndedAt, err = parseNullTime(endedAt); err != nil {
		return nil, err
	}
	return &task, nil
}
