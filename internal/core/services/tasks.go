package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure TaskManager implements the interface.
var _ driving.TaskRunner = (*TaskManager)(nil)

// taskPollInterval is how often Wait re-reads a task owned by another process.
const taskPollInterval = 200 * time.Millisecond

// TaskManager runs task functions on goroutines and records their status
// in a TaskStore.
type TaskManager struct {
	store driven.TaskStore
	now   func() time.Time

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
	done    map[string]chan struct{}
	wg      sync.WaitGroup
}

// NewTaskManager creates a task manager backed by store.
func NewTaskManager(store driven.TaskStore) *TaskManager {
	return &TaskManager{
		store:   store,
		now:     time.Now,
		cancels: make(map[string]context.CancelFunc),
		done:    make(map[string]chan struct{}),
	}
}

// SetClock replaces the time source.
func (m *TaskManager) SetClock(now func() time.Time) {
	m.now = now
}

// Submit records a pending task and starts fn. The task outlives ctx; use
// Cancel to stop it.
func (m *TaskManager) Submit(
	ctx context.Context, kind domain.TaskKind, journey string, fn driving.TaskFunc,
) (*domain.Task, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: task function is required", domain.ErrInvalidInput)
	}

	task := &domain.Task{
		ID:        uuid.New().String(),
		Kind:      kind,
		Journey:   journey,
		Status:    domain.TaskPending,
		CreatedAt: m.now(),
	}
	if err := m.store.SaveTask(ctx, task); err != nil {
		return nil, fmt.Errorf("saving task: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	m.mu.Lock()
	m.cancels[task.ID] = cancel
	m.done[task.ID] = done
	m.mu.Unlock()

	snapshot := *task
	m.wg.Add(1)
	go m.run(runCtx, snapshot, fn, done)

	logger.Debug("task submitted", "id", task.ID, "kind", kind, "journey", journey)
	return task, nil
}

func (m *TaskManager) run(ctx context.Context, task domain.Task, fn driving.TaskFunc, done chan struct{}) {
	defer m.wg.Done()
	defer close(done)
	defer m.forget(task.ID)

	var mu sync.Mutex
	save := func() {
		t := task
		if err := m.store.SaveTask(context.Background(), &t); err != nil {
			logger.Warn("saving task status failed", "id", task.ID, "error", err)
		}
	}

	mu.Lock()
	task.Status = domain.TaskRunning
	task.StartedAt = m.now()
	save()
	mu.Unlock()

	progress := func(d, total int) {
		mu.Lock()
		defer mu.Unlock()
		if task.Status != domain.TaskRunning {
			return
		}
		task.Done, task.Total = d, total
		save()
	}

	result, err := m.call(ctx, fn, progress)

	mu.Lock()
	defer mu.Unlock()
	switch {
	case ctx.Err() != nil && (err == nil || errors.Is(err, context.Canceled)):
		task.Status = domain.TaskCancelled
	case err != nil:
		task.Status = domain.TaskFailed
		task.Error = err.Error()
	default:
		raw, mErr := json.Marshal(result)
		if mErr != nil {
			task.Status = domain.TaskFailed
			task.Error = fmt.Sprintf("encoding result: %v", mErr)
			break
		}
		task.Status = domain.TaskCompleted
		task.Result = raw
	}
	task.EndedAt = m.now()
	save()

	logger.Info("task finished", "id", task.ID, "kind", task.Kind, "status", task.Status)
}

// call runs fn and converts a panic into an error.
func (m *TaskManager) call(
	ctx context.Context, fn driving.TaskFunc, progress driving.ProgressFunc,
) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("task panicked", "panic", r, "stack", string(debug.Stack()))
			result, err = nil, fmt.Errorf("task panicked: %v", r)
		}
	}()
	return fn(ctx, progress)
}

func (m *TaskManager) forget(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if cancel, ok := m.cancels[id]; ok {
		cancel()
		delete(m.cancels, id)
	}
	delete(m.done, id)
}

// Get returns the current status of a task.
func (m *TaskManager) Get(ctx context.Context, id string) (*domain.Task, error) {
	return m.store.GetTask(ctx, id)
}

// List returns all tasks newest first.
func (m *TaskManager) List(ctx context.Context) ([]domain.Task, error) {
	return m.store.ListTasks(ctx)
}

// Cancel stops a running task. A task left pending or running by a process
// that exited is marked cancelled directly.
func (m *TaskManager) Cancel(ctx context.Context, id string) error {
	task, err := m.store.GetTask(ctx, id)
	if err != nil {
		return err
	}
	if task.Status.IsTerminal() {
		return fmt.Errorf("%w: task %s is %s", domain.ErrTaskFinished, id, task.Status)
	}

	m.mu.Lock()
	cancel, ok := m.cancels[id]
	m.mu.Unlock()
	if ok {
		cancel()
		return nil
	}

	task.Status = domain.TaskCancelled
	task.EndedAt = m.now()
	return m.store.SaveTask(ctx, task)
}

// Wait blocks until the task reaches a terminal status.
func (m *TaskManager) Wait(ctx context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	done, ok := m.done[id]
	m.mu.Unlock()

	if ok {
		select {
		case <-done:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return m.store.GetTask(ctx, id)
	}

	ticker := time.NewTicker(taskPollInterval)
	defer ticker.Stop()
	for {
		task, err := m.store.GetTask(ctx, id)
		if err != nil {
			return nil, err
		}
		if task.Status.IsTerminal() {
			return task, nil
		}
		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Drain waits for running tasks to finish on their own, or until ctx ends.
func (m *TaskManager) Drain(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Shutdown cancels every running task and waits for them to record their
// final status.
func (m *TaskManager) Shutdown() {
	m.mu.Lock()
	for _, cancel := range m.cancels {
		cancel()
	}
	m.mu.Unlock()
	m.wg.Wait()
}

// Prune removes finished tasks that ended more than ttl ago.
func (m *TaskManager) Prune(ctx context.Context, ttl time.Duration) (int, error) {
	if ttl <= 0 {
		return 0, nil
	}
	n, err := m.store.DeleteTasksEndedBefore(ctx, m.now().Add(-ttl))
	if err != nil {
		return 0, fmt.Errorf("pruning tasks: %w", err)
	}
	if n > 0 {
		logger.Info("pruned finished tasks", "count", n)
	}
	return n, nil
}
