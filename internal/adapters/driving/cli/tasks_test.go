package cli

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// captureOutput points the root command output at a fresh buffer.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	t.Cleanup(func() { rootCmd.SetOut(nil) })
	return buf
}

func submitTask(t *testing.T, err error) string {
	t.Helper()
	task, submitErr := taskRunner.Submit(context.Background(), domain.TaskReindex, "Refunds",
		func(_ context.Context, progress driving.ProgressFunc) (any, error) {
			progress(2, 2)
			return map[string]int{"chunks": 2}, err
		})
	require.NoError(t, submitErr)
	return task.ID
}

func TestTaskList(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "task", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No tasks found.")

	submitTask(t, nil)
	submitTask(t, errors.New("boom"))

	out, err = executeCommand(t, "tasks", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "task-1  reindex")
	assert.Contains(t, out, "completed")
	assert.Contains(t, out, "failed")
	assert.Less(t, bytes.Index([]byte(out), []byte("task-2")), bytes.Index([]byte(out), []byte("task-1")),
		"newest task first")
}

func TestTaskGet(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	id := submitTask(t, nil)

	out, err := executeCommand(t, "task", "get", id)

	require.NoError(t, err)
	assert.Contains(t, out, "Task: task-1")
	assert.Contains(t, out, "Kind:     reindex")
	assert.Contains(t, out, "Journey:  Refunds")
	assert.Contains(t, out, "Progress: 2/2 (100%)")
	assert.Contains(t, out, `"chunks": 2`)
}

func TestTaskGet_NotFound(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "task", "get", "nope")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTaskCancel(t *testing.T) {
	t.Run("finished task", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		id := submitTask(t, nil)

		_, err := executeCommand(t, "task", "cancel", id)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "has already finished")
	})

	t.Run("running task", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		runner := taskRunner.(*mockTaskRunner)
		runner.tasks["task-9"] = &domain.Task{ID: "task-9", Status: domain.TaskRunning}
		runner.order = append(runner.order, "task-9")

		out, err := executeCommand(t, "task", "cancel", "task-9")

		require.NoError(t, err)
		assert.Contains(t, out, "Cancellation requested for task task-9")
		assert.Equal(t, domain.TaskCancelled, runner.tasks["task-9"].Status)
	})
}

func TestTaskWait(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	id := submitTask(t, errors.New("embedding provider unavailable"))

	out, err := executeCommand(t, "task", "wait", id)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding provider unavailable")
	assert.Contains(t, out, "reindex: 2/2")
	assert.Contains(t, out, "Error:    embedding provider unavailable")
}

func TestTaskCmd_NotConfigured(t *testing.T) {
	old := taskRunner
	taskRunner = nil
	defer func() { taskRunner = old }()

	_, err := executeCommand(t, "task", "list")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "task service not configured")
}
