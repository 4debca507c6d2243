package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// taskPollInterval is how often --wait refreshes task progress.
var taskPollInterval = 250 * time.Millisecond

var taskCmd = &cobra.Command{
	Use:     "task",
	Aliases: []string{"tasks"},
	Short:   "Inspect background tasks",
	Long: `Reindexing, batch test generation and cleanup run as background tasks.
Use these commands to poll or cancel them by id.`,
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks, newest first",
	Args:  cobra.NoArgs,
	RunE:  runTaskList,
}

var taskGetCmd = &cobra.Command{
	Use:   "get [task-id]",
	Short: "Show task status and result",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskGet,
}

var taskCancelCmd = &cobra.Command{
	Use:   "cancel [task-id]",
	Short: "Request cancellation of a running task",
	Args:  cobra.ExactArgs(1),
	RunE:  runTaskCancel,
}

var taskWaitCmd = &cobra.Command{
	Use:   "wait [task-id]",
	Short: "Wait for a task to finish",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if taskRunner == nil {
			return errNotConfigured("task")
		}
		return waitForTask(cmd, args[0])
	},
}

func init() {
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskGetCmd)
	taskCmd.AddCommand(taskCancelCmd)
	taskCmd.AddCommand(taskWaitCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskList(cmd *cobra.Command, _ []string) error {
	if taskRunner == nil {
		return errNotConfigured("task")
	}

	tasks, err := taskRunner.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list tasks: %w", err)
	}
	if len(tasks) == 0 {
		cmd.Println("No tasks found.")
		return nil
	}

	for i := range tasks {
		t := &tasks[i]
		cmd.Printf("  %s  %-16s %-10s %3.0f%%  %s\n",
			t.ID, t.Kind, t.Status, t.Progress()*100, t.Journey)
	}
	return nil
}

func runTaskGet(cmd *cobra.Command, args []string) error {
	if taskRunner == nil {
		return errNotConfigured("task")
	}

	task, err := taskRunner.Get(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get task: %w", err)
	}
	printTask(cmd, task)
	return nil
}

func runTaskCancel(cmd *cobra.Command, args []string) error {
	if taskRunner == nil {
		return errNotConfigured("task")
	}

	if err := taskRunner.Cancel(cmd.Context(), args[0]); err != nil {
		if errors.Is(err, domain.ErrTaskFinished) {
			return fmt.Errorf("task %s has already finished", args[0])
		}
		return fmt.Errorf("failed to cancel task: %w", err)
	}
	cmd.Printf("Cancellation requested for task %s\n", args[0])
	return nil
}

// waitForTask polls a task until it ends, printing progress changes.
func waitForTask(cmd *cobra.Command, id string) error {
	ctx := cmd.Context()
	ticker := time.NewTicker(taskPollInterval)
	defer ticker.Stop()

	lastDone := -1
	for {
		task, err := taskRunner.Get(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get task: %w", err)
		}
		if task.Done != lastDone && task.Total > 0 {
			cmd.Printf("  %s: %d/%d\n", task.Kind, task.Done, task.Total)
			lastDone = task.Done
		}
		if task.Status.IsTerminal() {
			printTask(cmd, task)
			if task.Status == domain.TaskFailed {
				return fmt.Errorf("task %s failed: %s", task.ID, task.Error)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			cmd.Printf("Stopped waiting; task %s keeps running.\n", id)
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func printTask(cmd *cobra.Command, t *domain.Task) {
	cmd.Printf("Task: %s\n\n", t.ID)
	cmd.Printf("  Kind:     %s\n", t.Kind)
	if t.Journey != "" {
		cmd.Printf("  Journey:  %s\n", t.Journey)
	}
	cmd.Printf("  Status:   %s\n", t.Status)
	cmd.Printf("  Progress: %d/%d (%.0f%%)\n", t.Done, t.Total, t.Progress()*100)
	cmd.Printf("  Created:  %s\n", t.CreatedAt.Format("2006-01-02 15:04:05"))
	if !t.EndedAt.IsZero() {
		cmd.Printf("  Ended:    %s\n", t.EndedAt.Format("2006-01-02 15:04:05"))
	}
	if t.Error != "" {
		cmd.Printf("  Error:    %s\n", t.Error)
	}
	if len(t.Result) > 0 {
		var pretty any
		if err := json.Unmarshal(t.Result, &pretty); err == nil {
			data, _ := json.MarshalIndent(pretty, "  ", "  ") //nolint:errcheck // value came from JSON
			cmd.Printf("  Result:   %s\n", data)
		}
	}
}
