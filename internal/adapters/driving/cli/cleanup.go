package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove old versions",
	Long: `Removes versions created more than --older-than-days days ago, together
with their chunks and vectors. The creation time decides, never the
effective date. Without --journey every journey is cleaned.`,
	Args: cobra.NoArgs,
	RunE: runCleanup,
}

var retentionCmd = &cobra.Command{
	Use:   "retention",
	Short: "Run or inspect the scheduled retention jobs",
}

var retentionRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the retention jobs now",
	Args:  cobra.NoArgs,
	RunE:  runRetentionRun,
}

var retentionStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the last retention job results",
	Args:  cobra.NoArgs,
	RunE:  runRetentionStatus,
}

var (
	cleanupJourney    string
	cleanupDays       int
	cleanupBackground bool
)

func init() {
	cleanupCmd.Flags().StringVarP(&cleanupJourney, "journey", "j", "", "journey to clean (default: all)")
	cleanupCmd.Flags().IntVar(&cleanupDays, "older-than-days", 0, "remove versions older than this many days (required)")
	cleanupCmd.Flags().BoolVar(&cleanupBackground, "background", false, "run as a background task")
	_ = cleanupCmd.MarkFlagRequired("older-than-days")

	retentionCmd.AddCommand(retentionRunCmd)
	retentionCmd.AddCommand(retentionStatusCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(retentionCmd)
}

func runCleanup(cmd *cobra.Command, _ []string) error {
	if versionService == nil {
		return errNotConfigured("version")
	}
	if cleanupDays < 0 {
		return fmt.Errorf("%w: --older-than-days must not be negative", domain.ErrInvalidInput)
	}
	ctx := cmd.Context()
	days := cleanupDays

	journeys := []string{cleanupJourney}
	if cleanupJourney == "" {
		if journeyService == nil {
			return errNotConfigured("journey")
		}
		all, err := journeyService.List(ctx)
		if err != nil {
			return fmt.Errorf("failed to list journeys: %w", err)
		}
		journeys = journeys[:0]
		for i := range all {
			journeys = append(journeys, all[i].Name)
		}
	}

	clean := func(ctx context.Context, progress driving.ProgressFunc) (any, error) {
		removed := make(map[string]int, len(journeys))
		for i, j := range journeys {
			n, err := versionService.Cleanup(ctx, j, days)
			if err != nil {
				return removed, fmt.Errorf("cleaning %s: %w", j, err)
			}
			removed[j] = n
			if progress != nil {
				progress(i+1, len(journeys))
			}
		}
		return removed, nil
	}

	if cleanupBackground {
		if taskRunner == nil {
			return errNotConfigured("task")
		}
		task, err := taskRunner.Submit(ctx, domain.TaskCleanup, cleanupJourney, clean)
		if err != nil {
			return fmt.Errorf("failed to start cleanup: %w", err)
		}
		cmd.Printf("Cleanup started: task %s\n", task.ID)
		return nil
	}

	out, err := clean(ctx, nil)
	if err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	removed := out.(map[string]int)
	total := 0
	for _, j := range journeys {
		if removed[j] > 0 {
			cmd.Printf("  %s: %d versions removed\n", j, removed[j])
		}
		total += removed[j]
	}
	cmd.Printf("Removed %d versions older than %d days.\n", total, days)
	return nil
}

func runRetentionRun(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errNotConfigured("retention")
	}

	results := scheduler.RunOnce(cmd.Context())
	if len(results) == 0 {
		cmd.Println("No retention jobs enabled.")
		return nil
	}
	printJobResults(cmd, results)
	return nil
}

func runRetentionStatus(cmd *cobra.Command, _ []string) error {
	if scheduler == nil {
		return errNotConfigured("retention")
	}

	results := scheduler.LastResults()
	if len(results) == 0 {
		cmd.Println("No retention jobs have run yet.")
		return nil
	}
	printJobResults(cmd, results)
	return nil
}

func printJobResults(cmd *cobra.Command, results []domain.JobResult) {
	for _, r := range results {
		status := "ok"
		if !r.Success {
			status = "failed: " + r.Error
		}
		cmd.Printf("  %-18s %s  %d items  (%s)\n", r.JobID, r.EndedAt.Format("2006-01-02 15:04:05"),
			r.ItemsProcessed, status)
	}
}
