package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/connectors/inbox"
	"github.com/custodia-labs/traceq/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Ingest documents dropped into a directory",
	Long: `Watches a directory and ingests every new or rewritten document into the
journey given by --journey. The source type comes from the filename prefix:

  fsd_payments.pdf         -> fsd
  addendum_2.docx          -> addendum
  meeting-notes-0314.txt   -> meeting_notes

Files without a known prefix are ingested as fsd. The retention scheduler
runs while watching. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchJourney  string
	watchDebounce time.Duration
)

func init() {
	watchCmd.Flags().StringVarP(&watchJourney, "journey", "j", "", "journey receiving the documents (required)")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", inbox.DefaultDebounce, "quiet period before a file is ingested")
	_ = watchCmd.MarkFlagRequired("journey")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}
	ctx := cmd.Context()

	w := inbox.New(inbox.Config{Dir: args[0], Journey: watchJourney, Debounce: watchDebounce}, ingestService)
	defer w.Close()

	results, err := w.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}

	stop := startScheduler()
	defer stop()

	cmd.Printf("Watching %s for %s (Ctrl+C to stop)\n", args[0], watchJourney)
	for res := range results {
		if res.Err != nil {
			cmd.Printf("  FAILED %s: %v\n", res.Path, res.Err)
			continue
		}
		cmd.Printf("  %s -> %s (%d chunks)\n", res.Path, res.Version.ID, res.Version.ChunkCount)
	}
	return nil
}

// startScheduler starts the retention scheduler for long-running commands
// and returns its stop function.
func startScheduler() func() {
	if scheduler == nil {
		return func() {}
	}
	if err := scheduler.Start(); err != nil {
		logger.Warn("retention scheduler not started", "error", err)
		return func() {}
	}
	return scheduler.Stop
}
