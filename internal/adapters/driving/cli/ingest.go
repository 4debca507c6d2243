package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file]",
	Short: "Ingest a requirement document",
	Long: `Stores the document, extracts its text, records a new version in the
journey's timeline and indexes its chunks. The journey is created when it
does not exist yet.

Supported formats: txt, md, html, eml, docx, pdf.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

var reindexCmd = &cobra.Command{
	Use:   "reindex [journey] [version-id]",
	Short: "Re-chunk and re-embed an existing version",
	Long: `Runs as a background task. Without --wait the task id is printed and the
command returns; poll it with 'traceq task get'.`,
	Args: cobra.ExactArgs(2),
	RunE: runReindex,
}

var (
	ingestJourney       string
	ingestSourceType    string
	ingestFormat        string
	ingestEffectiveDate string
	ingestNotes         string
	reindexWait         bool
)

func init() {
	ingestCmd.Flags().StringVarP(&ingestJourney, "journey", "j", "", "journey receiving the document (required)")
	ingestCmd.Flags().StringVarP(&ingestSourceType, "type", "t", string(domain.SourceFSD),
		"source type: fsd, addendum, annexure, email, meeting_notes, change_request")
	ingestCmd.Flags().StringVar(&ingestFormat, "format", "", "document format (default: file extension)")
	ingestCmd.Flags().StringVar(&ingestEffectiveDate, "effective-date", "", "business effective date (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestNotes, "notes", "", "free-form notes stored with the version")
	_ = ingestCmd.MarkFlagRequired("journey")

	reindexCmd.Flags().BoolVarP(&reindexWait, "wait", "w", false, "wait for the task and show progress")

	rootCmd.AddCommand(ingestCmd)
	rootCmd.AddCommand(reindexCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}

	st := domain.SourceType(strings.ToLower(ingestSourceType))
	if !st.IsValid() {
		return fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, ingestSourceType)
	}
	effective, err := parseDate(ingestEffectiveDate)
	if err != nil {
		return err
	}

	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read document: %w", err)
	}

	v, err := ingestService.Ingest(cmd.Context(), driving.IngestRequest{
		Journey:       ingestJourney,
		SourceType:    st,
		Filename:      filepath.Base(path),
		Data:          data,
		Format:        ingestFormat,
		EffectiveDate: effective,
		Notes:         ingestNotes,
	})
	if err != nil {
		return fmt.Errorf("failed to ingest document: %w", err)
	}

	cmd.Printf("Ingested %s into %s\n\n", filepath.Base(path), v.Journey)
	cmd.Printf("  Version: %s\n", v.ID)
	cmd.Printf("  Chunks:  %d\n", v.ChunkCount)
	cmd.Printf("  Model:   %s\n", v.EmbeddingModel)
	if v.Summary != "" {
		cmd.Printf("  Summary: %s\n", v.Summary)
	}
	return nil
}

func runReindex(cmd *cobra.Command, args []string) error {
	if ingestService == nil {
		return errNotConfigured("ingest")
	}
	if taskRunner == nil {
		return errNotConfigured("task")
	}
	journey, versionID := args[0], args[1]

	task, err := taskRunner.Submit(cmd.Context(), domain.TaskReindex, journey,
		func(ctx context.Context, progress driving.ProgressFunc) (any, error) {
			n, err := ingestService.Reindex(ctx, journey, versionID, progress)
			if err != nil {
				return nil, err
			}
			return map[string]any{"version_id": versionID, "chunks": n}, nil
		})
	if err != nil {
		return fmt.Errorf("failed to start reindex: %w", err)
	}

	if !reindexWait {
		cmd.Printf("Reindex started: task %s\n", task.ID)
		return nil
	}
	return waitForTask(cmd, task.ID)
}

// parseDate parses an optional YYYY-MM-DD date.
func parseDate(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("%w: effective date must be YYYY-MM-DD", domain.ErrInvalidInput)
	}
	return &t, nil
}
