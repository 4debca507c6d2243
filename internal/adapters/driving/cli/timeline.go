package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

var timelineCmd = &cobra.Command{
	Use:   "timeline [journey]",
	Short: "Show the version history of a journey",
	Long: `Lists every version of the journey oldest first. Pending versions are
shown but are not visible to search or analysis until indexed.`,
	Args: cobra.ExactArgs(1),
	RunE: runTimeline,
}

var versionShowCmd = &cobra.Command{
	Use:   "show [journey] [version-id]",
	Short: "Show one version and its reconstructed text",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionShow,
}

var timelineOutput string

// timelineEntry is the export shape of a version.
type timelineEntry struct {
	ID            string `json:"version_id" yaml:"version_id"`
	SourceType    string `json:"source_type" yaml:"source_type"`
	CreatedAt     string `json:"created_at" yaml:"created_at"`
	EffectiveDate string `json:"effective_date,omitempty" yaml:"effective_date,omitempty"`
	Status        string `json:"status" yaml:"status"`
	ChunkCount    int    `json:"chunk_count" yaml:"chunk_count"`
	DocumentURI   string `json:"document_uri" yaml:"document_uri"`
	Notes         string `json:"notes,omitempty" yaml:"notes,omitempty"`
	Summary       string `json:"summary,omitempty" yaml:"summary,omitempty"`
}

func init() {
	timelineCmd.Flags().StringVarP(&timelineOutput, "output", "o", "table", "output format: table, json, yaml")
	timelineCmd.AddCommand(versionShowCmd)
	rootCmd.AddCommand(timelineCmd)
}

func runTimeline(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errNotConfigured("version")
	}

	versions, err := versionService.Timeline(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to load timeline: %w", err)
	}

	entries := make([]timelineEntry, 0, len(versions))
	for i := range versions {
		entries = append(entries, toTimelineEntry(&versions[i]))
	}

	switch timelineOutput {
	case "json":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal timeline: %w", err)
		}
		cmd.Println(string(data))
	case "yaml":
		data, err := yaml.Marshal(entries)
		if err != nil {
			return fmt.Errorf("failed to marshal timeline: %w", err)
		}
		cmd.Print(string(data))
	case "table", "":
		printTimelineTable(cmd, args[0], entries)
	default:
		return fmt.Errorf("%w: unknown output format %q", domain.ErrInvalidInput, timelineOutput)
	}
	return nil
}

func printTimelineTable(cmd *cobra.Command, journey string, entries []timelineEntry) {
	if len(entries) == 0 {
		cmd.Printf("No versions recorded for %s.\n", journey)
		return
	}

	cmd.Printf("Timeline: %s\n\n", journey)
	for _, e := range entries {
		cmd.Printf("  %-32s %-15s %-8s %4d chunks", e.ID, e.SourceType, e.Status, e.ChunkCount)
		if e.EffectiveDate != "" {
			cmd.Printf("  effective %s", e.EffectiveDate)
		}
		cmd.Println()
		if e.Summary != "" {
			cmd.Printf("      %s\n", e.Summary)
		}
	}
}

func runVersionShow(cmd *cobra.Command, args []string) error {
	if versionService == nil {
		return errNotConfigured("version")
	}
	ctx := cmd.Context()
	journey, id := args[0], args[1]

	v, err := versionService.Get(ctx, journey, id)
	if err != nil {
		return fmt.Errorf("failed to get version: %w", err)
	}

	e := toTimelineEntry(v)
	cmd.Printf("Version: %s\n\n", e.ID)
	cmd.Printf("  Journey:     %s\n", v.Journey)
	cmd.Printf("  Source type: %s\n", e.SourceType)
	cmd.Printf("  Document:    %s\n", e.DocumentURI)
	cmd.Printf("  Created:     %s\n", e.CreatedAt)
	if e.EffectiveDate != "" {
		cmd.Printf("  Effective:   %s\n", e.EffectiveDate)
	}
	cmd.Printf("  Status:      %s\n", e.Status)
	cmd.Printf("  Chunks:      %d\n", e.ChunkCount)
	if e.Notes != "" {
		cmd.Printf("  Notes:       %s\n", e.Notes)
	}

	if assembler == nil || !v.IsIndexed() {
		return nil
	}
	bundle, _, err := assembler.AssembleForVersions(ctx, journey, id, id)
	if err != nil {
		return fmt.Errorf("failed to load version text: %w", err)
	}
	text, err := bundle.Reconstruct()
	if err != nil {
		return fmt.Errorf("failed to reconstruct version text: %w", err)
	}
	cmd.Println()
	cmd.Println(text)
	return nil
}

func toTimelineEntry(v *domain.DocumentVersion) timelineEntry {
	e := timelineEntry{
		ID:          v.ID,
		SourceType:  string(v.SourceType),
		CreatedAt:   v.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		Status:      string(v.Status),
		ChunkCount:  v.ChunkCount,
		DocumentURI: v.DocumentURI,
		Notes:       v.Notes,
		Summary:     v.Summary,
	}
	if v.EffectiveDate != nil {
		e.EffectiveDate = v.EffectiveDate.Format("2006-01-02")
	}
	return e
}
