package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var journeyCmd = &cobra.Command{
	Use:     "journey",
	Aliases: []string{"journeys"},
	Short:   "Manage business journeys",
	Long: `Journeys group requirement documents by business process. The default
journeys are created on first start and cannot be deleted.`,
}

var journeyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List journeys",
	Args:  cobra.NoArgs,
	RunE:  runJourneyList,
}

var journeyCreateCmd = &cobra.Command{
	Use:   "create [name]",
	Short: "Create a journey",
	Args:  cobra.ExactArgs(1),
	RunE:  runJourneyCreate,
}

var journeyUpdateCmd = &cobra.Command{
	Use:   "update [name]",
	Short: "Change a journey's description",
	Args:  cobra.ExactArgs(1),
	RunE:  runJourneyUpdate,
}

var journeyShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a journey and its index statistics",
	Args:  cobra.ExactArgs(1),
	RunE:  runJourneyShow,
}

var journeyDeleteCmd = &cobra.Command{
	Use:   "delete [name]",
	Short: "Delete a journey",
	Long: `Deletes a non-default journey. Depending on the configured deletion
policy its versions are either kept (orphan) or removed with their chunks
and vectors (cascade).`,
	Args: cobra.ExactArgs(1),
	RunE: runJourneyDelete,
}

var journeyDescription string

func init() {
	journeyCreateCmd.Flags().StringVarP(&journeyDescription, "description", "d", "", "journey description")
	journeyUpdateCmd.Flags().StringVarP(&journeyDescription, "description", "d", "", "new description")

	journeyCmd.AddCommand(journeyListCmd)
	journeyCmd.AddCommand(journeyCreateCmd)
	journeyCmd.AddCommand(journeyUpdateCmd)
	journeyCmd.AddCommand(journeyShowCmd)
	journeyCmd.AddCommand(journeyDeleteCmd)
	rootCmd.AddCommand(journeyCmd)
}

func runJourneyList(cmd *cobra.Command, _ []string) error {
	if journeyService == nil {
		return errNotConfigured("journey")
	}

	journeys, err := journeyService.List(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to list journeys: %w", err)
	}
	if len(journeys) == 0 {
		cmd.Println("No journeys found.")
		return nil
	}

	cmd.Println("Journeys:")
	cmd.Println()
	for i := range journeys {
		marker := ""
		if journeys[i].IsDefault {
			marker = " (default)"
		}
		cmd.Printf("  %s%s\n", journeys[i].Name, marker)
		if journeys[i].Description != "" {
			cmd.Printf("    %s\n", journeys[i].Description)
		}
	}
	cmd.Println()
	cmd.Printf("Total: %d journeys\n", len(journeys))
	return nil
}

func runJourneyCreate(cmd *cobra.Command, args []string) error {
	if journeyService == nil {
		return errNotConfigured("journey")
	}

	j, err := journeyService.Create(cmd.Context(), args[0], journeyDescription)
	if err != nil {
		return fmt.Errorf("failed to create journey: %w", err)
	}
	cmd.Printf("Created journey: %s\n", j.Name)
	return nil
}

func runJourneyUpdate(cmd *cobra.Command, args []string) error {
	if journeyService == nil {
		return errNotConfigured("journey")
	}

	j, err := journeyService.Update(cmd.Context(), args[0], journeyDescription)
	if err != nil {
		return fmt.Errorf("failed to update journey: %w", err)
	}
	cmd.Printf("Updated journey: %s\n", j.Name)
	return nil
}

func runJourneyShow(cmd *cobra.Command, args []string) error {
	if journeyService == nil {
		return errNotConfigured("journey")
	}
	ctx := cmd.Context()

	j, err := journeyService.Get(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get journey: %w", err)
	}

	cmd.Printf("Journey: %s\n\n", j.Name)
	cmd.Printf("  Description: %s\n", j.Description)
	cmd.Printf("  Default:     %t\n", j.IsDefault)
	cmd.Printf("  Created:     %s\n", j.CreatedAt.Format("2006-01-02 15:04:05"))

	if versionService != nil {
		versions, err := versionService.Timeline(ctx, j.Name)
		if err != nil {
			return fmt.Errorf("failed to load timeline: %w", err)
		}
		indexed := 0
		for i := range versions {
			if versions[i].IsIndexed() {
				indexed++
			}
		}
		cmd.Printf("  Versions:    %d (%d indexed)\n", len(versions), indexed)
	}

	if searchService != nil {
		stats, err := searchService.Stats(ctx, j.Name)
		if err != nil {
			cmd.Printf("  Index:       unavailable (%v)\n", err)
			return nil
		}
		cmd.Printf("  Index:       %d chunks in %d versions (%s)\n", stats.Chunks, stats.Versions, stats.Backend)
	}
	return nil
}

func runJourneyDelete(cmd *cobra.Command, args []string) error {
	if journeyService == nil {
		return errNotConfigured("journey")
	}

	if err := journeyService.Delete(cmd.Context(), args[0]); err != nil {
		return fmt.Errorf("failed to delete journey: %w", err)
	}
	cmd.Printf("Deleted journey: %s\n", args[0])
	return nil
}
