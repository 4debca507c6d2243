package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [journey] [from-version] [to-version]",
	Short: "Classify the change between two versions",
	Long: `Diffs two versions of a journey and classifies the change as functional,
cosmetic or mixed. Whitespace-only changes are always cosmetic and never
reach the language model.

With only a journey, the two most recent indexed versions are compared.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if len(args) != 1 && len(args) != 3 {
			return fmt.Errorf("requires a journey, optionally followed by from and to versions")
		}
		return nil
	},
	RunE: runAnalyze,
}

var (
	analyzeJSON       bool
	analyzeBackground bool
)

var (
	functionalColor = color.New(color.FgRed, color.Bold)
	cosmeticColor   = color.New(color.FgGreen)
	mixedColor      = color.New(color.FgYellow, color.Bold)
)

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "output the assessment as JSON")
	analyzeCmd.Flags().BoolVar(&analyzeBackground, "background", false, "run as a background impact analysis task")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	if changeAnalyzer == nil {
		return errNotConfigured("analysis")
	}
	ctx := cmd.Context()
	journey := args[0]

	var from, to string
	if len(args) == 3 {
		from, to = args[1], args[2]
	} else {
		var err error
		from, to, err = latestPair(ctx, journey)
		if err != nil {
			return err
		}
	}

	if analyzeBackground {
		if taskRunner == nil {
			return errNotConfigured("task")
		}
		task, err := taskRunner.Submit(ctx, domain.TaskImpactAnalysis, journey,
			func(ctx context.Context, progress driving.ProgressFunc) (any, error) {
				a, err := changeAnalyzer.Analyze(ctx, journey, from, to)
				if err != nil {
					return nil, err
				}
				progress(1, 1)
				return a, nil
			})
		if err != nil {
			return fmt.Errorf("failed to start analysis: %w", err)
		}
		cmd.Printf("Impact analysis started: task %s\n", task.ID)
		return nil
	}

	a, err := changeAnalyzer.Analyze(ctx, journey, from, to)
	if err != nil {
		return fmt.Errorf("analysis failed: %w", err)
	}

	if analyzeJSON {
		data, err := json.MarshalIndent(a, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal assessment: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printAssessment(cmd, a)
	return nil
}

// latestPair returns the two most recent indexed versions of journey.
func latestPair(ctx context.Context, journey string) (from, to string, err error) {
	if versionService == nil {
		return "", "", errNotConfigured("version")
	}
	versions, err := versionService.Timeline(ctx, journey)
	if err != nil {
		return "", "", fmt.Errorf("failed to load timeline: %w", err)
	}

	var indexed []string
	for i := range versions {
		if versions[i].IsIndexed() {
			indexed = append(indexed, versions[i].ID)
		}
	}
	if len(indexed) < 2 {
		return "", "", fmt.Errorf("%w: %s has fewer than two indexed versions", domain.ErrInvalidInput, journey)
	}
	return indexed[len(indexed)-2], indexed[len(indexed)-1], nil
}

func printAssessment(cmd *cobra.Command, a *domain.ChangeAssessment) {
	cmd.Printf("Change: %s -> %s (%s)\n\n", a.FromVersion, a.ToVersion, a.Journey)
	cmd.Printf("  Classification: %s\n", classColor(a.Classification).Sprint(a.Classification))
	cmd.Printf("  Affects tests:  %t\n", a.AffectsTests)
	cmd.Printf("  Hunks:          %d content, %d whitespace-only\n", a.ContentHunks, a.WhitespaceHunks)
	if a.UsedLLM {
		cmd.Println("  Classified by:  language model")
	} else {
		cmd.Println("  Classified by:  whitespace pre-filter")
	}
	if a.Rationale != "" {
		cmd.Printf("\n  Rationale: %s\n", a.Rationale)
	}
	if a.Recommendation != "" {
		cmd.Printf("  Recommendation: %s\n", a.Recommendation)
	}
}

func classColor(c domain.ChangeClass) *color.Color {
	switch c {
	case domain.ChangeFunctional:
		return functionalColor
	case domain.ChangeMixed:
		return mixedColor
	default:
		return cosmeticColor
	}
}
