package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// defaultCasesPerBatch is the number of cases requested per chunk batch
// when generating for a whole journey.
const defaultCasesPerBatch = 3

var testgenCmd = &cobra.Command{
	Use:     "testgen [journey]",
	Aliases: []string{"generate-tests"},
	Short:   "Generate QA test cases from a journey's requirements",
	Long: `Retrieves the requirement context most relevant to --focus and asks the
language model for test cases. Without a model, cases are derived directly
from requirement sentences.

With --all, every indexed chunk of the journey is walked in batches as a
background task.`,
	Args: cobra.ExactArgs(1),
	RunE: runTestgen,
}

var (
	testgenMax    int
	testgenFocus  string
	testgenBudget int
	testgenAll    bool
	testgenWait   bool
	testgenJSON   bool
)

func init() {
	testgenCmd.Flags().IntVarP(&testgenMax, "max", "n", 5, "maximum number of test cases")
	testgenCmd.Flags().StringVarP(&testgenFocus, "focus", "f", "", "retrieval query focusing the cases")
	testgenCmd.Flags().IntVar(&testgenBudget, "budget", 0, "context token budget (default from config)")
	testgenCmd.Flags().BoolVar(&testgenAll, "all", false, "walk every indexed chunk as a background task")
	testgenCmd.Flags().BoolVarP(&testgenWait, "wait", "w", false, "with --all, wait for the task to finish")
	testgenCmd.Flags().BoolVar(&testgenJSON, "json", false, "output cases as JSON")
	rootCmd.AddCommand(testgenCmd)
}

func runTestgen(cmd *cobra.Command, args []string) error {
	if testGenerator == nil {
		return errNotConfigured("test generation")
	}
	ctx := cmd.Context()
	journey := args[0]

	if testgenAll {
		if taskRunner == nil {
			return errNotConfigured("task")
		}
		task, err := taskRunner.Submit(ctx, domain.TaskTestGeneration, journey,
			func(ctx context.Context, progress driving.ProgressFunc) (any, error) {
				return testGenerator.GenerateAll(ctx, journey, defaultCasesPerBatch, progress)
			})
		if err != nil {
			return fmt.Errorf("failed to start test generation: %w", err)
		}
		if !testgenWait {
			cmd.Printf("Test generation started: task %s\n", task.ID)
			return nil
		}
		return waitForTask(cmd, task.ID)
	}

	cases, err := testGenerator.Generate(ctx, journey, driving.GenerateOptions{
		MaxCases:    testgenMax,
		Focus:       testgenFocus,
		TokenBudget: testgenBudget,
	})
	if err != nil {
		return fmt.Errorf("test generation failed: %w", err)
	}

	if testgenJSON {
		data, err := json.MarshalIndent(cases, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal test cases: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}
	printTestCases(cmd, cases)
	return nil
}

func printTestCases(cmd *cobra.Command, cases []domain.TestCase) {
	if len(cases) == 0 {
		cmd.Println("No test cases generated.")
		return
	}

	for i := range cases {
		tc := &cases[i]
		cmd.Printf("%s: %s\n", tc.ID, tc.Title)
		if tc.Priority != "" || tc.Type != "" {
			cmd.Printf("  Priority: %s  Type: %s\n", tc.Priority, tc.Type)
		}
		if tc.Description != "" {
			cmd.Printf("  %s\n", tc.Description)
		}
		printList(cmd, "Preconditions", tc.Preconditions)
		printList(cmd, "Steps", tc.Steps)
		printList(cmd, "Expected", tc.ExpectedResults)
		if tc.TestData != "" {
			cmd.Printf("  Test data: %s\n", tc.TestData)
		}
		cmd.Println()
	}
	cmd.Printf("Total: %d test cases\n", len(cases))
}

func printList(cmd *cobra.Command, label string, items []string) {
	if len(items) == 0 {
		return
	}
	cmd.Printf("  %s:\n", label)
	for i, item := range items {
		cmd.Printf("    %d. %s\n", i+1, strings.TrimSpace(item))
	}
}
