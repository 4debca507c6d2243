package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var factcheckCmd = &cobra.Command{
	Use:   "factcheck [journey] [claim]",
	Short: "Check a claim against a journey's documents",
	Long: `Retrieves evidence for the claim and asks the language model whether the
indexed requirements support or contradict it. Without a model the verdict
is insufficient_evidence and only the evidence is shown.`,
	Args: cobra.ExactArgs(2),
	RunE: runFactcheck,
}

var factcheckJSON bool

func init() {
	factcheckCmd.Flags().BoolVar(&factcheckJSON, "json", false, "output the result as JSON")
	rootCmd.AddCommand(factcheckCmd)
}

func runFactcheck(cmd *cobra.Command, args []string) error {
	if factChecker == nil {
		return errNotConfigured("fact check")
	}

	res, err := factChecker.Check(cmd.Context(), args[0], args[1])
	if err != nil {
		return fmt.Errorf("fact check failed: %w", err)
	}

	if factcheckJSON {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal result: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Claim:      %s\n", res.Claim)
	cmd.Printf("Verdict:    %s (confidence %.2f)\n", res.Verdict, res.Confidence)
	if res.Answer != "" {
		cmd.Printf("Answer:     %s\n", res.Answer)
	}
	if res.Evidence == nil || len(res.Evidence.Items) == 0 {
		return nil
	}
	cmd.Println()
	cmd.Println("Evidence:")
	for i := range res.Evidence.Items {
		it := &res.Evidence.Items[i]
		cmd.Printf("  [%d] %s %.2f\n", it.Rank, it.Chunk.VersionID, it.Score)
		cmd.Printf("      %s\n", snippet(it.Chunk.Text, 160))
	}
	return nil
}
