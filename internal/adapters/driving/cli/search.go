package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

var (
	searchJourney string
	searchTopK    int
	searchBudget  int
	searchTypes   []string
	searchJSON    bool
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search a journey's indexed documents",
	Long: `Performs semantic search over the indexed versions of one journey.
Results are ranked by similarity, deduplicated across overlapping chunks
and packed into a token budget.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

var statsCmd = &cobra.Command{
	Use:   "stats [journey]",
	Short: "Show vector index statistics for a journey",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	searchCmd.Flags().StringVarP(&searchJourney, "journey", "j", "", "journey to search (required)")
	searchCmd.Flags().IntVarP(&searchTopK, "top-k", "k", 0, "candidates requested from the index (default from config)")
	searchCmd.Flags().IntVar(&searchBudget, "budget", 0, "token budget (default from config)")
	searchCmd.Flags().StringSliceVarP(&searchTypes, "type", "t", nil, "restrict to source types")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	_ = searchCmd.MarkFlagRequired("journey")

	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(statsCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}

	opts := driving.SearchOptions{TopK: searchTopK, TokenBudget: searchBudget}
	for _, t := range searchTypes {
		st := domain.SourceType(strings.ToLower(strings.TrimSpace(t)))
		if !st.IsValid() {
			return fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, t)
		}
		opts.SourceTypes = append(opts.SourceTypes, st)
	}

	bundle, err := searchService.Search(cmd.Context(), searchJourney, args[0], opts)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, bundle)
	}
	return outputSearchTable(cmd, bundle)
}

func outputSearchJSON(cmd *cobra.Command, bundle *domain.ContextBundle) error {
	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, bundle *domain.ContextBundle) error {
	if bundle == nil || len(bundle.Items) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i := range bundle.Items {
		it := &bundle.Items[i]
		// Format: [rank] version (source type) score
		cmd.Printf("  [%d] %s (%s) %.2f\n", it.Rank, it.Chunk.VersionID, it.Chunk.SourceType, it.Score)
		cmd.Printf("      %s\n", snippet(it.Chunk.Text, 200))
		cmd.Println()
	}

	cmd.Printf("%d of %d candidates, %d tokens", len(bundle.Items), bundle.Considered, bundle.TokensUsed)
	if bundle.Truncated {
		cmd.Print(" (truncated by budget)")
	}
	cmd.Println()
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	if searchService == nil {
		return errNotConfigured("search")
	}

	stats, err := searchService.Stats(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}
	cmd.Printf("Index: %s\n\n", stats.Namespace)
	cmd.Printf("  Backend:  %s\n", stats.Backend)
	cmd.Printf("  Chunks:   %d\n", stats.Chunks)
	cmd.Printf("  Versions: %d\n", stats.Versions)
	return nil
}

// snippet collapses whitespace and shortens text to at most n runes.
func snippet(text string, n int) string {
	text = strings.Join(strings.Fields(text), " ")
	r := []rune(text)
	if len(r) <= n {
		return text
	}
	return string(r[:n]) + "..."
}
