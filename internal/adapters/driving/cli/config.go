package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long: `View and change traceq configuration: AI providers, storage backends,
retrieval defaults and retention.

Values can also be set through TRACEQ_* environment variables or a .env
file, e.g. TRACEQ_LLM_PROVIDER=gemini.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Long: `Sets a dotted configuration key, for example:

  traceq config set retrieval.top_k 20
  traceq config set vector.backend qdrant
  traceq config set retention.older_than_days 180`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration",
	Long:  `Checks the configuration for contradictions. With --live the configured providers are pinged.`,
	Args:  cobra.NoArgs,
	RunE:  runConfigCheck,
}

var configEmbeddingCmd = &cobra.Command{
	Use:   "embedding",
	Short: "Configure the embedding provider",
	Args:  cobra.NoArgs,
	RunE:  runConfigEmbedding,
}

var configLLMCmd = &cobra.Command{
	Use:   "llm",
	Short: "Configure the completion provider",
	Args:  cobra.NoArgs,
	RunE:  runConfigLLM,
}

var configSetKeyCmd = &cobra.Command{
	Use:   "set-key [provider]",
	Short: "Store an API key for a fallback provider",
	Long: `Stores the API key used when the preferred completion provider is
unavailable and traceq falls back to another one. The key is read from
the terminal without echo.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigSetKey,
}

var configLive bool

func init() {
	configCheckCmd.Flags().BoolVar(&configLive, "live", false, "ping the configured providers")

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
	configCmd.AddCommand(configCheckCmd)
	configCmd.AddCommand(configEmbeddingCmd)
	configCmd.AddCommand(configLLMCmd)
	configCmd.AddCommand(configSetKeyCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	settings, err := settingsService.Get()
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Printf("File: %s\n\n", settingsService.Path())

	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", settings.Embedding.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.Embedding.Model)
	if settings.Embedding.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Embedding.BaseURL)
	}
	printKey(cmd, settings.Embedding.Provider, settings.Embedding.APIKey)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.Embedding.IsConfigured()))
	cmd.Println()

	cmd.Println("[LLM]")
	cmd.Printf("  Provider: %s\n", settings.LLM.Provider.Description())
	cmd.Printf("  Model: %s\n", settings.LLM.Model)
	if settings.LLM.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.LLM.BaseURL)
	}
	printKey(cmd, settings.LLM.Provider, settings.LLM.APIKey)
	cmd.Printf("  Status: %s\n", configuredStatus(settings.LLM.IsConfigured()))
	for _, p := range domain.ProviderFallbackOrder() {
		if p != settings.LLM.Provider && settings.ProviderKeys[p] != "" {
			cmd.Printf("  Fallback key (%s): %s\n", p, maskAPIKey(settings.ProviderKeys[p]))
		}
	}
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Chunk size: %d tokens, overlap %d\n", settings.Chunking.Size, settings.Chunking.Overlap)
	cmd.Printf("  Top K: %d\n", settings.Retrieval.TopK)
	cmd.Printf("  Token budget: %d\n", settings.Retrieval.TokenBudget)
	cmd.Println()

	cmd.Println("[Storage]")
	cmd.Printf("  Metadata: %s\n", settings.Storage.Backend)
	cmd.Printf("  Vector index: %s\n", settings.Vector.Backend)
	cmd.Printf("  Blobs: %s\n", settings.Blob.Backend)
	cmd.Printf("  Embedding cache: %s\n", settings.Cache.Backend)
	cmd.Println()

	cmd.Println("[Retention]")
	cmd.Printf("  Schedule: %s\n", orNone(settings.Retention.Schedule))
	cmd.Printf("  Older than days: %d\n", settings.Retention.OlderThanDays)
	cmd.Printf("  Task TTL: %s\n", settings.Retention.TaskTTL)
	cmd.Printf("  Journey delete policy: %s\n", settings.DeletePolicy)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'traceq config check' for details.")
	} else {
		cmd.Println("Configuration is valid.")
	}
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	if err := settingsService.Set(args[0], args[1]); err != nil {
		return fmt.Errorf("failed to set %s: %w", args[0], err)
	}
	value := args[1]
	if strings.HasSuffix(args[0], "api_key") || strings.HasPrefix(args[0], "keys.") {
		value = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", args[0], value)
	return nil
}

func runConfigCheck(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	if err := settingsService.Validate(); err != nil {
		return fmt.Errorf("configuration is invalid: %w", err)
	}
	cmd.Println("Configuration is valid.")
	if !configLive {
		return nil
	}

	ctx := cmd.Context()
	cmd.Print("Embedding provider... ")
	if err := settingsService.ValidateEmbeddingConfig(ctx); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("embedding configuration validation failed: %w", err)
	}
	cmd.Println("OK")

	cmd.Print("Completion provider... ")
	if err := settingsService.ValidateLLMConfig(ctx); err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("LLM configuration validation failed: %w", err)
	}
	cmd.Println("OK")
	return nil
}

func runConfigEmbedding(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), true)
}

func runConfigLLM(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}
	return configureProvider(cmd, bufio.NewReader(cmd.InOrStdin()), false)
}

func runConfigSetKey(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errNotConfigured("settings")
	}

	provider := domain.AIProvider(strings.ToLower(args[0]))
	cmd.Printf("Enter API key for %s: ", provider.Description())
	key := readPassword(cmd.InOrStdin(), bufio.NewReader(cmd.InOrStdin()))
	cmd.Println()

	if err := settingsService.SetProviderKey(provider, key); err != nil {
		return fmt.Errorf("failed to store key: %w", err)
	}
	cmd.Printf("Stored API key for %s: %s\n", provider, maskAPIKey(key))
	return nil
}

// configureProvider runs the interactive provider selection for the
// embedding side (embedding true) or the completion side.
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, embedding bool) error {
	var providers []domain.AIProvider
	for _, p := range domain.AllAIProviders() {
		prof, _ := p.Profile()
		if (embedding && prof.SupportsEmbeddings) || (!embedding && prof.SupportsCompletion) {
			providers = append(providers, p)
		}
	}

	kind := "LLM"
	if embedding {
		kind = "Embedding"
	}
	cmd.Printf("Select %s Provider\n", kind)
	for i, p := range providers {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	idx := parseChoice(readLine(reader), len(providers), 1)
	selected := providers[idx-1]

	prof, _ := selected.Profile()
	defaultModel := prof.DefaultLLMModel
	if embedding {
		defaultModel = prof.DefaultEmbedModel
	}
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}

	var apiKey string
	if selected.RequiresAPIKey() {
		cmd.Print("Enter API key: ")
		apiKey = readPassword(cmd.InOrStdin(), reader)
		cmd.Println()
		if apiKey == "" {
			return errors.New("API key is required for this provider")
		}
	}

	ctx := cmd.Context()
	var err error
	if embedding {
		err = settingsService.SetEmbeddingProvider(selected, model, apiKey)
	} else {
		err = settingsService.SetLLMProvider(selected, model, apiKey)
	}
	if err != nil {
		return fmt.Errorf("failed to configure %s provider: %w", strings.ToLower(kind), err)
	}

	// Validate the configuration by pinging the service
	cmd.Print("Validating configuration... ")
	if embedding {
		err = settingsService.ValidateEmbeddingConfig(ctx)
	} else {
		err = settingsService.ValidateLLMConfig(ctx)
	}
	if err != nil {
		cmd.Printf("FAILED: %v\n", err)
		return fmt.Errorf("%s configuration validation failed: %w", strings.ToLower(kind), err)
	}
	cmd.Println("OK")

	cmd.Printf("%s provider configured: %s (%s)\n", kind, selected.Description(), model)
	return nil
}

func printKey(cmd *cobra.Command, p domain.AIProvider, key string) {
	if !p.RequiresAPIKey() {
		return
	}
	if key != "" {
		cmd.Printf("  API Key: %s\n", maskAPIKey(key))
	} else {
		cmd.Printf("  API Key: (not set)\n")
	}
}

func configuredStatus(ok bool) string {
	if ok {
		return "configured"
	}
	return "not configured"
}

func orNone(s string) string {
	if s == "" {
		return "(disabled)"
	}
	return s
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

// readPassword reads without echo when in is a terminal, otherwise a plain
// line from reader.
func readPassword(in io.Reader, reader *bufio.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return strings.TrimSpace(string(password))
		}
	}
	return readLine(reader)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
