// Package cli implements the traceq command line interface with cobra.
// Commands are thin: they parse flags, call a driving port and print.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

// Services wired by main. Nil services make their commands fail with a
// "not configured" error.
var (
	journeyService  driving.JourneyService
	versionService  driving.VersionService
	ingestService   driving.IngestService
	assembler       driving.ContextAssembler
	searchService   driving.SearchService
	changeAnalyzer  driving.ChangeAnalyzer
	factChecker     driving.FactChecker
	testGenerator   driving.TestGenerator
	taskRunner      driving.TaskRunner
	settingsService driving.SettingsService
	scheduler       driving.RetentionScheduler
)

// Services groups the driving ports used by the CLI.
type Services struct {
	Journeys  driving.JourneyService
	Versions  driving.VersionService
	Ingest    driving.IngestService
	Assembler driving.ContextAssembler
	Search    driving.SearchService
	Analyzer  driving.ChangeAnalyzer
	FactCheck driving.FactChecker
	TestGen   driving.TestGenerator
	Tasks     driving.TaskRunner
	Settings  driving.SettingsService
	Scheduler driving.RetentionScheduler
}

var rootCmd = &cobra.Command{
	Use:   "traceq",
	Short: "Requirements versioning and retrieval for QA",
	Long: `traceq keeps an append-only version history of requirement documents
per business journey, indexes them for semantic retrieval and builds
token-budgeted context for change analysis, fact checks and test case
generation.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// SetVersion sets the version printed by the version command.
func SetVersion(v string) {
	if v != "" {
		version = v
	}
}

// SetServices installs the driving ports used by the commands.
func SetServices(s Services) {
	journeyService = s.Journeys
	versionService = s.Versions
	ingestService = s.Ingest
	assembler = s.Assembler
	searchService = s.Search
	changeAnalyzer = s.Analyzer
	factChecker = s.FactCheck
	testGenerator = s.TestGen
	taskRunner = s.Tasks
	settingsService = s.Settings
	scheduler = s.Scheduler
}

// Execute runs the root command with ctx.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// errNotConfigured builds the error returned when a command's service is missing.
func errNotConfigured(name string) error {
	return errors.New(name + " service not configured")
}
