package mcp

import (
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Search provides search capabilities.
	Search driving.SearchService

	// Journeys lists and describes journeys.
	Journeys driving.JourneyService

	// Versions exposes journey timelines.
	Versions driving.VersionService

	// Assembler reconstructs full version text.
	Assembler driving.ContextAssembler

	// Ingest rebuilds version indexes in the background.
	Ingest driving.IngestService

	// Analyzer classifies changes between versions.
	Analyzer driving.ChangeAnalyzer

	// FactCheck answers claims against a journey.
	FactCheck driving.FactChecker

	// TestGen generates test cases.
	TestGen driving.TestGenerator

	// Tasks runs long operations in the background.
	Tasks driving.TaskRunner
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	// Every other port is optional; its tools are simply not registered.
	return nil
}
