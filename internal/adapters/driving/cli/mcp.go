package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/traceq/internal/adapters/driving/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
journeys, read timelines, analyse changes and generate test cases.

By default, the server communicates over stdio using JSON-RPC. Use --port
to serve streamable HTTP at /mcp instead, with a health probe at
/healthz. The retention scheduler runs while the
server is up.

Examples:
  # Stdio mode (default, for desktop assistants)
  traceq mcp serve

  # HTTP mode (for MCP Inspector, remote access)
  traceq mcp serve --port 8080

Assistant configuration:
  {
    "mcpServers": {
      "traceq": {
        "command": "/path/to/traceq",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// mcpPorts collects the configured services for the MCP server.
func mcpPorts() *mcp.Ports {
	return &mcp.Ports{
		Search:    searchService,
		Journeys:  journeyService,
		Versions:  versionService,
		Assembler: assembler,
		Ingest:    ingestService,
		Analyzer:  changeAnalyzer,
		FactCheck: factChecker,
		TestGen:   testGenerator,
		Tasks:     taskRunner,
	}
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}

	server, err := mcp.NewServer(mcpPorts())
	if err != nil {
		return err
	}

	stop := startScheduler()
	defer stop()

	if port > 0 {
		addr := fmt.Sprintf(":%d", port)
		fmt.Fprintf(cmd.OutOrStdout(), "MCP server listening on http://localhost%s/mcp\n", addr)
		return server.RunHTTP(cmd.Context(), addr)
	}

	return server.Run(cmd.Context())
}
