package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCmd_Subcommands(t *testing.T) {
	want := []string{
		"journey", "ingest", "reindex", "timeline", "search", "stats", "analyze",
		"factcheck", "testgen", "task", "cleanup", "retention", "config", "watch",
		"mcp", "version",
	}
	for _, name := range want {
		cmd, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
}

func TestSetVersion(t *testing.T) {
	original := version
	defer func() { version = original }()

	SetVersion("1.4.0")
	assert.Equal(t, "1.4.0", version)

	SetVersion("")
	assert.Equal(t, "1.4.0", version, "empty version keeps the current one")
}

func TestSetServices_Nil(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	SetServices(Services{})

	for _, args := range [][]string{
		{"journey", "list"},
		{"timeline", "Refunds"},
		{"stats", "Refunds"},
		{"analyze", "Refunds", "a", "b"},
		{"factcheck", "Refunds", "claim"},
		{"testgen", "Refunds"},
		{"retention", "status"},
		{"config", "show"},
	} {
		_, err := executeCommand(t, args...)
		require.Error(t, err, args)
		assert.Contains(t, err.Error(), "service not configured", args)
	}
}

func TestVerboseFlag(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "-v", "journey", "list")

	assert.NoError(t, err)
	assert.False(t, verbose, "flags are reset after each run")
}

func TestWatchCmd_Validation(t *testing.T) {
	t.Run("journey required", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeCommand(t, "watch", t.TempDir())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "journey")
	})

	t.Run("missing directory", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeCommand(t, "watch", "/no/such/inbox", "-j", "Refunds")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to watch /no/such/inbox")
	})
}

func TestStartScheduler(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	stop := startScheduler()
	mock := scheduler.(*mockScheduler)
	assert.True(t, mock.started)
	stop()
	assert.True(t, mock.stopped)

	scheduler = nil
	assert.NotPanics(t, func() { startScheduler()() })
}

func TestMCPPorts(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	ports := mcpPorts()

	assert.Same(t, searchService, ports.Search)
	assert.Same(t, journeyService, ports.Journeys)
	assert.Same(t, versionService, ports.Versions)
	assert.Same(t, testGenerator, ports.TestGen)
	assert.Same(t, taskRunner, ports.Tasks)
}
