package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func TestSearchCmd_Use(t *testing.T) {
	assert.Equal(t, "search [query]", searchCmd.Use)
}

func TestSearchCmd_RequiresExactlyOneArg(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "search", "--journey", "Refunds")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg(s)")
}

func TestSearchCmd_RequiresJourney(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "search", "refund window")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "journey")
}

func TestSearchCmd_Flags(t *testing.T) {
	flag := searchCmd.Flags().Lookup("top-k")
	require.NotNil(t, flag, "top-k flag should exist")
	assert.Equal(t, "k", flag.Shorthand)
	assert.Equal(t, "0", flag.DefValue)

	require.NotNil(t, searchCmd.Flags().Lookup("type"))
	require.NotNil(t, searchCmd.Flags().Lookup("budget"))
}

func TestSearchCmd_ExecutesWithQuery(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "search", "-j", "Refunds", "-k", "5", "--type", "fsd,addendum", "refund window")

	require.NoError(t, err)
	assert.Contains(t, out, "Results:")
	assert.Contains(t, out, "[1] 20250314T093000Z-fsd (fsd) 0.93")
	assert.Contains(t, out, "Refunds settle within 5 days of the request.")
	assert.Contains(t, out, "1 of 4 candidates, 8 tokens")

	mock := searchService.(*mockSearchService)
	assert.Equal(t, "Refunds", mock.journey)
	assert.Equal(t, "refund window", mock.query)
	assert.Equal(t, 5, mock.opts.TopK)
	assert.Equal(t, []domain.SourceType{domain.SourceFSD, domain.SourceAddendum}, mock.opts.SourceTypes)
}

func TestSearchCmd_UnknownSourceType(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "search", "-j", "Refunds", "--type", "memo", "refund")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchCmd_JSONOutput(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "search", "--json", "-j", "Refunds", "refund")

	require.NoError(t, err)
	assert.Contains(t, out, `"items"`)
	assert.Contains(t, out, `"score": 0.93`)
	assert.Contains(t, out, `"considered": 4`)
}

func TestSearchCmd_ServiceNotConfigured(t *testing.T) {
	oldService := searchService
	searchService = nil
	defer func() {
		searchService = oldService
	}()

	_, err := executeCommand(t, "search", "-j", "Refunds", "test")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "search service not configured")
}

func TestSearchCmd_NotIndexed(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	searchService = &mockSearchService{err: domain.ErrNotIndexed}

	_, err := executeCommand(t, "search", "-j", "Empty", "anything")

	assert.ErrorIs(t, err, domain.ErrNotIndexed)
}

func TestOutputSearchTable_EmptyResults(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	err := outputSearchTable(rootCmd, &domain.ContextBundle{})

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "No results found")
}

func TestOutputSearchTable_Truncated(t *testing.T) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)

	bundle := testBundle()
	bundle.Truncated = true
	err := outputSearchTable(rootCmd, bundle)

	assert.NoError(t, err)
	assert.Contains(t, buf.String(), "(truncated by budget)")
}

func TestStatsCmd(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "stats", "Refunds")

	require.NoError(t, err)
	assert.Contains(t, out, "Index: Refunds")
	assert.Contains(t, out, "Backend:  memory")
	assert.Contains(t, out, "Chunks:   6")
	assert.Contains(t, out, "Versions: 2")
}

func TestSnippet(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		n        int
		expected string
	}{
		{"collapses whitespace", "a  b\n\tc", 10, "a b c"},
		{"exact length", "abcde", 5, "abcde"},
		{"truncates runes", "Überweisung", 4, "Über..."},
		{"empty", "", 5, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, snippet(tt.text, tt.n))
		})
	}
}
