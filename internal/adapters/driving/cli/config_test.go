package cli

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "Short key",
			input:    "abc123",
			expected: "****",
		},
		{
			name:     "Exactly 8 chars",
			input:    "12345678",
			expected: "****",
		},
		{
			name:     "Long key",
			input:    "sk-1234567890abcdef",
			expected: "sk-1...cdef",
		},
		{
			name:     "Very long key",
			input:    "sk-proj-1234567890abcdefghijklmnop",
			expected: "sk-p...mnop",
		},
		{
			name:     "Empty key",
			input:    "",
			expected: "****",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := maskAPIKey(tt.input)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestParseChoice(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		maxVal     int
		defaultVal int
		expected   int
	}{
		{
			name:       "Empty input returns default",
			input:      "",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Valid choice within range",
			input:      "3",
			maxVal:     5,
			defaultVal: 1,
			expected:   3,
		},
		{
			name:       "Choice below minimum returns default",
			input:      "0",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Choice above maximum returns default",
			input:      "6",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Invalid input returns default",
			input:      "abc",
			maxVal:     5,
			defaultVal: 2,
			expected:   2,
		},
		{
			name:       "Negative number returns default",
			input:      "-1",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Whitespace returns default",
			input:      "   ",
			maxVal:     5,
			defaultVal: 1,
			expected:   1,
		},
		{
			name:       "Maximum value is valid",
			input:      "5",
			maxVal:     5,
			defaultVal: 1,
			expected:   5,
		},
		{
			name:       "Minimum value is valid",
			input:      "1",
			maxVal:     5,
			defaultVal: 3,
			expected:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseChoice(tt.input, tt.maxVal, tt.defaultVal)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestConfigShow(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	for _, args := range [][]string{{"config"}, {"config", "show"}} {
		out, err := executeCommand(t, args...)

		require.NoError(t, err)
		assert.Contains(t, out, "File: /home/qa/.traceq/config.toml")
		assert.Contains(t, out, "Provider: Offline hashing embedder")
		assert.Contains(t, out, "Provider: Claude (Anthropic cloud)")
		assert.Contains(t, out, "API Key: (not set)")
		assert.Contains(t, out, "Top K: 10")
		assert.Contains(t, out, "Vector index: memory")
		assert.Contains(t, out, "Schedule: @daily")
		assert.Contains(t, out, "Configuration is valid.")
	}
}

func TestConfigShow_FallbackKeysAndWarning(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()
	settings := domain.DefaultSettings()
	settings.ProviderKeys = map[domain.AIProvider]string{domain.AIProviderOpenAI: "sk-openai-1234567890"}
	settingsService = &mockSettingsService{settings: settings, validateErr: errors.New("qdrant url missing")}

	out, err := executeCommand(t, "config", "show")

	require.NoError(t, err)
	assert.Contains(t, out, "Fallback key (openai): sk-o...7890")
	assert.Contains(t, out, "Warning: qdrant url missing")
}

func TestConfigSet(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeCommand(t, "config", "set", "retrieval.top_k", "20")
	require.NoError(t, err)
	assert.Contains(t, out, "Set retrieval.top_k = 20")

	out, err = executeCommand(t, "config", "set", "llm.api_key", "sk-ant-1234567890")
	require.NoError(t, err)
	assert.Contains(t, out, "Set llm.api_key = sk-a...7890")
	assert.NotContains(t, out, "sk-ant-1234567890")

	mock := settingsService.(*mockSettingsService)
	assert.Equal(t, "20", mock.sets["retrieval.top_k"])
	assert.Equal(t, "sk-ant-1234567890", mock.sets["llm.api_key"])
}

func TestConfigSet_UnknownKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeCommand(t, "config", "set", "bogus", "1")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigCheck(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand(t, "config", "check")

		require.NoError(t, err)
		assert.Contains(t, out, "Configuration is valid.")
		assert.NotContains(t, out, "Embedding provider...")
	})

	t.Run("invalid", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		settingsService = &mockSettingsService{validateErr: domain.ErrInvalidInput}

		_, err := executeCommand(t, "config", "check")

		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("live ping fails", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()
		settingsService = &mockSettingsService{liveErr: errors.New("connection refused")}

		out, err := executeCommand(t, "config", "check", "--live")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "embedding configuration validation failed")
		assert.Contains(t, out, "Embedding provider... FAILED: connection refused")
	})

	t.Run("live ping succeeds", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeCommand(t, "config", "check", "--live")

		require.NoError(t, err)
		assert.Contains(t, out, "Embedding provider... OK")
		assert.Contains(t, out, "Completion provider... OK")
	})
}

func TestConfigEmbedding_Interactive(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	// 4 is the offline provider; empty model keeps the default.
	out, err := executeWithInput(t, "4\n\n", "config", "embedding")

	require.NoError(t, err)
	assert.Contains(t, out, "Select Embedding Provider")
	assert.NotContains(t, out, "Claude")
	assert.Contains(t, out, "Embedding provider configured: Offline hashing embedder (hashing-768)")

	got := settingsService.(*mockSettingsService).settings.Embedding
	assert.Equal(t, domain.AIProviderOffline, got.Provider)
	assert.Equal(t, "hashing-768", got.Model)
}

func TestConfigLLM_Interactive(t *testing.T) {
	t.Run("with api key", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		out, err := executeWithInput(t, "3\ngpt-4.1\nsk-test-1234567890\n", "config", "llm")

		require.NoError(t, err)
		assert.Contains(t, out, "Validating configuration... OK")
		assert.Contains(t, out, "LLM provider configured: OpenAI (cloud) (gpt-4.1)")

		got := settingsService.(*mockSettingsService).settings.LLM
		assert.Equal(t, domain.AIProviderOpenAI, got.Provider)
		assert.Equal(t, "sk-test-1234567890", got.APIKey)
	})

	t.Run("missing api key", func(t *testing.T) {
		cleanup := setupTestServices()
		defer cleanup()

		_, err := executeWithInput(t, "1\n\n\n", "config", "llm")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "API key is required")
	})
}

func TestConfigSetKey(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	out, err := executeWithInput(t, "sk-openai-abcdef123456\n", "config", "set-key", "OpenAI")

	require.NoError(t, err)
	assert.Contains(t, out, "Stored API key for openai: sk-o...3456")
	assert.Equal(t, "sk-openai-abcdef123456",
		settingsService.(*mockSettingsService).keys[domain.AIProviderOpenAI])
}

func TestConfigSetKey_KeylessProvider(t *testing.T) {
	cleanup := setupTestServices()
	defer cleanup()

	_, err := executeWithInput(t, "whatever\n", "config", "set-key", "ollama")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
