package file

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// newTestStore returns a store in a temp dir with an injected environment.
func newTestStore(t *testing.T, env map[string]string) *ConfigStore {
	t.Helper()
	store, err := NewConfigStore(t.TempDir())
	require.NoError(t, err)
	store.getenv = func(k string) string { return env[k] }
	return store
}

func TestNewConfigStore_Success(t *testing.T) {
	tmpDir := t.TempDir()

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	require.NotNil(t, store)
	assert.Equal(t, filepath.Join(tmpDir, "config.toml"), store.Path())
}

func TestNewConfigStore_DefaultDir(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot determine home directory")
	}

	store, err := NewConfigStore("")

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".traceq", "config.toml"), store.Path())
}

func TestNewConfigStore_PrefersExistingYAML(t *testing.T) {
	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, "config.yaml"), []byte("retrieval:\n  top_k: 3\n"), 0600))

	store, err := NewConfigStore(tmpDir)

	require.NoError(t, err)
	assert.Equal(t, filepath.Join(tmpDir, "config.yaml"), store.Path())
}

func TestNewConfigStore_ExplicitFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "traceq.yml")

	store, err := NewConfigStore(path)

	require.NoError(t, err)
	assert.Equal(t, path, store.Path())
	assert.DirExists(t, filepath.Dir(path))
}

func TestConfigStore_Load_Defaults(t *testing.T) {
	store := newTestStore(t, nil)

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, 1000, settings.Chunking.Size)
	assert.Equal(t, 200, settings.Chunking.Overlap)
	assert.Equal(t, 10, settings.Retrieval.TopK)
	assert.Equal(t, 4000, settings.Retrieval.TokenBudget)
	assert.Equal(t, 30*time.Second, settings.Limits.Timeout)
	assert.Equal(t, "@daily", settings.Retention.Schedule)
	assert.Equal(t, domain.AIProviderOffline, settings.Embedding.Provider)
	assert.Equal(t, domain.JourneyDeleteOrphan, settings.DeletePolicy)
	assert.Empty(t, settings.ProviderKeys)
}

func TestConfigStore_Load_TOML(t *testing.T) {
	store := newTestStore(t, nil)
	content := `
[chunking]
size = 800
overlap = 120

[llm]
provider = "gemini"
model = "gemini-2.0-flash"

[providers]
timeout = "5s"
max_attempts = 2

[journeys]
delete_policy = "cascade"

[keys]
openai = "sk-fallback"
`
	require.NoError(t, os.WriteFile(store.Path(), []byte(content), 0600))

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, 800, settings.Chunking.Size)
	assert.Equal(t, 120, settings.Chunking.Overlap)
	assert.Equal(t, domain.AIProviderGemini, settings.LLM.Provider)
	assert.Equal(t, "gemini-2.0-flash", settings.LLM.Model)
	assert.Equal(t, 5*time.Second, settings.Limits.Timeout)
	assert.Equal(t, domain.JourneyDeleteCascade, settings.DeletePolicy)
	assert.Equal(t, "sk-fallback", settings.KeyFor(domain.AIProviderOpenAI))
	// Sections absent from the file keep their defaults.
	assert.Equal(t, 10, settings.Retrieval.TopK)
}

func TestConfigStore_Load_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
retrieval:
  top_k: 5
  token_budget: 1500
vector:
  backend: qdrant
  qdrant_url: http://localhost:6333
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	store, err := NewConfigStore(path)
	require.NoError(t, err)
	store.getenv = func(string) string { return "" }

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, 5, settings.Retrieval.TopK)
	assert.Equal(t, 1500, settings.Retrieval.TokenBudget)
	assert.Equal(t, domain.VectorBackendQdrant, settings.Vector.Backend)
	assert.Equal(t, "http://localhost:6333", settings.Vector.QdrantURL)
}

func TestConfigStore_Load_EnvOverlay(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"TRACEQ_RETRIEVAL_TOP_K":   "25",
		"TRACEQ_LLM_PROVIDER":      "openai",
		"TRACEQ_PROVIDERS_TIMEOUT": "12s",
		"ANTHROPIC_API_KEY":        "sk-ant",
		"GEMINI_API_KEY":           "gem-primary",
		"GOOGLE_API_KEY":           "gem-secondary",
	})
	require.NoError(t, os.WriteFile(store.Path(), []byte("[retrieval]\ntop_k = 3\n"), 0600))

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, 25, settings.Retrieval.TopK)
	assert.Equal(t, domain.AIProviderOpenAI, settings.LLM.Provider)
	assert.Equal(t, 12*time.Second, settings.Limits.Timeout)
	assert.Equal(t, "sk-ant", settings.ProviderKeys[domain.AIProviderClaude])
	assert.Equal(t, "gem-primary", settings.ProviderKeys[domain.AIProviderGemini])
}

func TestConfigStore_Load_PrefixedEnvBeatsProviderEnv(t *testing.T) {
	store := newTestStore(t, map[string]string{
		"OPENAI_API_KEY":     "from-provider-var",
		"TRACEQ_KEYS_OPENAI": "from-prefixed-var",
	})

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, "from-prefixed-var", settings.ProviderKeys[domain.AIProviderOpenAI])
}

func TestConfigStore_Load_InvalidEnvValue(t *testing.T) {
	store := newTestStore(t, map[string]string{"TRACEQ_CHUNKING_SIZE": "large"})

	_, err := store.Load()

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), "TRACEQ_CHUNKING_SIZE")
}

func TestConfigStore_Load_DotEnv(t *testing.T) {
	const key = "TRACEQ_RETRIEVAL_TOKEN_BUDGET"
	if _, ok := os.LookupEnv(key); ok {
		t.Skipf("%s already set in the environment", key)
	}
	t.Cleanup(func() { _ = os.Unsetenv(key) })

	tmpDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(key+"=2500\n"), 0600))
	store, err := NewConfigStore(tmpDir)
	require.NoError(t, err)

	settings, err := store.Load()

	require.NoError(t, err)
	assert.Equal(t, 2500, settings.Retrieval.TokenBudget)
}

func TestConfigStore_Load_ValidationFailures(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"overlap not below size", "[chunking]\nsize = 100\noverlap = 100\n"},
		{"unknown provider", "[llm]\nprovider = \"mystery\"\n"},
		{"qdrant without url", "[vector]\nbackend = \"qdrant\"\n"},
		{"gcs without bucket", "[blob]\nbackend = \"gcs\"\n"},
		{"redis without addr", "[cache]\nbackend = \"redis\"\n"},
		{"bad delete policy", "[journeys]\ndelete_policy = \"shred\"\n"},
		{"bad duration", "[providers]\ntimeout = \"soon\"\n"},
		{"negative duration", "[retention]\ntask_ttl = \"-1h\"\n"},
		{"malformed toml", "[chunking\nsize = 1\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newTestStore(t, nil)
			require.NoError(t, os.WriteFile(store.Path(), []byte(tt.content), 0600))

			_, err := store.Load()

			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestConfigStore_SetAndGet(t *testing.T) {
	store := newTestStore(t, nil)

	require.NoError(t, store.Set("retrieval.top_k", "42"))
	require.NoError(t, store.Set("llm.temperature", "0.7"))
	require.NoError(t, store.Set("embedding.provider", "ollama"))

	val, err := store.Get("retrieval.top_k")
	require.NoError(t, err)
	assert.Equal(t, "42", val)

	settings, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 42, settings.Retrieval.TopK)
	assert.InDelta(t, 0.7, settings.LLM.Temperature, 1e-9)
	assert.Equal(t, domain.AIProviderOllama, settings.Embedding.Provider)
}

func TestConfigStore_Set_DoesNotPersistEnv(t *testing.T) {
	store := newTestStore(t, map[string]string{"TRACEQ_LLM_MODEL": "from-env"})

	require.NoError(t, store.Set("retrieval.top_k", "7"))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "from-env")

	val, err := store.Get("llm.model")
	require.NoError(t, err)
	assert.Equal(t, "from-env", val)
}

func TestConfigStore_Set_Errors(t *testing.T) {
	store := newTestStore(t, nil)

	err := store.Set("retrieval.nope", "1")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = store.Set("retrieval.top_k", "many")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	err = store.Set("chunking.overlap", "5000")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = os.Stat(store.Path())
	assert.True(t, os.IsNotExist(err), "rejected values must not create the file")
}

func TestConfigStore_Get_UnknownKey(t *testing.T) {
	store := newTestStore(t, nil)

	_, err := store.Get("does.not.exist")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigStore_SaveReload_TOML(t *testing.T) {
	store := newTestStore(t, nil)
	settings := domain.DefaultSettings()
	settings.Retrieval.TopK = 17
	settings.Limits.Timeout = 45 * time.Second
	settings.Retention.OlderThanDays = 90
	settings.ProviderKeys = map[domain.AIProvider]string{domain.AIProviderGemini: "g-key"}

	require.NoError(t, store.Save(settings))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, 17, loaded.Retrieval.TopK)
	assert.Equal(t, 45*time.Second, loaded.Limits.Timeout)
	assert.Equal(t, 90, loaded.Retention.OlderThanDays)
	assert.Equal(t, "g-key", loaded.ProviderKeys[domain.AIProviderGemini])
}

func TestConfigStore_SaveReload_YAML(t *testing.T) {
	store, err := NewConfigStore(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	store.getenv = func(string) string { return "" }
	settings := domain.DefaultSettings()
	settings.Chunking = domain.ChunkingSettings{Size: 500, Overlap: 50}

	require.NoError(t, store.Save(settings))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), "chunking:\n  size: 500")

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, settings.Chunking, loaded.Chunking)
}

func TestConfigStore_Save_RejectsInvalid(t *testing.T) {
	store := newTestStore(t, nil)
	settings := domain.DefaultSettings()
	settings.Retrieval.TopK = 0

	err := store.Save(settings)

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestConfigStore_FilePermissions(t *testing.T) {
	store := newTestStore(t, nil)

	require.NoError(t, store.Set("retrieval.top_k", "3"))

	info, err := os.Stat(store.Path())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}

func TestConfigStore_Concurrency(t *testing.T) {
	store := newTestStore(t, nil)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = store.Set("retrieval.top_k", "9")
			_, _ = store.Load()
		}()
	}
	wg.Wait()

	val, err := store.Get("retrieval.top_k")
	require.NoError(t, err)
	assert.Equal(t, "9", val)
}

func TestKeysAndSecrets(t *testing.T) {
	keys := Keys()

	assert.Contains(t, keys, "chunking.size")
	assert.Contains(t, keys, "providers.timeout")
	assert.Contains(t, keys, "keys.claude")
	assert.IsIncreasing(t, keys)

	assert.True(t, IsSecretKey("llm.api_key"))
	assert.True(t, IsSecretKey("keys.gemini"))
	assert.False(t, IsSecretKey("llm.model"))
}
