package domain

import "time"

const unknownDescription = "Unknown"

// AIProvider identifies an AI service provider for embeddings or completion.
type AIProvider string

// Available AI providers.
const (
	// AIProviderClaude is the Anthropic Messages API.
	AIProviderClaude AIProvider = "claude"

	// AIProviderGemini is the Google Gemini API.
	AIProviderGemini AIProvider = "gemini"

	// AIProviderOpenAI is OpenAI cloud API.
	AIProviderOpenAI AIProvider = "openai"

	// AIProviderOllama is local Ollama instance.
	AIProviderOllama AIProvider = "ollama"

	// AIProviderOffline is the deterministic in-process hashing embedder.
	// It has no completion side.
	AIProviderOffline AIProvider = "offline"
)

// ProviderProfile is the capability record of one provider variant.
type ProviderProfile struct {
	Provider           AIProvider
	SupportsEmbeddings bool
	SupportsCompletion bool
	RequiresAPIKey     bool
	DefaultBaseURL     string
	DefaultLLMModel    string
	DefaultEmbedModel  string
}

var providerProfiles = map[AIProvider]ProviderProfile{
	AIProviderClaude: {
		Provider:           AIProviderClaude,
		SupportsCompletion: true,
		RequiresAPIKey:     true,
		DefaultLLMModel:    "claude-3-5-haiku-20241022",
	},
	AIProviderGemini: {
		Provider:           AIProviderGemini,
		SupportsEmbeddings: true,
		SupportsCompletion: true,
		RequiresAPIKey:     true,
		DefaultLLMModel:    "gemini-2.0-flash",
		DefaultEmbedModel:  "text-embedding-004",
	},
	AIProviderOpenAI: {
		Provider:           AIProviderOpenAI,
		SupportsEmbeddings: true,
		SupportsCompletion: true,
		RequiresAPIKey:     true,
		DefaultBaseURL:     "https://api.openai.com/v1",
		DefaultLLMModel:    "gpt-4o-mini",
		DefaultEmbedModel:  "text-embedding-3-small",
	},
	AIProviderOllama: {
		Provider:           AIProviderOllama,
		SupportsEmbeddings: true,
		SupportsCompletion: true,
		DefaultBaseURL:     "http://localhost:11434",
		DefaultLLMModel:    "llama3.2",
		DefaultEmbedModel:  "nomic-embed-text",
	},
	AIProviderOffline: {
		Provider:           AIProviderOffline,
		SupportsEmbeddings: true,
		DefaultEmbedModel:  "hashing-768",
	},
}

// Profile returns the capability record for the provider.
func (p AIProvider) Profile() (ProviderProfile, bool) {
	prof, ok := providerProfiles[p]
	return prof, ok
}

// IsValid returns true if the AI provider is recognised.
func (p AIProvider) IsValid() bool {
	_, ok := providerProfiles[p]
	return ok
}

// RequiresAPIKey returns true if this provider needs an API key.
func (p AIProvider) RequiresAPIKey() bool {
	return providerProfiles[p].RequiresAPIKey
}

// IsLocal returns true if this provider runs without a cloud account.
func (p AIProvider) IsLocal() bool {
	return p == AIProviderOllama || p == AIProviderOffline
}

// String returns the string representation.
func (p AIProvider) String() string {
	return string(p)
}

// Description returns a human-readable description of the provider.
func (p AIProvider) Description() string {
	switch p {
	case AIProviderClaude:
		return "Claude (Anthropic cloud)"
	case AIProviderGemini:
		return "Gemini (Google cloud)"
	case AIProviderOpenAI:
		return "OpenAI (cloud)"
	case AIProviderOllama:
		return "Ollama (local)"
	case AIProviderOffline:
		return "Offline hashing embedder"
	default:
		return unknownDescription
	}
}

// AllAIProviders returns every known provider.
func AllAIProviders() []AIProvider {
	return []AIProvider{AIProviderClaude, AIProviderGemini, AIProviderOpenAI, AIProviderOllama, AIProviderOffline}
}

// ProviderFallbackOrder is the order tried when the preferred completion
// provider is not configured.
func ProviderFallbackOrder() []AIProvider {
	return []AIProvider{AIProviderClaude, AIProviderGemini, AIProviderOpenAI, AIProviderOllama}
}

// EmbeddingDimensions returns the vector dimensions for known models.
func EmbeddingDimensions() map[string]int {
	return map[string]int{
		"nomic-embed-text":       768,
		"mxbai-embed-large":      1024,
		"all-minilm":             384,
		"text-embedding-3-small": 1536,
		"text-embedding-3-large": 3072,
		"text-embedding-ada-002": 1536,
		"text-embedding-004":     768,
		"hashing-768":            768,
	}
}

// EmbeddingSettings holds embedding provider configuration.
type EmbeddingSettings struct {
	// Provider is the embedding service provider.
	Provider AIProvider

	// Model is the embedding model name.
	Model string

	// BaseURL is the API endpoint (for Ollama and OpenAI-compatible servers).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// Dimensions overrides the model's default vector size when non-zero.
	Dimensions int
}

// IsConfigured returns true if the embedding provider is set up.
func (e EmbeddingSettings) IsConfigured() bool {
	prof, ok := e.Provider.Profile()
	if !ok || !prof.SupportsEmbeddings {
		return false
	}
	return !prof.RequiresAPIKey || e.APIKey != ""
}

// LLMSettings holds completion provider configuration.
type LLMSettings struct {
	// Provider is the preferred completion provider.
	Provider AIProvider

	// Model is the LLM model name.
	Model string

	// BaseURL is the API endpoint (for Ollama).
	BaseURL string

	// APIKey is the API key for cloud providers.
	APIKey string

	// MaxTokens caps generated output.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64
}

// IsConfigured returns true if the completion provider is set up.
func (l LLMSettings) IsConfigured() bool {
	prof, ok := l.Provider.Profile()
	if !ok || !prof.SupportsCompletion {
		return false
	}
	return !prof.RequiresAPIKey || l.APIKey != ""
}

// ProviderLimits bounds every provider and remote index call.
type ProviderLimits struct {
	// Timeout applies to each individual call.
	Timeout time.Duration

	// MaxAttempts bounds automatic retries of retrievable errors.
	MaxAttempts int

	// RequestsPerSecond rate-limits provider calls, 0 for unlimited.
	RequestsPerSecond float64
}

// ChunkingSettings configures the chunker.
type ChunkingSettings struct {
	// Size is the maximum number of tokens per chunk.
	Size int

	// Overlap is the number of tokens repeated from the previous chunk.
	Overlap int
}

// RetrievalSettings holds context assembly defaults.
type RetrievalSettings struct {
	// TopK is the default number of candidates requested from the index.
	TopK int

	// TokenBudget is the default budget for assembled context.
	TokenBudget int
}

// VectorBackend selects the remote vector index.
type VectorBackend string

// Vector index backends.
const (
	VectorBackendMemory    VectorBackend = "memory"
	VectorBackendQdrant    VectorBackend = "qdrant"
	VectorBackendFirestore VectorBackend = "firestore"
)

// VectorSettings configures the vector index.
type VectorSettings struct {
	Backend VectorBackend

	// QdrantURL, QdrantCollection and QdrantAPIKey configure the Qdrant backend.
	QdrantURL        string
	QdrantCollection string
	QdrantAPIKey     string

	// NamespacePrefix qualifies journey namespaces in shared storage.
	NamespacePrefix string

	// FirestoreProject and FirestoreCollection configure the Firestore backend.
	FirestoreProject    string
	FirestoreCollection string
}

// StorageSettings configures metadata persistence.
type StorageSettings struct {
	// Backend is "sqlite" or "memory".
	Backend string

	// DataDir holds the SQLite database.
	DataDir string
}

// BlobSettings configures the raw document store.
type BlobSettings struct {
	// Backend is "local" or "gcs".
	Backend string

	// Root is the local directory for the local backend.
	Root string

	// Bucket is the GCS bucket for the gcs backend.
	Bucket string

	// CredentialsFile is an optional service account file for GCS and Firestore.
	CredentialsFile string
}

// CacheSettings configures the embedding cache.
type CacheSettings struct {
	// Backend is "none", "memory" or "redis".
	Backend string

	// RedisAddr is host:port of the Redis server.
	RedisAddr string

	// TTL expires cached vectors, 0 keeps them forever.
	TTL time.Duration
}

// RetentionSettings configures periodic cleanup.
type RetentionSettings struct {
	// Schedule is a cron expression; empty disables the scheduler.
	Schedule string

	// OlderThanDays removes versions older than this; 0 disables version cleanup.
	OlderThanDays int

	// TaskTTL prunes finished tasks older than this.
	TaskTTL time.Duration
}

// Settings is the explicit configuration object passed to the core.
type Settings struct {
	Chunking     ChunkingSettings
	Retrieval    RetrievalSettings
	Embedding    EmbeddingSettings
	LLM          LLMSettings
	Limits       ProviderLimits
	Vector       VectorSettings
	Storage      StorageSettings
	Blob         BlobSettings
	Cache        CacheSettings
	Retention    RetentionSettings
	DeletePolicy JourneyDeletePolicy

	// ProviderKeys holds API keys for providers other than the preferred
	// ones, consulted when falling back.
	ProviderKeys map[AIProvider]string
}

// KeyFor returns the API key known for provider p: the preferred LLM or
// embedding key when p is that provider, otherwise ProviderKeys.
func (s *Settings) KeyFor(p AIProvider) string {
	if s.LLM.Provider == p && s.LLM.APIKey != "" {
		return s.LLM.APIKey
	}
	if s.Embedding.Provider == p && s.Embedding.APIKey != "" {
		return s.Embedding.APIKey
	}
	return s.ProviderKeys[p]
}

// DefaultSettings returns settings that work offline out of the box.
func DefaultSettings() Settings {
	return Settings{
		Chunking:  ChunkingSettings{Size: 1000, Overlap: 200},
		Retrieval: RetrievalSettings{TopK: 10, TokenBudget: 4000},
		Embedding: EmbeddingSettings{
			Provider: AIProviderOffline,
			Model:    "hashing-768",
		},
		LLM: LLMSettings{
			Provider:    AIProviderClaude,
			MaxTokens:   4000,
			Temperature: 0.2,
		},
		Limits: ProviderLimits{
			Timeout:     30 * time.Second,
			MaxAttempts: 2,
		},
		Vector: VectorSettings{
			Backend:             VectorBackendMemory,
			QdrantCollection:    "traceq",
			NamespacePrefix:     "traceq",
			FirestoreCollection: "traceq_chunks",
		},
		Storage:   StorageSettings{Backend: "sqlite"},
		Blob:      BlobSettings{Backend: "local"},
		Cache:     CacheSettings{Backend: "memory"},
		Retention: RetentionSettings{Schedule: "@daily", TaskTTL: 24 * time.Hour},

		DeletePolicy: JourneyDeleteOrphan,
	}
}
