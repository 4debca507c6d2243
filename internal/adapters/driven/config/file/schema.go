package file

import (
	"fmt"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// fileSettings is the on-disk shape of the configuration. Durations are
// strings such as "30s" so the file stays readable.
type fileSettings struct {
	Chunking  chunkingSection  `toml:"chunking" yaml:"chunking"`
	Retrieval retrievalSection `toml:"retrieval" yaml:"retrieval"`
	Embedding embeddingSection `toml:"embedding" yaml:"embedding"`
	LLM       llmSection       `toml:"llm" yaml:"llm"`
	Providers providersSection `toml:"providers" yaml:"providers"`
	Vector    vectorSection    `toml:"vector" yaml:"vector"`
	Storage   storageSection   `toml:"storage" yaml:"storage"`
	Blob      blobSection      `toml:"blob" yaml:"blob"`
	Cache     cacheSection     `toml:"cache" yaml:"cache"`
	Retention retentionSection `toml:"retention" yaml:"retention"`
	Journeys  journeysSection  `toml:"journeys" yaml:"journeys"`
	Keys      keysSection      `toml:"keys" yaml:"keys"`
}

type chunkingSection struct {
	Size    int `toml:"size" yaml:"size" validate:"min=1"`
	Overlap int `toml:"overlap" yaml:"overlap" validate:"min=0,ltfield=Size"`
}

type retrievalSection struct {
	TopK        int `toml:"top_k" yaml:"top_k" validate:"min=1,max=1000"`
	TokenBudget int `toml:"token_budget" yaml:"token_budget" validate:"min=1"`
}

type embeddingSection struct {
	Provider   string `toml:"provider" yaml:"provider" validate:"oneof=claude gemini openai ollama offline"`
	Model      string `toml:"model" yaml:"model"`
	BaseURL    string `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey     string `toml:"api_key" yaml:"api_key"`
	Dimensions int    `toml:"dimensions" yaml:"dimensions" validate:"min=0"`
}

type llmSection struct {
	Provider    string  `toml:"provider" yaml:"provider" validate:"oneof=claude gemini openai ollama offline"`
	Model       string  `toml:"model" yaml:"model"`
	BaseURL     string  `toml:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey      string  `toml:"api_key" yaml:"api_key"`
	MaxTokens   int     `toml:"max_tokens" yaml:"max_tokens" validate:"min=1,max=200000"`
	Temperature float64 `toml:"temperature" yaml:"temperature" validate:"gte=0,lte=2"`
}

type providersSection struct {
	Timeout           string  `toml:"timeout" yaml:"timeout" validate:"required"`
	MaxAttempts       int     `toml:"max_attempts" yaml:"max_attempts" validate:"min=1,max=10"`
	RequestsPerSecond float64 `toml:"requests_per_second" yaml:"requests_per_second" validate:"gte=0"`
}

type vectorSection struct {
	Backend             string `toml:"backend" yaml:"backend" validate:"oneof=memory qdrant firestore"`
	QdrantURL           string `toml:"qdrant_url" yaml:"qdrant_url" validate:"required_if=Backend qdrant"`
	QdrantCollection    string `toml:"qdrant_collection" yaml:"qdrant_collection"`
	QdrantAPIKey        string `toml:"qdrant_api_key" yaml:"qdrant_api_key"`
	NamespacePrefix     string `toml:"namespace_prefix" yaml:"namespace_prefix"`
	FirestoreProject    string `toml:"firestore_project" yaml:"firestore_project" validate:"required_if=Backend firestore"`
	FirestoreCollection string `toml:"firestore_collection" yaml:"firestore_collection"`
}

type storageSection struct {
	Backend string `toml:"backend" yaml:"backend" validate:"oneof=sqlite memory"`
	DataDir string `toml:"data_dir" yaml:"data_dir"`
}

type blobSection struct {
	Backend         string `toml:"backend" yaml:"backend" validate:"oneof=local gcs"`
	Root            string `toml:"root" yaml:"root"`
	Bucket          string `toml:"bucket" yaml:"bucket" validate:"required_if=Backend gcs"`
	CredentialsFile string `toml:"credentials_file" yaml:"credentials_file"`
}

type cacheSection struct {
	Backend   string `toml:"backend" yaml:"backend" validate:"oneof=none memory redis"`
	RedisAddr string `toml:"redis_addr" yaml:"redis_addr" validate:"required_if=Backend redis"`
	TTL       string `toml:"ttl" yaml:"ttl"`
}

type retentionSection struct {
	Schedule      string `toml:"schedule" yaml:"schedule"`
	OlderThanDays int    `toml:"older_than_days" yaml:"older_than_days" validate:"min=0"`
	TaskTTL       string `toml:"task_ttl" yaml:"task_ttl"`
}

type journeysSection struct {
	DeletePolicy string `toml:"delete_policy" yaml:"delete_policy" validate:"oneof=orphan cascade"`
}

// keysSection holds fallback provider API keys.
type keysSection struct {
	Claude string `toml:"claude" yaml:"claude"`
	Gemini string `toml:"gemini" yaml:"gemini"`
	OpenAI string `toml:"openai" yaml:"openai"`
}

func fromDomain(s *domain.Settings) fileSettings {
	return fileSettings{
		Chunking:  chunkingSection{Size: s.Chunking.Size, Overlap: s.Chunking.Overlap},
		Retrieval: retrievalSection{TopK: s.Retrieval.TopK, TokenBudget: s.Retrieval.TokenBudget},
		Embedding: embeddingSection{
			Provider:   string(s.Embedding.Provider),
			Model:      s.Embedding.Model,
			BaseURL:    s.Embedding.BaseURL,
			APIKey:     s.Embedding.APIKey,
			Dimensions: s.Embedding.Dimensions,
		},
		LLM: llmSection{
			Provider:    string(s.LLM.Provider),
			Model:       s.LLM.Model,
			BaseURL:     s.LLM.BaseURL,
			APIKey:      s.LLM.APIKey,
			MaxTokens:   s.LLM.MaxTokens,
			Temperature: s.LLM.Temperature,
		},
		Providers: providersSection{
			Timeout:           formatDuration(s.Limits.Timeout),
			MaxAttempts:       s.Limits.MaxAttempts,
			RequestsPerSecond: s.Limits.RequestsPerSecond,
		},
		Vector: vectorSection{
			Backend:             string(s.Vector.Backend),
			QdrantURL:           s.Vector.QdrantURL,
			QdrantCollection:    s.Vector.QdrantCollection,
			QdrantAPIKey:        s.Vector.QdrantAPIKey,
			NamespacePrefix:     s.Vector.NamespacePrefix,
			FirestoreProject:    s.Vector.FirestoreProject,
			FirestoreCollection: s.Vector.FirestoreCollection,
		},
		Storage: storageSection{Backend: s.Storage.Backend, DataDir: s.Storage.DataDir},
		Blob: blobSection{
			Backend:         s.Blob.Backend,
			Root:            s.Blob.Root,
			Bucket:          s.Blob.Bucket,
			CredentialsFile: s.Blob.CredentialsFile,
		},
		Cache: cacheSection{
			Backend:   s.Cache.Backend,
			RedisAddr: s.Cache.RedisAddr,
			TTL:       formatDuration(s.Cache.TTL),
		},
		Retention: retentionSection{
			Schedule:      s.Retention.Schedule,
			OlderThanDays: s.Retention.OlderThanDays,
			TaskTTL:       formatDuration(s.Retention.TaskTTL),
		},
		Journeys: journeysSection{DeletePolicy: string(s.DeletePolicy)},
		Keys: keysSection{
			Claude: s.ProviderKeys[domain.AIProviderClaude],
			Gemini: s.ProviderKeys[domain.AIProviderGemini],
			OpenAI: s.ProviderKeys[domain.AIProviderOpenAI],
		},
	}
}

func (f *fileSettings) toDomain() (domain.Settings, error) {
	timeout, err := parseDuration("providers.timeout", f.Providers.Timeout)
	if err != nil {
		return domain.Settings{}, err
	}
	cacheTTL, err := parseDuration("cache.ttl", f.Cache.TTL)
	if err != nil {
		return domain.Settings{}, err
	}
	taskTTL, err := parseDuration("retention.task_ttl", f.Retention.TaskTTL)
	if err != nil {
		return domain.Settings{}, err
	}

	keys := map[domain.AIProvider]string{}
	for p, k := range map[domain.AIProvider]string{
		domain.AIProviderClaude: f.Keys.Claude,
		domain.AIProviderGemini: f.Keys.Gemini,
		domain.AIProviderOpenAI: f.Keys.OpenAI,
	} {
		if k != "" {
			keys[p] = k
		}
	}

	return domain.Settings{
		Chunking:  domain.ChunkingSettings{Size: f.Chunking.Size, Overlap: f.Chunking.Overlap},
		Retrieval: domain.RetrievalSettings{TopK: f.Retrieval.TopK, TokenBudget: f.Retrieval.TokenBudget},
		Embedding: domain.EmbeddingSettings{
			Provider:   domain.AIProvider(f.Embedding.Provider),
			Model:      f.Embedding.Model,
			BaseURL:    f.Embedding.BaseURL,
			APIKey:     f.Embedding.APIKey,
			Dimensions: f.Embedding.Dimensions,
		},
		LLM: domain.LLMSettings{
			Provider:    domain.AIProvider(f.LLM.Provider),
			Model:       f.LLM.Model,
			BaseURL:     f.LLM.BaseURL,
			APIKey:      f.LLM.APIKey,
			MaxTokens:   f.LLM.MaxTokens,
			Temperature: f.LLM.Temperature,
		},
		Limits: domain.ProviderLimits{
			Timeout:           timeout,
			MaxAttempts:       f.Providers.MaxAttempts,
			RequestsPerSecond: f.Providers.RequestsPerSecond,
		},
		Vector: domain.VectorSettings{
			Backend:             domain.VectorBackend(f.Vector.Backend),
			QdrantURL:           f.Vector.QdrantURL,
			QdrantCollection:    f.Vector.QdrantCollection,
			QdrantAPIKey:        f.Vector.QdrantAPIKey,
			NamespacePrefix:     f.Vector.NamespacePrefix,
			FirestoreProject:    f.Vector.FirestoreProject,
			FirestoreCollection: f.Vector.FirestoreCollection,
		},
		Storage: domain.StorageSettings{Backend: f.Storage.Backend, DataDir: f.Storage.DataDir},
		Blob: domain.BlobSettings{
			Backend:         f.Blob.Backend,
			Root:            f.Blob.Root,
			Bucket:          f.Blob.Bucket,
			CredentialsFile: f.Blob.CredentialsFile,
		},
		Cache: domain.CacheSettings{Backend: f.Cache.Backend, RedisAddr: f.Cache.RedisAddr, TTL: cacheTTL},
		Retention: domain.RetentionSettings{
			Schedule:      f.Retention.Schedule,
			OlderThanDays: f.Retention.OlderThanDays,
			TaskTTL:       taskTTL,
		},
		DeletePolicy: domain.JourneyDeletePolicy(f.Journeys.DeletePolicy),
		ProviderKeys: keys,
	}, nil
}

func formatDuration(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}

func parseDuration(key, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", domain.ErrInvalidInput, key)
	}
	return d, nil
}
