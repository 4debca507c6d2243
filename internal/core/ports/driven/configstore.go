package driven

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// ConfigStore provides access to application configuration.
// Implementations handle persistence (e.g., TOML or YAML files), environment
// overlays and validation.
type ConfigStore interface {
	// Load reads configuration from storage, applying defaults and the
	// environment overlay. A missing file yields defaults.
	Load() (domain.Settings, error)

	// Save persists settings to storage.
	Save(settings domain.Settings) error

	// Set updates a single dotted key (e.g. "llm.provider") and persists it.
	Set(key, value string) error

	// Path returns the configuration file path.
	Path() string
}

// AIConfigValidator checks provider settings against the live service.
type AIConfigValidator interface {
	// ValidateEmbedding returns nil if the embedding provider answers.
	ValidateEmbedding(ctx context.Context, settings *domain.EmbeddingSettings) error

	// ValidateLLM returns nil if the completion provider answers.
	ValidateLLM(ctx context.Context, settings *domain.LLMSettings) error
}
