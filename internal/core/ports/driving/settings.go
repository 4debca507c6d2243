package driving

import (
	"context"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

// SettingsService reads and updates the application configuration.
type SettingsService interface {
	// Get returns the effective settings, file and environment combined.
	Get() (domain.Settings, error)

	// Set updates one dotted key and persists it.
	Set(key, value string) error

	// SetEmbeddingProvider selects the embedding provider and model.
	SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error

	// SetLLMProvider selects the preferred completion provider and model.
	SetLLMProvider(provider domain.AIProvider, model, apiKey string) error

	// SetProviderKey stores the API key of a fallback provider.
	SetProviderKey(provider domain.AIProvider, apiKey string) error

	// Validate checks the settings for contradictions without network calls.
	Validate() error

	// ValidateEmbeddingConfig pings the configured embedding provider.
	ValidateEmbeddingConfig(ctx context.Context) error

	// ValidateLLMConfig pings the configured completion provider.
	ValidateLLMConfig(ctx context.Context) error

	// Path returns the configuration file location.
	Path() string
}
