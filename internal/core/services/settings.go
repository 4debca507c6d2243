package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// Ensure SettingsService implements the interface.
var _ driving.SettingsService = (*SettingsService)(nil)

// SettingsService manages application settings.
type SettingsService struct {
	configStore driven.ConfigStore
	aiValidator driven.AIConfigValidator
}

// NewSettingsService creates a new settings service. aiValidator may be nil,
// in which case the live checks pass without contacting any provider.
func NewSettingsService(configStore driven.ConfigStore, aiValidator driven.AIConfigValidator) *SettingsService {
	return &SettingsService{
		configStore: configStore,
		aiValidator: aiValidator,
	}
}

// Get retrieves current application settings.
func (s *SettingsService) Get() (domain.Settings, error) {
	return s.configStore.Load()
}

// Set updates a single key.
func (s *SettingsService) Set(key, value string) error {
	return s.configStore.Set(key, value)
}

// Path returns the configuration file path.
func (s *SettingsService) Path() string {
	return s.configStore.Path()
}

// SetEmbeddingProvider configures the embedding provider. An empty model
// selects the provider's default model. Changing the model of a journey
// that is already indexed makes later ingests fail the dimension check.
func (s *SettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	prof, ok := provider.Profile()
	if !ok {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if !prof.SupportsEmbeddings {
		return fmt.Errorf("%w: %s does not provide embeddings", domain.ErrInvalidInput, provider.Description())
	}
	if prof.RequiresAPIKey && apiKey == "" {
		return fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidInput, provider.Description())
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.Embedding = domain.EmbeddingSettings{
		Provider: provider,
		Model:    orDefault(model, prof.DefaultEmbedModel),
		BaseURL:  prof.DefaultBaseURL,
		APIKey:   apiKey,
	}
	return s.configStore.Save(settings)
}

// SetLLMProvider configures the preferred completion provider.
func (s *SettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	prof, ok := provider.Profile()
	if !ok {
		return fmt.Errorf("%w: unknown provider %q", domain.ErrInvalidInput, provider)
	}
	if !prof.SupportsCompletion {
		return fmt.Errorf("%w: %s does not provide completions", domain.ErrInvalidInput, provider.Description())
	}
	if prof.RequiresAPIKey && apiKey == "" {
		return fmt.Errorf("%w: %s requires an API key", domain.ErrInvalidInput, provider.Description())
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	settings.LLM.Provider = provider
	settings.LLM.Model = orDefault(model, prof.DefaultLLMModel)
	settings.LLM.BaseURL = prof.DefaultBaseURL
	settings.LLM.APIKey = apiKey
	return s.configStore.Save(settings)
}

// SetProviderKey stores the key used when falling back to provider.
func (s *SettingsService) SetProviderKey(provider domain.AIProvider, apiKey string) error {
	if !provider.RequiresAPIKey() {
		return fmt.Errorf("%w: %s takes no API key", domain.ErrInvalidInput, provider)
	}
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return fmt.Errorf("%w: API key is empty", domain.ErrInvalidInput)
	}

	settings, err := s.Get()
	if err != nil {
		return err
	}
	if settings.ProviderKeys == nil {
		settings.ProviderKeys = make(map[domain.AIProvider]string)
	}
	settings.ProviderKeys[provider] = apiKey
	return s.configStore.Save(settings)
}

// Validate checks the settings for problems the config file schema cannot
// express. It reports every problem at once.
func (s *SettingsService) Validate() error {
	settings, err := s.Get()
	if err != nil {
		return err
	}

	var errs []error
	if prof, ok := settings.Embedding.Provider.Profile(); !ok || !prof.SupportsEmbeddings {
		errs = append(errs, fmt.Errorf("embedding provider %q cannot embed", settings.Embedding.Provider))
	} else if !settings.Embedding.IsConfigured() {
		errs = append(errs, fmt.Errorf("embedding provider %s has no API key; the offline embedder will be used",
			settings.Embedding.Provider))
	}
	if settings.Chunking.Overlap >= settings.Chunking.Size {
		errs = append(errs, fmt.Errorf("chunk overlap %d must be below chunk size %d",
			settings.Chunking.Overlap, settings.Chunking.Size))
	}
	if settings.Retention.Schedule != "" {
		if _, err := ParseSchedule(settings.Retention.Schedule); err != nil {
			errs = append(errs, err)
		}
	}
	if !settings.LLM.IsConfigured() && settings.KeyFor(settings.LLM.Provider) == "" {
		errs = append(errs, fmt.Errorf("completion provider %s has no API key; fallback providers will be tried",
			settings.LLM.Provider))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrInvalidInput, errors.Join(errs...))
	}
	return nil
}

// ValidateEmbeddingConfig validates the current embedding configuration by pinging the provider.
func (s *SettingsService) ValidateEmbeddingConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateEmbedding(ctx, &settings.Embedding)
}

// ValidateLLMConfig validates the current LLM configuration by pinging the provider.
func (s *SettingsService) ValidateLLMConfig(ctx context.Context) error {
	if s.aiValidator == nil {
		return nil
	}
	settings, err := s.Get()
	if err != nil {
		return err
	}
	return s.aiValidator.ValidateLLM(ctx, &settings.LLM)
}
