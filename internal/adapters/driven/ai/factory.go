// Package ai resolves the configured AI provider variant into concrete
// embedding and completion services, each wrapped in a Guard.
package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/custodia-labs/traceq/internal/adapters/driven/embedding/cached"
	geminiembed "github.com/custodia-labs/traceq/internal/adapters/driven/embedding/gemini"
	"github.com/custodia-labs/traceq/internal/adapters/driven/embedding/hashing"
	ollamaembed "github.com/custodia-labs/traceq/internal/adapters/driven/embedding/ollama"
	openaiembed "github.com/custodia-labs/traceq/internal/adapters/driven/embedding/openai"
	anthropicllm "github.com/custodia-labs/traceq/internal/adapters/driven/llm/anthropic"
	geminillm "github.com/custodia-labs/traceq/internal/adapters/driven/llm/gemini"
	ollamallm "github.com/custodia-labs/traceq/internal/adapters/driven/llm/ollama"
	openaillm "github.com/custodia-labs/traceq/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// pingTimeout is the maximum time to wait for service connectivity validation.
const pingTimeout = 5 * time.Second

// ResolveOptions tunes Resolve.
type ResolveOptions struct {
	// Cache, when set, fronts the embedding service.
	Cache driven.EmbeddingCache

	// Validate pings each completion candidate and skips unreachable ones.
	// Without it, Ollama is only used when it is the preferred provider.
	Validate bool
}

// Providers is the resolved provider variant. It is built once at startup
// and passed to the services that need it.
type Providers struct {
	// Variant tags the completion provider in use, or the embedding
	// provider when no completion provider is available.
	Variant domain.AIProvider

	// Embedding is always set.
	Embedding driven.EmbeddingService

	// EmbeddingProvider is the provider behind Embedding.
	EmbeddingProvider domain.AIProvider

	// Completion is nil when no completion provider is available.
	Completion driven.CompletionService

	// Warnings lists non-fatal issues that caused a fallback.
	Warnings []string
}

// HasCompletion reports whether a completion provider was resolved.
func (p *Providers) HasCompletion() bool {
	return p != nil && p.Completion != nil
}

// Close releases all resources held by the providers.
func (p *Providers) Close() {
	if p.Embedding != nil {
		_ = p.Embedding.Close()
	}
	if p.Completion != nil {
		_ = p.Completion.Close()
	}
}

// Resolve builds the provider record for settings.
//
// The embedding side uses the configured embedding provider, falling back to
// the offline hashing embedder when it lacks credentials or cannot embed
// (Claude has no embeddings). The completion side tries the preferred
// provider, then domain.ProviderFallbackOrder, and is left nil when none is
// usable.
func Resolve(ctx context.Context, settings domain.Settings, opts ResolveOptions) (*Providers, error) {
	guard := NewGuard(settings.Limits)
	p := &Providers{}

	emb, embProvider, err := resolveEmbedding(ctx, &settings, p)
	if err != nil {
		return nil, err
	}
	p.EmbeddingProvider = embProvider
	p.Embedding = NewGuardedEmbedding(cached.New(emb, opts.Cache), guard)

	llm, llmProvider := resolveCompletion(ctx, &settings, opts, p)
	if llm != nil {
		p.Completion = NewGuardedCompletion(llm, guard)
		p.Variant = llmProvider
	} else {
		p.Variant = embProvider
	}

	for _, w := range p.Warnings {
		logger.Warn("ai provider fallback", "detail", w)
	}
	logger.Debug("resolved ai providers", "variant", p.Variant, "embedding", embProvider,
		"embedding_model", p.Embedding.ModelName())
	return p, nil
}

func resolveEmbedding(
	ctx context.Context,
	settings *domain.Settings,
	p *Providers,
) (driven.EmbeddingService, domain.AIProvider, error) {
	es := settings.Embedding
	if es.APIKey == "" {
		es.APIKey = settings.KeyFor(es.Provider)
	}

	prof, ok := es.Provider.Profile()
	switch {
	case !ok:
		return nil, "", fmt.Errorf("%w: unknown embedding provider %q", domain.ErrInvalidInput, es.Provider)
	case !prof.SupportsEmbeddings:
		p.Warnings = append(p.Warnings,
			fmt.Sprintf("%s does not provide embeddings, using the offline embedder", es.Provider))
		return hashing.NewEmbeddingService(), domain.AIProviderOffline, nil
	case !es.IsConfigured():
		p.Warnings = append(p.Warnings,
			fmt.Sprintf("%s embeddings need an API key, using the offline embedder", es.Provider))
		return hashing.NewEmbeddingService(), domain.AIProviderOffline, nil
	}

	svc, err := CreateEmbeddingService(ctx, &es)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %w", domain.ErrEmbeddingUnavailable, err)
	}
	return svc, es.Provider, nil
}

func resolveCompletion(
	ctx context.Context,
	settings *domain.Settings,
	opts ResolveOptions,
	p *Providers,
) (driven.CompletionService, domain.AIProvider) {
	candidates := []domain.AIProvider{settings.LLM.Provider}
	for _, fb := range domain.ProviderFallbackOrder() {
		if fb != settings.LLM.Provider {
			candidates = append(candidates, fb)
		}
	}

	for i, provider := range candidates {
		prof, ok := provider.Profile()
		if !ok || !prof.SupportsCompletion {
			continue
		}
		ls := settings.LLM
		if i > 0 {
			// Fallback candidates use their own defaults.
			ls = domain.LLMSettings{
				Provider:    provider,
				MaxTokens:   settings.LLM.MaxTokens,
				Temperature: settings.LLM.Temperature,
			}
			if provider.IsLocal() && !opts.Validate {
				continue
			}
		}
		ls.APIKey = settings.KeyFor(provider)
		if !ls.IsConfigured() {
			continue
		}

		svc, err := CreateLLMService(ctx, &ls)
		if err != nil {
			p.Warnings = append(p.Warnings, fmt.Sprintf("%s completion: %v", provider, err))
			continue
		}
		if opts.Validate {
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			err = svc.Ping(pctx)
			cancel()
			if err != nil {
				_ = svc.Close()
				p.Warnings = append(p.Warnings, fmt.Sprintf("%s completion unreachable: %v", provider, err))
				continue
			}
		}
		if i > 0 {
			p.Warnings = append(p.Warnings,
				fmt.Sprintf("preferred completion provider %s unavailable, using %s", settings.LLM.Provider, provider))
		}
		return svc, provider
	}
	return nil, ""
}

// CreateEmbeddingService creates the embedding service for settings without
// any fallback. Returns nil if the provider is not configured.
func CreateEmbeddingService(ctx context.Context, settings *domain.EmbeddingSettings) (driven.EmbeddingService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOffline:
		return hashing.NewEmbeddingService(), nil

	case domain.AIProviderOllama:
		return ollamaembed.NewEmbeddingService(ollamaembed.Config{
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		}), nil

	case domain.AIProviderOpenAI:
		return openaiembed.NewEmbeddingService(openaiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	case domain.AIProviderGemini:
		return geminiembed.NewEmbeddingService(ctx, geminiembed.Config{
			APIKey:     settings.APIKey,
			BaseURL:    settings.BaseURL,
			Model:      settings.Model,
			Dimensions: settings.Dimensions,
		})

	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", settings.Provider)
	}
}

// CreateLLMService creates the completion service for settings without any
// fallback. Returns nil if the provider is not configured.
func CreateLLMService(ctx context.Context, settings *domain.LLMSettings) (driven.CompletionService, error) {
	if settings == nil || !settings.IsConfigured() {
		return nil, nil
	}

	switch settings.Provider {
	case domain.AIProviderOllama:
		return ollamallm.NewLLMService(ollamallm.LLMConfig{
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		}), nil

	case domain.AIProviderOpenAI:
		return openaillm.NewLLMService(openaillm.LLMConfig{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderClaude:
		return anthropicllm.NewLLMService(anthropicllm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	case domain.AIProviderGemini:
		return geminillm.NewLLMService(ctx, geminillm.Config{
			APIKey:  settings.APIKey,
			BaseURL: settings.BaseURL,
			Model:   settings.Model,
		})

	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", settings.Provider)
	}
}
