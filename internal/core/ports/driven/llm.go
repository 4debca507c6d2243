package driven

import "context"

// CompletionService maps a prompt to generated text.
// This is an optional service - when nil, LLM-backed features degrade.
//
// Implementations may include:
//   - Claude (Anthropic Messages API)
//   - Gemini
//   - OpenAI (GPT-4o and compatible)
//   - Ollama (local models)
//
// Rate limits and transient unavailability surface as *domain.RetrievableError;
// invalid credentials and malformed requests as *domain.FatalError.
type CompletionService interface {
	// Complete generates text from a prompt.
	Complete(ctx context.Context, prompt string, opts CompleteOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// CompleteOptions configures text generation.
type CompleteOptions struct {
	// MaxTokens limits the response length.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64

	// System is an optional system instruction.
	System string
}
