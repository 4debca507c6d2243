package driven

// PromptStore provides access to LLM prompt templates.
// Implementations may load prompts from files, embed them in the binary,
// or fetch them from a remote configuration service.
type PromptStore interface {
	// Load returns the prompt template for the given name.
	// Returns the prompt content and any error encountered.
	// If the prompt is not found, implementations should return a sensible default
	// or an error, depending on whether the prompt is required.
	Load(name string) (string, error)

	// Reload clears any cached prompts, forcing fresh loads on next access.
	// This is useful when prompts may have been edited on disk.
	Reload()
}

// Well-known prompt names used throughout the application.
// These constants define the contract between prompt consumers and providers.
const (
	// PromptSummarise creates the version summary recorded at ingest.
	// The prompt template expects a %s placeholder for the document text.
	PromptSummarise = "summarise"

	// PromptClassifyChange classifies a requirement delta.
	// The prompt template expects %s (journey) and %s (changed hunks) placeholders.
	PromptClassifyChange = "classify_change"

	// PromptGenerateTests produces QA test cases from retrieved context.
	// The prompt template expects %d (case count), %s (journey) and %s (context) placeholders.
	PromptGenerateTests = "generate_tests"

	// PromptFactCheck answers a claim from retrieved evidence.
	// The prompt template expects %s (claim) and %s (evidence) placeholders.
	PromptFactCheck = "fact_check"
)

// PromptStoreAware is an optional interface for services that can use custom prompts.
// Services implementing this interface can have their prompt templates customised
// by injecting a PromptStore after construction.
type PromptStoreAware interface {
	// SetPromptStore sets the prompt store for loading customisable prompts.
	// If not set, the service should use hardcoded default prompts.
	SetPromptStore(store PromptStore)
}
