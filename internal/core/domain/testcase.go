package domain

// TestCase is a generated QA test case.
type TestCase struct {
	ID              string   `json:"test_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Preconditions   []string `json:"preconditions"`
	Steps           []string `json:"test_steps"`
	ExpectedResults []string `json:"expected_results"`
	TestData        string   `json:"test_data,omitempty"`
	Priority        string   `json:"priority"`
	Type            string   `json:"test_type"`

	// SourceChunks lists the chunk ids the case was derived from.
	SourceChunks []string `json:"source_chunks,omitempty"`
}

// FactVerdict is the outcome of checking a claim against the journey's documents.
type FactVerdict string

// Fact check verdicts.
const (
	VerdictSupported    FactVerdict = "supported"
	VerdictContradicted FactVerdict = "contradicted"
	VerdictInsufficient FactVerdict = "insufficient_evidence"
)

// FactCheckResult is the answer to a fact check.
type FactCheckResult struct {
	Claim      string         `json:"claim"`
	Verdict    FactVerdict    `json:"verdict"`
	Answer     string         `json:"answer"`
	Confidence float64        `json:"confidence"`
	Evidence   *ContextBundle `json:"evidence"`
}
