package domain

// ContextItem is one ranked entry of a ContextBundle.
type ContextItem struct {
	// Chunk is the retrieved chunk.
	Chunk Chunk `json:"chunk"`

	// Score is the similarity score, 1 for full-version bundles.
	Score float64 `json:"score"`

	// Rank is the 1-based position in the bundle.
	Rank int `json:"rank"`
}

// ContextBundle is the ephemeral result of a retrieval operation.
type ContextBundle struct {
	// Journey is the namespace the bundle was assembled from.
	Journey string `json:"journey"`

	// Query is the query text, empty for full-version bundles.
	Query string `json:"query,omitempty"`

	// VersionID is set for full-version bundles.
	VersionID string `json:"version_id,omitempty"`

	// Items are the selected chunks in rank order.
	Items []ContextItem `json:"items"`

	// Considered is the number of candidates returned by the index.
	Considered int `json:"considered"`

	// TokenBudget is the budget the bundle was packed under, 0 for unlimited.
	TokenBudget int `json:"token_budget"`

	// TokensUsed is the sum of the selected chunks' token counts.
	TokensUsed int `json:"tokens_used"`

	// Truncated is true when a candidate was skipped because of the budget.
	Truncated bool `json:"truncated"`
}

// Texts returns the chunk texts in bundle order.
func (b *ContextBundle) Texts() []string {
	out := make([]string, 0, len(b.Items))
	for _, it := range b.Items {
		out = append(out, it.Chunk.Text)
	}
	return out
}

// Reconstruct joins the core spans of a full-version bundle back into the
// document text. Items must be in document order.
func (b *ContextBundle) Reconstruct() (string, error) {
	var size int
	for i := range b.Items {
		size += len(b.Items[i].Chunk.Text)
	}
	buf := make([]byte, 0, size)
	for i := range b.Items {
		core, err := b.Items[i].Chunk.CoreText()
		if err != nil {
			return "", err
		}
		buf = append(buf, core...)
	}
	return string(buf), nil
}
