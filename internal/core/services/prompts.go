package services

import (
	"fmt"
	"strings"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/logger"
)

// builtinPrompts are used when no prompt store is injected or a template
// cannot be loaded. Placeholders match the driven.Prompt* contracts.
var builtinPrompts = map[string]string{
	driven.PromptSummarise: "Summarise the following requirement document in 2-3 sentences.\n\n%s",
	driven.PromptClassifyChange: "Classify the change to journey %q as functional, cosmetic or mixed.\n\n%s\n\n" +
		`Respond with JSON: {"classification": "...", "rationale": "...", "affects_tests": true, "recommendation": "..."}`,
	driven.PromptGenerateTests: "Generate %d QA test cases for journey %q from these requirements.\n\n%s\n\n" +
		"Respond with a JSON array of objects with test_id, title, description, preconditions, " +
		"test_steps, expected_results, test_data, priority and test_type.",
	driven.PromptFactCheck: "Claim: %s\n\nEvidence:\n%s\n\n" +
		`Respond with JSON: {"verdict": "supported|contradicted|insufficient_evidence", "answer": "...", "confidence": 0.5}`,
}

// promptSet resolves prompt templates, preferring the injected store.
type promptSet struct {
	store driven.PromptStore
}

// SetPromptStore injects a prompt store.
func (p *promptSet) SetPromptStore(store driven.PromptStore) {
	p.store = store
}

func (p *promptSet) render(name string, args ...any) string {
	tmpl := builtinPrompts[name]
	if p.store != nil {
		loaded, err := p.store.Load(name)
		if err != nil {
			logger.Warn("using built-in prompt", "prompt", name, "error", err)
		} else {
			tmpl = loaded
		}
	}
	return fmt.Sprintf(tmpl, args...)
}

// formatContext renders bundle items for a prompt, one labelled block per chunk.
func formatContext(chunks []domain.Chunk) string {
	var b strings.Builder
	for i := range chunks {
		c := &chunks[i]
		fmt.Fprintf(&b, "[%d] (%s, %s)\n%s\n\n", i+1, c.VersionID, c.SourceType, strings.TrimSpace(c.Text))
	}
	return strings.TrimSpace(b.String())
}

// bundleChunks returns the chunks of a bundle in rank order.
func bundleChunks(b *domain.ContextBundle) []domain.Chunk {
	out := make([]domain.Chunk, 0, len(b.Items))
	for i := range b.Items {
		out = append(out, b.Items[i].Chunk)
	}
	return out
}

// extractJSON returns the first JSON value opening with open in a model
// response, ignoring markdown fences and surrounding prose.
func extractJSON(text string, open, closing byte) (string, bool) {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	}
	start := strings.IndexByte(text, open)
	end := strings.LastIndexByte(text, closing)
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}

// truncateRunes shortens s to at most n runes.
func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return strings.TrimSpace(string(r[:n])) + "..."
}
