package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"unicode"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// Ensure FactCheckService implements the interface.
var _ driving.FactChecker = (*FactCheckService)(nil)

// stopwords are dropped from the keyword variant of a claim.
var stopwords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "was": true, "were": true,
	"that": true, "this": true, "with": true, "from": true, "have": true, "has": true,
	"not": true, "but": true, "its": true, "into": true, "than": true, "then": true,
	"does": true, "did": true, "can": true, "will": true, "shall": true, "should": true,
	"must": true, "any": true, "all": true, "our": true, "their": true, "there": true,
	"what": true, "when": true, "which": true, "who": true, "how": true, "why": true,
	"is": true, "be": true, "of": true, "to": true, "in": true, "on": true, "a": true,
}

// FactCheckService checks claims against a journey's indexed documents.
type FactCheckService struct {
	promptSet
	assembler *ContextAssembler
	llm       driven.CompletionService
	opts      driven.CompleteOptions
}

// NewFactCheckService creates a fact checker. llm may be nil; checks then
// return the evidence with an insufficient_evidence verdict.
func NewFactCheckService(
	assembler *ContextAssembler,
	llm driven.CompletionService,
	opts driven.CompleteOptions,
) *FactCheckService {
	return &FactCheckService{assembler: assembler, llm: llm, opts: opts}
}

// Check retrieves evidence for the claim and its keyword-only variant,
// merges the hits by chunk id and asks the model for a verdict.
func (s *FactCheckService) Check(ctx context.Context, journey, claim string) (*domain.FactCheckResult, error) {
	claim = strings.TrimSpace(claim)
	if claim == "" {
		return nil, fmt.Errorf("%w: claim is required", domain.ErrInvalidInput)
	}

	queries := []string{claim}
	if kw := keywordQuery(claim); kw != "" && kw != strings.ToLower(claim) {
		queries = append(queries, kw)
	}

	best := make(map[string]domain.ScoredChunk)
	for _, q := range queries {
		bundle, err := s.assembler.Assemble(ctx, driving.AssembleRequest{Journey: journey, Query: q})
		if err != nil {
			return nil, fmt.Errorf("retrieving evidence: %w", err)
		}
		for _, it := range bundle.Items {
			if prev, ok := best[it.Chunk.ID]; !ok || it.Score > prev.Score {
				best[it.Chunk.ID] = domain.ScoredChunk{Chunk: it.Chunk, Score: it.Score}
			}
		}
	}

	merged := make([]domain.ScoredChunk, 0, len(best))
	for _, h := range best {
		merged = append(merged, h)
	}
	budget := s.assembler.Defaults().TokenBudget
	items, used, truncated := pack(dedupe(merged), budget)
	evidence := &domain.ContextBundle{
		Journey:     journey,
		Query:       claim,
		Items:       items,
		Considered:  len(merged),
		TokenBudget: budget,
		TokensUsed:  used,
		Truncated:   truncated,
	}

	result := &domain.FactCheckResult{Claim: claim, Verdict: domain.VerdictInsufficient, Evidence: evidence}
	switch {
	case len(items) == 0:
		result.Answer = "No relevant evidence was found in the journey's documents."
		return result, nil
	case s.llm == nil:
		result.Answer = "No completion provider is configured; review the attached evidence."
		return result, nil
	}

	prompt := s.render(driven.PromptFactCheck, claim, formatContext(bundleChunks(evidence)))
	resp, err := s.llm.Complete(ctx, prompt, s.opts)
	if err != nil {
		return nil, fmt.Errorf("checking claim: %w", err)
	}
	parseVerdict(result, resp)
	return result, nil
}

type verdictJSON struct {
	Verdict    string  `json:"verdict"`
	Answer     string  `json:"answer"`
	Confidence float64 `json:"confidence"`
}

func parseVerdict(r *domain.FactCheckResult, resp string) {
	if raw, ok := extractJSON(resp, '{', '}'); ok {
		var out verdictJSON
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			switch v := domain.FactVerdict(strings.ToLower(strings.TrimSpace(out.Verdict))); v {
			case domain.VerdictSupported, domain.VerdictContradicted, domain.VerdictInsufficient:
				r.Verdict = v
			}
			r.Answer = strings.TrimSpace(out.Answer)
			r.Confidence = min(max(out.Confidence, 0), 1)
			return
		}
	}
	r.Answer = strings.TrimSpace(resp)
}

// keywordQuery reduces a claim to its content words.
func keywordQuery(claim string) string {
	words := strings.FieldsFunc(strings.ToLower(claim), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	kept := words[:0]
	for _, w := range words {
		if len(w) >= 2 && !stopwords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}
