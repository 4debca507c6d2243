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
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure ChangeAnalyzer implements the interface.
var _ driving.ChangeAnalyzer = (*ChangeAnalyzer)(nil)

// hunkContextLines is how many unchanged lines surround each hunk.
const hunkContextLines = 2

// maxHunkPromptChars caps the hunk text sent for classification.
const maxHunkPromptChars = 24000

// ChangeAnalyzer classifies the delta between two versions of a journey.
type ChangeAnalyzer struct {
	promptSet
	assembler driving.ContextAssembler
	llm       driven.CompletionService
	opts      driven.CompleteOptions
}

// NewChangeAnalyzer creates an analyzer. llm may be nil; content changes
// are then classified by comparing normalised text.
func NewChangeAnalyzer(
	assembler driving.ContextAssembler,
	llm driven.CompletionService,
	opts driven.CompleteOptions,
) *ChangeAnalyzer {
	return &ChangeAnalyzer{assembler: assembler, llm: llm, opts: opts}
}

// Analyze steps through PENDING, CONTEXT_RETRIEVED, DIFFED, CLASSIFIED and
// DONE. Hunks that differ only in whitespace never reach the model.
func (c *ChangeAnalyzer) Analyze(
	ctx context.Context, journey, fromVersion, toVersion string,
) (*domain.ChangeAssessment, error) {
	a := &domain.ChangeAssessment{
		Journey:     journey,
		FromVersion: fromVersion,
		ToVersion:   toVersion,
		State:       domain.AnalysisPending,
	}
	fail := func(err error) (*domain.ChangeAssessment, error) {
		return nil, fmt.Errorf("change analysis failed in state %s: %w", a.State, err)
	}
	advance := func(next domain.AnalysisState) error {
		st, err := a.State.Advance(next)
		a.State = st
		return err
	}

	fromBundle, toBundle, err := c.assembler.AssembleForVersions(ctx, journey, fromVersion, toVersion)
	if err != nil {
		return fail(err)
	}
	if err := advance(domain.AnalysisContextRetrieved); err != nil {
		return fail(err)
	}

	before, err := fromBundle.Reconstruct()
	if err != nil {
		return fail(domain.Fatal("analyzer.reconstruct", err))
	}
	after, err := toBundle.Reconstruct()
	if err != nil {
		return fail(domain.Fatal("analyzer.reconstruct", err))
	}

	hunks := diffLines(splitLines(before), splitLines(after), hunkContextLines)
	var content []domain.Hunk
	for i := range hunks {
		if hunks[i].WhitespaceOnly {
			a.WhitespaceHunks++
		} else {
			content = append(content, hunks[i])
		}
	}
	a.ContentHunks = len(content)
	if err := advance(domain.AnalysisDiffed); err != nil {
		return fail(err)
	}

	switch {
	case len(hunks) == 0:
		a.Classification = domain.ChangeCosmetic
		a.Rationale = "No changes between the two versions."
		a.Recommendation = "No action required."
	case len(content) == 0:
		a.Classification = domain.ChangeCosmetic
		a.Rationale = fmt.Sprintf("Only whitespace or blank-line changes (%d hunks).", a.WhitespaceHunks)
		a.Recommendation = "No test updates needed."
	case c.llm == nil:
		classifyByText(a, content)
	default:
		if err := c.classifyWithModel(ctx, a, content); err != nil {
			return fail(err)
		}
	}

	if err := advance(domain.AnalysisClassified); err != nil {
		return fail(err)
	}
	if err := advance(domain.AnalysisDone); err != nil {
		return fail(err)
	}

	logger.Info("change analysed", "journey", journey, "from", fromVersion, "to", toVersion,
		"classification", a.Classification, "content_hunks", a.ContentHunks,
		"whitespace_hunks", a.WhitespaceHunks, "used_llm", a.UsedLLM)
	return a, nil
}

func (c *ChangeAnalyzer) classifyWithModel(ctx context.Context, a *domain.ChangeAssessment, content []domain.Hunk) error {
	prompt := c.render(driven.PromptClassifyChange, a.Journey, formatHunks(content))
	resp, err := c.llm.Complete(ctx, prompt, c.opts)
	if err != nil {
		return fmt.Errorf("classifying change: %w", err)
	}
	a.UsedLLM = true
	parseAssessment(a, resp)
	return nil
}

// formatHunks renders content hunks as a unified-style listing.
func formatHunks(hunks []domain.Hunk) string {
	var b strings.Builder
	for i := range hunks {
		h := &hunks[i]
		fmt.Fprintf(&b, "--- hunk %d (%s)\n", i+1, h.Kind)
		for _, l := range h.ContextBefore {
			b.WriteString("  " + l + "\n")
		}
		for _, l := range h.Before {
			b.WriteString("- " + l + "\n")
		}
		for _, l := range h.After {
			b.WriteString("+ " + l + "\n")
		}
		for _, l := range h.ContextAfter {
			b.WriteString("  " + l + "\n")
		}
		if b.Len() > maxHunkPromptChars {
			fmt.Fprintf(&b, "... %d more hunks omitted\n", len(hunks)-i-1)
			break
		}
	}
	return b.String()
}

type assessmentJSON struct {
	Classification string `json:"classification"`
	Rationale      string `json:"rationale"`
	AffectsTests   *bool  `json:"affects_tests"`
	Recommendation string `json:"recommendation"`
}

// parseAssessment reads the model's JSON answer, falling back to keyword
// detection when the model answered in prose.
func parseAssessment(a *domain.ChangeAssessment, resp string) {
	if raw, ok := extractJSON(resp, '{', '}'); ok {
		var out assessmentJSON
		if err := json.Unmarshal([]byte(raw), &out); err == nil {
			class := domain.ChangeClass(strings.ToLower(strings.TrimSpace(out.Classification)))
			if class.IsValid() {
				a.Classification = class
				a.Rationale = strings.TrimSpace(out.Rationale)
				a.Recommendation = strings.TrimSpace(out.Recommendation)
				if out.AffectsTests != nil {
					a.AffectsTests = *out.AffectsTests
				} else {
					a.AffectsTests = class != domain.ChangeCosmetic
				}
				return
			}
		}
	}

	logger.Debug("classification response is not JSON, using keyword detection")
	a.Classification = classFromKeywords(resp)
	a.AffectsTests = a.Classification != domain.ChangeCosmetic
	a.Rationale = truncateRunes(strings.TrimSpace(resp), 500)
	a.Recommendation = recommendationFor(a.Classification)
}

// classFromKeywords picks a class from prose. Unclear answers count as
// functional so that test impact is not missed.
func classFromKeywords(resp string) domain.ChangeClass {
	lower := strings.ToLower(resp)
	switch {
	case strings.Contains(lower, "mixed"):
		return domain.ChangeMixed
	case strings.Contains(lower, "cosmetic") && !strings.Contains(lower, "not cosmetic"):
		return domain.ChangeCosmetic
	default:
		return domain.ChangeFunctional
	}
}

// classifyByText handles content hunks without a model: changes confined
// to case and punctuation are cosmetic, anything else functional.
func classifyByText(a *domain.ChangeAssessment, content []domain.Hunk) {
	for i := range content {
		if normaliseWords(content[i].Before) != normaliseWords(content[i].After) {
			a.Classification = domain.ChangeFunctional
			a.AffectsTests = true
			a.Rationale = fmt.Sprintf("%d hunks change wording; no completion provider is configured to judge them.",
				len(content))
			a.Recommendation = recommendationFor(a.Classification)
			return
		}
	}
	a.Classification = domain.ChangeCosmetic
	a.Rationale = "Changes are limited to case and punctuation."
	a.Recommendation = recommendationFor(a.Classification)
}

func normaliseWords(lines []string) string {
	var b strings.Builder
	for _, l := range lines {
		for _, r := range strings.ToLower(l) {
			if unicode.IsLetter(r) || unicode.IsDigit(r) {
				b.WriteRune(r)
			}
		}
	}
	return b.String()
}

func recommendationFor(class domain.ChangeClass) string {
	switch class {
	case domain.ChangeCosmetic:
		return "No test updates needed."
	case domain.ChangeMixed:
		return "Review the functional parts of the change and update the affected test cases."
	default:
		return "Regenerate or update the test cases covering the changed requirements."
	}
}
