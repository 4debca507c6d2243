package domain

import "fmt"

// ChangeClass is the classification of a requirement delta.
type ChangeClass string

// Change classifications.
const (
	ChangeFunctional ChangeClass = "functional"
	ChangeCosmetic   ChangeClass = "cosmetic"
	ChangeMixed      ChangeClass = "mixed"
)

// IsValid returns true if the classification is recognised.
func (c ChangeClass) IsValid() bool {
	return c == ChangeFunctional || c == ChangeCosmetic || c == ChangeMixed
}

// AnalysisState is a step of the change analysis state machine.
type AnalysisState string

// Analysis states in order.
const (
	AnalysisPending          AnalysisState = "PENDING"
	AnalysisContextRetrieved AnalysisState = "CONTEXT_RETRIEVED"
	AnalysisDiffed           AnalysisState = "DIFFED"
	AnalysisClassified       AnalysisState = "CLASSIFIED"
	AnalysisDone             AnalysisState = "DONE"
)

var analysisNext = map[AnalysisState]AnalysisState{
	AnalysisPending:          AnalysisContextRetrieved,
	AnalysisContextRetrieved: AnalysisDiffed,
	AnalysisDiffed:           AnalysisClassified,
	AnalysisClassified:       AnalysisDone,
}

// Advance moves the state machine to next, rejecting skipped or repeated steps.
func (s AnalysisState) Advance(next AnalysisState) (AnalysisState, error) {
	if analysisNext[s] != next {
		return s, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s, next)
	}
	return next, nil
}

// HunkKind says how a block of lines changed.
type HunkKind string

// Hunk kinds.
const (
	HunkAdded    HunkKind = "added"
	HunkRemoved  HunkKind = "removed"
	HunkModified HunkKind = "modified"
)

// Hunk is a contiguous changed region between two versions.
type Hunk struct {
	// Kind is added, removed or modified.
	Kind HunkKind `json:"kind"`

	// Before holds the removed lines.
	Before []string `json:"before,omitempty"`

	// After holds the added lines.
	After []string `json:"after,omitempty"`

	// ContextBefore and ContextAfter are unchanged neighbouring lines.
	ContextBefore []string `json:"context_before,omitempty"`
	ContextAfter  []string `json:"context_after,omitempty"`

	// WhitespaceOnly is true when the hunk differs only in whitespace.
	WhitespaceOnly bool `json:"whitespace_only"`
}

// ChangeAssessment is the result of comparing two versions.
type ChangeAssessment struct {
	Journey     string `json:"journey"`
	FromVersion string `json:"from_version"`
	ToVersion   string `json:"to_version"`

	// Classification is functional, cosmetic or mixed.
	Classification ChangeClass `json:"classification"`

	// Rationale explains the classification.
	Rationale string `json:"rationale"`

	// AffectsTests is true when existing test cases likely need changes.
	AffectsTests bool `json:"affects_tests"`

	// Recommendation is the suggested follow-up.
	Recommendation string `json:"recommendation"`

	// ContentHunks and WhitespaceHunks count the pre-filter outcome.
	ContentHunks    int `json:"content_hunks"`
	WhitespaceHunks int `json:"whitespace_hunks"`

	// UsedLLM reports whether the completion provider was consulted.
	UsedLLM bool `json:"used_llm"`

	// State is the final state machine state.
	State AnalysisState `json:"state"`
}
