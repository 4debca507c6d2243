package domain

import (
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFormatVersionID(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	assert.Equal(t, "20250314T092653Z-fsd", FormatVersionID(ts, SourceFSD, 1))
	assert.Equal(t, "20250314T092653Z-fsd-002", FormatVersionID(ts, SourceFSD, 2))
	assert.Equal(t, "20250314T092653Z-email-010", FormatVersionID(ts, SourceEmail, 10))
}

func TestFormatVersionID_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	ts := time.Date(2025, 3, 14, 11, 0, 0, 0, loc)

	assert.Equal(t, "20250314T090000Z-addendum", FormatVersionID(ts, SourceAddendum, 1))
}

func TestFormatVersionID_SortsChronologically(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	want := []string{
		FormatVersionID(base, SourceFSD, 1),
		FormatVersionID(base, SourceFSD, 2),
		FormatVersionID(base, SourceFSD, 3),
		FormatVersionID(base.Add(time.Second), SourceAddendum, 1),
		FormatVersionID(base.Add(time.Hour), SourceAnnexure, 1),
		FormatVersionID(base.AddDate(1, 0, 0), SourceEmail, 1),
	}

	got := append([]string(nil), want...)
	sort.Sort(sort.Reverse(sort.StringSlice(got)))
	sort.Strings(got)

	assert.Equal(t, want, got)
}

func TestFormatVersionID_SameSecondAcrossSourceTypes(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := FormatVersionID(ts, SourceFSD, 1)
	second := FormatVersionID(ts, SourceAddendum, 1)

	// Recorded fsd first, but the addendum id sorts first.
	assert.Less(t, second, first)
}

func TestSourceType_IsValid(t *testing.T) {
	for _, s := range AllSourceTypes() {
		assert.True(t, s.IsValid(), s)
	}
	assert.False(t, SourceType("memo").IsValid())
	assert.False(t, SourceType("").IsValid())
}

func TestJourneyKey(t *testing.T) {
	assert.Equal(t, "point of settlement", JourneyKey("  Point of Settlement "))
	assert.Equal(t, JourneyKey("PAYMENT processing"), JourneyKey("Payment Processing"))
}

func TestDefaultJourneys(t *testing.T) {
	journeys := DefaultJourneys()
	assert.Len(t, journeys, 3)
	for _, j := range journeys {
		assert.True(t, j.IsDefault)
		assert.NotEmpty(t, j.Description)
	}
}

func TestNormaliseFormat(t *testing.T) {
	tests := []struct {
		hint, uri, want string
	}{
		{"pdf", "", "pdf"},
		{".MD", "", "md"},
		{"", "file:///tmp/spec.docx", "docx"},
		{"", "gs://bucket/2025/01/01/abc__mail.eml", "eml"},
		{"markdown", "x.pdf", "md"},
		{"", "notes.xyz", ""},
		{"exe", "", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, NormaliseFormat(tt.hint, tt.uri), "%q %q", tt.hint, tt.uri)
	}
}

func TestAnalysisState_Advance(t *testing.T) {
	s := AnalysisPending
	var err error
	for _, next := range []AnalysisState{AnalysisContextRetrieved, AnalysisDiffed, AnalysisClassified, AnalysisDone} {
		s, err = s.Advance(next)
		assert.NoError(t, err)
	}
	assert.Equal(t, AnalysisDone, s)

	_, err = AnalysisPending.Advance(AnalysisDiffed)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = AnalysisDone.Advance(AnalysisPending)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTask_Progress(t *testing.T) {
	assert.Equal(t, 0.0, (&Task{}).Progress())
	assert.Equal(t, 1.0, (&Task{Status: TaskCompleted}).Progress())
	assert.Equal(t, 0.5, (&Task{Done: 5, Total: 10}).Progress())
	assert.Equal(t, 1.0, (&Task{Done: 12, Total: 10}).Progress())
	assert.True(t, TaskCancelled.IsTerminal())
	assert.False(t, TaskRunning.IsTerminal())
}

func TestAIProvider_Profiles(t *testing.T) {
	claude, ok := AIProviderClaude.Profile()
	assert.True(t, ok)
	assert.False(t, claude.SupportsEmbeddings)
	assert.True(t, claude.SupportsCompletion)

	offline, ok := AIProviderOffline.Profile()
	assert.True(t, ok)
	assert.True(t, offline.SupportsEmbeddings)
	assert.False(t, offline.SupportsCompletion)

	assert.False(t, AIProvider("bard").IsValid())
	assert.True(t, AIProviderOllama.IsLocal())
	assert.False(t, AIProviderOllama.RequiresAPIKey())
}

func TestSettings_IsConfigured(t *testing.T) {
	assert.True(t, EmbeddingSettings{Provider: AIProviderOffline}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderClaude, APIKey: "k"}.IsConfigured())
	assert.False(t, EmbeddingSettings{Provider: AIProviderOpenAI}.IsConfigured())
	assert.True(t, EmbeddingSettings{Provider: AIProviderOpenAI, APIKey: "k"}.IsConfigured())

	assert.True(t, LLMSettings{Provider: AIProviderOllama}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderClaude}.IsConfigured())
	assert.False(t, LLMSettings{Provider: AIProviderOffline}.IsConfigured())
}
