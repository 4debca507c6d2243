package services

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure TestGenService implements the interface.
var _ driving.TestGenerator = (*TestGenService)(nil)

const (
	// defaultMaxCases is used when GenerateOptions.MaxCases is unset.
	defaultMaxCases = 10

	// testGenBatchSize is the number of chunks per GenerateAll batch.
	testGenBatchSize = 50

	// defaultFocus retrieves generally testable requirement text.
	defaultFocus = "functional requirements, business rules, validations, limits and error handling"
)

var sentenceEnd = regexp.MustCompile(`[.!?]\s+`)

// TestGenService generates QA test cases from journey context.
type TestGenService struct {
	promptSet
	assembler driving.ContextAssembler
	versions  driven.VersionStore
	chunks    driven.ChunkStore
	llm       driven.CompletionService
	opts      driven.CompleteOptions
}

// NewTestGenService creates a test generator. llm may be nil; cases are
// then derived directly from the requirement text.
func NewTestGenService(
	assembler driving.ContextAssembler,
	versions driven.VersionStore,
	chunks driven.ChunkStore,
	llm driven.CompletionService,
	opts driven.CompleteOptions,
) *TestGenService {
	return &TestGenService{
		assembler: assembler,
		versions:  versions,
		chunks:    chunks,
		llm:       llm,
		opts:      opts,
	}
}

// Generate produces up to opts.MaxCases cases from the context most
// relevant to opts.Focus.
func (s *TestGenService) Generate(ctx context.Context, journey string, opts driving.GenerateOptions) ([]domain.TestCase, error) {
	maxCases := opts.MaxCases
	if maxCases <= 0 {
		maxCases = defaultMaxCases
	}
	focus := strings.TrimSpace(opts.Focus)
	if focus == "" {
		focus = defaultFocus
	}

	bundle, err := s.assembler.Assemble(ctx, driving.AssembleRequest{
		Journey:     journey,
		Query:       focus,
		TokenBudget: opts.TokenBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("assembling context: %w", err)
	}
	if len(bundle.Items) == 0 {
		return nil, fmt.Errorf("%w: journey %q has no indexed content", domain.ErrNotIndexed, journey)
	}

	cases, err := s.generateFrom(ctx, journey, bundleChunks(bundle), maxCases)
	if err != nil {
		return nil, err
	}
	numberCases(cases)
	return cases, nil
}

// GenerateAll walks every chunk of the journey's indexed versions in
// batches. Results are returned only when every batch has completed.
func (s *TestGenService) GenerateAll(
	ctx context.Context, journey string, casesPerBatch int, progress driving.ProgressFunc,
) ([]domain.TestCase, error) {
	if casesPerBatch <= 0 {
		casesPerBatch = defaultMaxCases
	}

	versions, err := s.versions.ListVersions(ctx, journey)
	if err != nil {
		return nil, fmt.Errorf("listing versions: %w", err)
	}
	var all []domain.Chunk
	for i := range versions {
		if !versions[i].IsIndexed() {
			continue
		}
		chunks, err := s.chunks.GetChunks(ctx, journey, versions[i].ID)
		if err != nil {
			return nil, fmt.Errorf("loading chunks of %s: %w", versions[i].ID, err)
		}
		all = append(all, chunks...)
	}
	if len(all) == 0 {
		return nil, fmt.Errorf("%w: journey %q has no indexed content", domain.ErrNotIndexed, journey)
	}

	total := (len(all) + testGenBatchSize - 1) / testGenBatchSize
	var cases []domain.TestCase
	for b := 0; b < total; b++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := b * testGenBatchSize
		end := min(start+testGenBatchSize, len(all))

		batch, err := s.generateFrom(ctx, journey, all[start:end], casesPerBatch)
		if err != nil {
			return nil, fmt.Errorf("batch %d/%d: %w", b+1, total, err)
		}
		cases = append(cases, batch...)
		if progress != nil {
			progress(b+1, total)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	numberCases(cases)
	logger.Info("test cases generated", "journey", journey, "batches", total, "cases", len(cases))
	return cases, nil
}

func (s *TestGenService) generateFrom(
	ctx context.Context, journey string, chunks []domain.Chunk, n int,
) ([]domain.TestCase, error) {
	sources := make([]string, 0, len(chunks))
	for i := range chunks {
		sources = append(sources, chunks[i].ID)
	}

	if s.llm == nil {
		return fallbackCases(chunks, n), nil
	}

	prompt := s.render(driven.PromptGenerateTests, n, journey, formatContext(chunks))
	resp, err := s.llm.Complete(ctx, prompt, s.opts)
	if err != nil {
		return nil, fmt.Errorf("generating test cases: %w", err)
	}

	cases, err := parseTestCases(resp)
	if err != nil || len(cases) == 0 {
		logger.Warn("unusable test case output, deriving cases from context", "journey", journey, "error", err)
		return fallbackCases(chunks, n), nil
	}
	if len(cases) > n {
		cases = cases[:n]
	}
	for i := range cases {
		if len(cases[i].SourceChunks) == 0 {
			cases[i].SourceChunks = sources
		}
	}
	return cases, nil
}

// stringList accepts either a JSON string or an array of strings.
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var many []string
	if err := json.Unmarshal(data, &many); err == nil {
		*l = many
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one = strings.TrimSpace(one); one != "" {
		*l = []string{one}
	}
	return nil
}

type testCaseJSON struct {
	ID              string     `json:"test_id"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	Preconditions   stringList `json:"preconditions"`
	Steps           stringList `json:"test_steps"`
	ExpectedResults stringList `json:"expected_results"`
	TestData        string     `json:"test_data"`
	Priority        string     `json:"priority"`
	Type            string     `json:"test_type"`
}

// parseTestCases decodes a JSON array of cases, tolerating fences and prose
// around it and string-valued list fields.
func parseTestCases(resp string) ([]domain.TestCase, error) {
	raw, ok := extractJSON(resp, '[', ']')
	if !ok {
		return nil, fmt.Errorf("%w: no JSON array in response", domain.ErrInvalidInput)
	}
	var parsed []testCaseJSON
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, fmt.Errorf("%w: decoding test cases: %w", domain.ErrInvalidInput, err)
	}

	cases := make([]domain.TestCase, 0, len(parsed))
	for i := range parsed {
		p := &parsed[i]
		if strings.TrimSpace(p.Title) == "" && len(p.Steps) == 0 {
			continue
		}
		cases = append(cases, domain.TestCase{
			ID:              p.ID,
			Title:           strings.TrimSpace(p.Title),
			Description:     strings.TrimSpace(p.Description),
			Preconditions:   p.Preconditions,
			Steps:           p.Steps,
			ExpectedResults: p.ExpectedResults,
			TestData:        p.TestData,
			Priority:        orDefault(p.Priority, "Medium"),
			Type:            orDefault(p.Type, "Functional"),
		})
	}
	return cases, nil
}

// fallbackCases derives one case per chunk from its most normative sentence.
func fallbackCases(chunks []domain.Chunk, n int) []domain.TestCase {
	cases := make([]domain.TestCase, 0, min(n, len(chunks)))
	for i := range chunks {
		if len(cases) >= n {
			break
		}
		req := requirementSentence(chunks[i].Text)
		if req == "" {
			continue
		}
		cases = append(cases, domain.TestCase{
			Title:         "Verify: " + truncateRunes(req, 80),
			Description:   req,
			Preconditions: []string{"The system is configured for the journey under test."},
			Steps: []string{
				"Prepare the data and state described by the requirement.",
				"Perform the operation the requirement governs.",
				"Observe the system response.",
			},
			ExpectedResults: []string{req},
			Priority:        "Medium",
			Type:            "Functional",
			SourceChunks:    []string{chunks[i].ID},
		})
	}
	return cases
}

// requirementSentence picks the first sentence using normative wording, or
// the first sentence when none does.
func requirementSentence(text string) string {
	var first string
	for _, s := range sentenceEnd.Split(strings.TrimSpace(text), -1) {
		s = strings.Join(strings.Fields(s), " ")
		if s == "" {
			continue
		}
		if first == "" {
			first = s
		}
		lower := strings.ToLower(s)
		for _, w := range []string{"must", "shall", "should", "required", "only", "within"} {
			if strings.Contains(lower, w) {
				return s
			}
		}
	}
	return first
}

// numberCases assigns sequential TC-nnn ids.
func numberCases(cases []domain.TestCase) {
	for i := range cases {
		cases[i].ID = fmt.Sprintf("TC-%03d", i+1)
	}
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s != "" {
		return s
	}
	return def
}
