package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

var testTime = time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)

// setupTestServices installs mock services and returns a cleanup function
// restoring the previous ones.
func setupTestServices() func() {
	old := Services{
		Journeys:  journeyService,
		Versions:  versionService,
		Ingest:    ingestService,
		Assembler: assembler,
		Search:    searchService,
		Analyzer:  changeAnalyzer,
		FactCheck: factChecker,
		TestGen:   testGenerator,
		Tasks:     taskRunner,
		Settings:  settingsService,
		Scheduler: scheduler,
	}

	SetServices(Services{
		Journeys:  newMockJourneyService(),
		Versions:  newMockVersionService(),
		Ingest:    &mockIngestService{},
		Assembler: &mockAssembler{},
		Search:    &mockSearchService{},
		Analyzer:  &mockAnalyzer{},
		FactCheck: &mockFactChecker{},
		TestGen:   &mockTestGenerator{},
		Tasks:     newMockTaskRunner(),
		Settings:  &mockSettingsService{settings: domain.DefaultSettings()},
		Scheduler: &mockScheduler{},
	})

	return func() { SetServices(old) }
}

// executeCommand runs the root command with args and returns its output.
// Flags are reset afterwards so values do not leak between tests.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeWithInput(t, "", args...)
}

// executeWithInput is executeCommand with input on stdin.
func executeWithInput(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
		resetFlags(rootCmd)
	}()

	err := rootCmd.Execute()
	return buf.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	cmd.Flags().VisitAll(reset)
	cmd.PersistentFlags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

// mockJourneyService is an in-memory JourneyService.
type mockJourneyService struct {
	journeys []domain.Journey
	deleted  []string
	err      error
}

func newMockJourneyService() *mockJourneyService {
	return &mockJourneyService{journeys: []domain.Journey{
		{Name: "Payment Processing", Description: "Payments", IsDefault: true, CreatedAt: testTime},
		{Name: "Refunds", Description: "Refund handling", CreatedAt: testTime},
	}}
}

func (m *mockJourneyService) find(name string) (*domain.Journey, error) {
	for i := range m.journeys {
		if domain.JourneyKey(m.journeys[i].Name) == domain.JourneyKey(name) {
			return &m.journeys[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockJourneyService) Create(_ context.Context, name, description string) (*domain.Journey, error) {
	if m.err != nil {
		return nil, m.err
	}
	if _, err := m.find(name); err == nil {
		return nil, domain.ErrJourneyExists
	}
	m.journeys = append(m.journeys, domain.Journey{Name: name, Description: description, CreatedAt: testTime})
	return &m.journeys[len(m.journeys)-1], nil
}

func (m *mockJourneyService) Ensure(ctx context.Context, name string) (*domain.Journey, error) {
	if j, err := m.find(name); err == nil {
		return j, nil
	}
	return m.Create(ctx, name, "")
}

func (m *mockJourneyService) Update(_ context.Context, name, description string) (*domain.Journey, error) {
	j, err := m.find(name)
	if err != nil {
		return nil, err
	}
	j.Description = description
	return j, nil
}

func (m *mockJourneyService) Get(_ context.Context, name string) (*domain.Journey, error) {
	return m.find(name)
}

func (m *mockJourneyService) List(context.Context) ([]domain.Journey, error) {
	return m.journeys, m.err
}

func (m *mockJourneyService) Delete(_ context.Context, name string) error {
	j, err := m.find(name)
	if err != nil {
		return err
	}
	if j.IsDefault {
		return domain.ErrDefaultJourney
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *mockJourneyService) EnsureDefaults(context.Context) error { return nil }

// mockVersionService returns a fixed two-version timeline for every journey.
type mockVersionService struct {
	versions []domain.DocumentVersion
	cleaned  map[string]int
	days     int
	err      error
}

func newMockVersionService() *mockVersionService {
	effective := time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC)
	return &mockVersionService{
		versions: []domain.DocumentVersion{
			{
				ID: "20250314T093000Z-fsd", Journey: "Refunds", SourceType: domain.SourceFSD,
				DocumentURI: "file:///blobs/fsd.txt", CreatedAt: testTime, Status: domain.VersionIndexed,
				ChunkCount: 4, Summary: "Refunds settle within 5 days.",
			},
			{
				ID: "20250320T101500Z-addendum", Journey: "Refunds", SourceType: domain.SourceAddendum,
				DocumentURI: "file:///blobs/addendum.txt", CreatedAt: testTime.Add(6 * 24 * time.Hour),
				EffectiveDate: &effective, Status: domain.VersionIndexed, ChunkCount: 2,
			},
		},
		cleaned: make(map[string]int),
	}
}

func (m *mockVersionService) Record(_ context.Context, req driving.RecordRequest) (*domain.DocumentVersion, error) {
	return &domain.DocumentVersion{ID: domain.FormatVersionID(testTime, req.SourceType, 1), Journey: req.Journey}, nil
}

func (m *mockVersionService) Timeline(context.Context, string) ([]domain.DocumentVersion, error) {
	return m.versions, m.err
}

func (m *mockVersionService) Get(_ context.Context, _, versionID string) (*domain.DocumentVersion, error) {
	for i := range m.versions {
		if m.versions[i].ID == versionID {
			return &m.versions[i], nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockVersionService) MarkIndexed(context.Context, string, string, int, string) error {
	return nil
}

func (m *mockVersionService) Cleanup(_ context.Context, journey string, olderThanDays int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.days = olderThanDays
	m.cleaned[journey]++
	if journey == "Refunds" {
		return 1, nil
	}
	return 0, nil
}

// mockIngestService records ingest requests.
type mockIngestService struct {
	mu      sync.Mutex
	reqs    []driving.IngestRequest
	err     error
	chunks  int
	reindex []string
}

func (m *mockIngestService) Ingest(_ context.Context, req driving.IngestRequest) (*domain.DocumentVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reqs = append(m.reqs, req)
	if m.err != nil {
		return nil, m.err
	}
	return &domain.DocumentVersion{
		ID:             domain.FormatVersionID(testTime, req.SourceType, 1),
		Journey:        req.Journey,
		SourceType:     req.SourceType,
		Status:         domain.VersionIndexed,
		ChunkCount:     3,
		EmbeddingModel: "hashing-768",
		Summary:        "A short summary.",
	}, nil
}

func (m *mockIngestService) Reindex(
	_ context.Context, _, versionID string, progress driving.ProgressFunc,
) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reindex = append(m.reindex, versionID)
	if m.err != nil {
		return 0, m.err
	}
	if progress != nil {
		progress(m.chunks, m.chunks)
	}
	return m.chunks, nil
}

// mockAssembler returns the same bundle for every version.
type mockAssembler struct {
	full *domain.ContextBundle
	err  error
}

func (m *mockAssembler) Assemble(context.Context, driving.AssembleRequest) (*domain.ContextBundle, error) {
	return &domain.ContextBundle{}, m.err
}

func (m *mockAssembler) AssembleForVersions(
	context.Context, string, string, string,
) (*domain.ContextBundle, *domain.ContextBundle, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	if m.full == nil {
		return &domain.ContextBundle{}, &domain.ContextBundle{}, nil
	}
	return m.full, m.full, nil
}

// mockSearchService returns a one-item bundle.
type mockSearchService struct {
	bundle  *domain.ContextBundle
	err     error
	journey string
	query   string
	opts    driving.SearchOptions
}

func testBundle() *domain.ContextBundle {
	return &domain.ContextBundle{
		Journey: "Refunds",
		Items: []domain.ContextItem{{
			Chunk: domain.Chunk{
				ID:         "Refunds_20250314T093000Z-fsd_0",
				VersionID:  "20250314T093000Z-fsd",
				SourceType: domain.SourceFSD,
				Text:       "Refunds settle within   5 days\nof the request.",
			},
			Score: 0.93,
			Rank:  1,
		}},
		Considered: 4,
		TokensUsed: 8,
	}
}

func (m *mockSearchService) Search(
	_ context.Context, journey, query string, opts driving.SearchOptions,
) (*domain.ContextBundle, error) {
	m.journey, m.query, m.opts = journey, query, opts
	if m.err != nil {
		return nil, m.err
	}
	if m.bundle != nil {
		return m.bundle, nil
	}
	return testBundle(), nil
}

func (m *mockSearchService) Stats(_ context.Context, journey string) (domain.IndexStats, error) {
	return domain.IndexStats{Backend: "memory", Namespace: journey, Chunks: 6, Versions: 2, Dimensions: 768}, m.err
}

// mockAnalyzer returns a fixed assessment.
type mockAnalyzer struct {
	assessment *domain.ChangeAssessment
	err        error
	from, to   string
}

func (m *mockAnalyzer) Analyze(_ context.Context, journey, from, to string) (*domain.ChangeAssessment, error) {
	m.from, m.to = from, to
	if m.err != nil {
		return nil, m.err
	}
	if m.assessment != nil {
		return m.assessment, nil
	}
	return &domain.ChangeAssessment{
		Journey:        journey,
		FromVersion:    from,
		ToVersion:      to,
		Classification: domain.ChangeFunctional,
		Rationale:      "Settlement window changed from 5 to 3 days.",
		AffectsTests:   true,
		Recommendation: "Update the settlement test cases.",
		ContentHunks:   1,
		UsedLLM:        true,
		State:          domain.AnalysisDone,
	}, nil
}

// mockFactChecker returns a supported verdict.
type mockFactChecker struct {
	err error
}

func (m *mockFactChecker) Check(_ context.Context, _, claim string) (*domain.FactCheckResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return &domain.FactCheckResult{
		Claim:      claim,
		Verdict:    domain.VerdictSupported,
		Answer:     "Yes, refunds settle within 5 days.",
		Confidence: 0.9,
		Evidence:   testBundle(),
	}, nil
}

// mockTestGenerator returns one case per call.
type mockTestGenerator struct {
	lastOpts driving.GenerateOptions
	batches  int
	err      error
}

func (m *mockTestGenerator) Generate(_ context.Context, _ string, opts driving.GenerateOptions) ([]domain.TestCase, error) {
	m.lastOpts = opts
	if m.err != nil {
		return nil, m.err
	}
	return []domain.TestCase{{
		ID:              "TC-001",
		Title:           "Refund settles within 5 days",
		Preconditions:   []string{"A settled card payment exists"},
		Steps:           []string{"Request a refund", "Wait for settlement"},
		ExpectedResults: []string{"Refund settles within 5 days"},
		Priority:        "High",
		Type:            "Functional",
	}}, nil
}

func (m *mockTestGenerator) GenerateAll(
	ctx context.Context, journey string, casesPerBatch int, progress driving.ProgressFunc,
) ([]domain.TestCase, error) {
	m.batches = casesPerBatch
	progress(1, 1)
	return m.Generate(ctx, journey, driving.GenerateOptions{MaxCases: casesPerBatch})
}

// mockTaskRunner runs tasks synchronously.
type mockTaskRunner struct {
	mu    sync.Mutex
	tasks map[string]*domain.Task
	order []string
}

func newMockTaskRunner() *mockTaskRunner {
	return &mockTaskRunner{tasks: make(map[string]*domain.Task)}
}

func (m *mockTaskRunner) Submit(
	ctx context.Context, kind domain.TaskKind, journey string, fn driving.TaskFunc,
) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := "task-" + string(rune('1'+len(m.order)))
	task := &domain.Task{ID: id, Kind: kind, Journey: journey, Status: domain.TaskRunning, CreatedAt: testTime}
	out, err := fn(ctx, func(done, total int) { task.Done, task.Total = done, total })
	task.EndedAt = testTime.Add(time.Second)
	if err != nil {
		task.Status = domain.TaskFailed
		task.Error = err.Error()
	} else {
		task.Status = domain.TaskCompleted
		task.Result, _ = json.Marshal(out) //nolint:errcheck // test helper
	}
	m.tasks[id] = task
	m.order = append(m.order, id)

	cp := *task
	return &cp, nil
}

func (m *mockTaskRunner) Get(_ context.Context, id string) (*domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *mockTaskRunner) List(context.Context) ([]domain.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.Task, 0, len(m.order))
	for i := len(m.order) - 1; i >= 0; i-- {
		out = append(out, *m.tasks[m.order[i]])
	}
	return out, nil
}

func (m *mockTaskRunner) Cancel(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	if t.Status.IsTerminal() {
		return domain.ErrTaskFinished
	}
	t.Status = domain.TaskCancelled
	return nil
}

func (m *mockTaskRunner) Wait(ctx context.Context, id string) (*domain.Task, error) {
	return m.Get(ctx, id)
}

// mockSettingsService keeps settings in memory.
type mockSettingsService struct {
	settings    domain.Settings
	sets        map[string]string
	validateErr error
	liveErr     error
	keys        map[domain.AIProvider]string
}

func (m *mockSettingsService) Get() (domain.Settings, error) { return m.settings, nil }

func (m *mockSettingsService) Set(key, value string) error {
	if key == "bogus" {
		return domain.ErrInvalidInput
	}
	if m.sets == nil {
		m.sets = make(map[string]string)
	}
	m.sets[key] = value
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: p, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(p domain.AIProvider, model, apiKey string) error {
	m.settings.LLM.Provider, m.settings.LLM.Model, m.settings.LLM.APIKey = p, model, apiKey
	return nil
}

func (m *mockSettingsService) SetProviderKey(p domain.AIProvider, apiKey string) error {
	if !p.RequiresAPIKey() || apiKey == "" {
		return domain.ErrInvalidInput
	}
	if m.keys == nil {
		m.keys = make(map[domain.AIProvider]string)
	}
	m.keys[p] = apiKey
	return nil
}

func (m *mockSettingsService) Validate() error { return m.validateErr }

func (m *mockSettingsService) ValidateEmbeddingConfig(context.Context) error { return m.liveErr }

func (m *mockSettingsService) ValidateLLMConfig(context.Context) error { return m.liveErr }

func (m *mockSettingsService) Path() string { return "/home/qa/.traceq/config.toml" }

// mockScheduler records runs.
type mockScheduler struct {
	started bool
	stopped bool
	last    []domain.JobResult
}

func (m *mockScheduler) Start() error { m.started = true; return nil }

func (m *mockScheduler) Stop() { m.stopped = true }

func (m *mockScheduler) RunOnce(context.Context) []domain.JobResult {
	m.last = []domain.JobResult{{
		JobID: domain.JobVersionRetention, StartedAt: testTime, EndedAt: testTime,
		Success: true, ItemsProcessed: 2,
	}}
	return m.last
}

func (m *mockScheduler) LastResults() []domain.JobResult { return m.last }
