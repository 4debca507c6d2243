package mcp

import (
	"context"
	"time"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	bundle *domain.ContextBundle
	opts   driving.SearchOptions
	err    error
}

func (m *mockSearchService) Search(
	_ context.Context,
	journey, query string,
	opts driving.SearchOptions,
) (*domain.ContextBundle, error) {
	m.opts = opts
	if m.err != nil {
		return nil, m.err
	}
	if m.bundle != nil {
		return m.bundle, nil
	}
	return &domain.ContextBundle{Journey: journey, Query: query}, nil
}

func (m *mockSearchService) Stats(_ context.Context, journey string) (domain.IndexStats, error) {
	return domain.IndexStats{Namespace: journey}, m.err
}

// mockJourneyService is a mock implementation of driving.JourneyService.
type mockJourneyService struct {
	journeys []domain.Journey
	err      error
}

func (m *mockJourneyService) Create(_ context.Context, name, description string) (*domain.Journey, error) {
	return &domain.Journey{Name: name, Description: description}, m.err
}

func (m *mockJourneyService) Ensure(_ context.Context, name string) (*domain.Journey, error) {
	return &domain.Journey{Name: name}, m.err
}

func (m *mockJourneyService) Update(_ context.Context, name, description string) (*domain.Journey, error) {
	return &domain.Journey{Name: name, Description: description}, m.err
}

func (m *mockJourneyService) Get(_ context.Context, name string) (*domain.Journey, error) {
	return &domain.Journey{Name: name}, m.err
}

func (m *mockJourneyService) List(_ context.Context) ([]domain.Journey, error) {
	return m.journeys, m.err
}

func (m *mockJourneyService) Delete(_ context.Context, _ string) error {
	return m.err
}

func (m *mockJourneyService) EnsureDefaults(_ context.Context) error {
	return m.err
}

// mockVersionService is a mock implementation of driving.VersionService.
type mockVersionService struct {
	versions []domain.DocumentVersion
	err      error
}

func (m *mockVersionService) Record(_ context.Context, req driving.RecordRequest) (*domain.DocumentVersion, error) {
	return &domain.DocumentVersion{Journey: req.Journey}, m.err
}

func (m *mockVersionService) Timeline(_ context.Context, _ string) ([]domain.DocumentVersion, error) {
	return m.versions, m.err
}

func (m *mockVersionService) Get(_ context.Context, _, _ string) (*domain.DocumentVersion, error) {
	if len(m.versions) == 0 {
		return nil, domain.ErrNotFound
	}
	return &m.versions[0], m.err
}

func (m *mockVersionService) MarkIndexed(_ context.Context, _, _ string, _ int, _ string) error {
	return m.err
}

func (m *mockVersionService) Cleanup(_ context.Context, _ string, _ int) (int, error) {
	return 0, m.err
}

// mockAssembler is a mock implementation of driving.ContextAssembler.
type mockAssembler struct {
	full *domain.ContextBundle
	err  error
}

func (m *mockAssembler) Assemble(_ context.Context, req driving.AssembleRequest) (*domain.ContextBundle, error) {
	return &domain.ContextBundle{Journey: req.Journey, Query: req.Query}, m.err
}

func (m *mockAssembler) AssembleForVersions(
	_ context.Context, _, _, _ string,
) (*domain.ContextBundle, *domain.ContextBundle, error) {
	if m.err != nil {
		return nil, nil, m.err
	}
	return m.full, m.full, nil
}

// mockAnalyzer is a mock implementation of driving.ChangeAnalyzer.
type mockAnalyzer struct {
	assessment *domain.ChangeAssessment
	err        error
}

func (m *mockAnalyzer) Analyze(_ context.Context, _, _, _ string) (*domain.ChangeAssessment, error) {
	return m.assessment, m.err
}

// mockFactChecker is a mock implementation of driving.FactChecker.
type mockFactChecker struct {
	result *domain.FactCheckResult
	err    error
}

func (m *mockFactChecker) Check(_ context.Context, _, _ string) (*domain.FactCheckResult, error) {
	return m.result, m.err
}

// mockTestGenerator is a mock implementation of driving.TestGenerator.
type mockTestGenerator struct {
	cases    []domain.TestCase
	err      error
	lastOpts driving.GenerateOptions
}

func (m *mockTestGenerator) Generate(
	_ context.Context, _ string, opts driving.GenerateOptions,
) ([]domain.TestCase, error) {
	m.lastOpts = opts
	return m.cases, m.err
}

func (m *mockTestGenerator) GenerateAll(
	_ context.Context, _ string, _ int, progress driving.ProgressFunc,
) ([]domain.TestCase, error) {
	if progress != nil {
		progress(1, 1)
	}
	return m.cases, m.err
}

// mockTaskRunner runs submitted functions synchronously.
type mockTaskRunner struct {
	tasks     map[string]*domain.Task
	cancelled []string
	err       error
}

func newMockTaskRunner() *mockTaskRunner {
	return &mockTaskRunner{tasks: make(map[string]*domain.Task)}
}

func (m *mockTaskRunner) Submit(
	ctx context.Context, kind domain.TaskKind, journey string, fn driving.TaskFunc,
) (*domain.Task, error) {
	if m.err != nil {
		return nil, m.err
	}
	task := &domain.Task{
		ID:        "task-1",
		Kind:      kind,
		Journey:   journey,
		Status:    domain.TaskCompleted,
		CreatedAt: time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	if _, err := fn(ctx, func(done, total int) { task.Done, task.Total = done, total }); err != nil {
		task.Status = domain.TaskFailed
		task.Error = err.Error()
	}
	m.tasks[task.ID] = task
	return task, nil
}

func (m *mockTaskRunner) Get(_ context.Context, id string) (*domain.Task, error) {
	task, ok := m.tasks[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return task, nil
}

func (m *mockTaskRunner) List(_ context.Context) ([]domain.Task, error) {
	out := make([]domain.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, *t)
	}
	return out, nil
}

func (m *mockTaskRunner) Cancel(_ context.Context, id string) error {
	task, ok := m.tasks[id]
	if !ok {
		return domain.ErrNotFound
	}
	if task.Status.IsTerminal() {
		return domain.ErrTaskFinished
	}
	task.Status = domain.TaskCancelled
	m.cancelled = append(m.cancelled, id)
	return nil
}

func (m *mockTaskRunner) Wait(ctx context.Context, id string) (*domain.Task, error) {
	return m.Get(ctx, id)
}

// mockIngestService is a mock implementation of driving.IngestService.
type mockIngestService struct {
	chunks int
	err    error
}

func (m *mockIngestService) Ingest(_ context.Context, req driving.IngestRequest) (*domain.DocumentVersion, error) {
	return &domain.DocumentVersion{Journey: req.Journey}, m.err
}

func (m *mockIngestService) Reindex(
	_ context.Context, _, _ string, progress driving.ProgressFunc,
) (int, error) {
	if progress != nil {
		progress(m.chunks, m.chunks)
	}
	return m.chunks, m.err
}
