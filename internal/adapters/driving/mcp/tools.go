package mcp

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

// defaultCasesPerBatch is used by background test generation.
const defaultCasesPerBatch = 3

// SearchInput is the input schema for the search tool.
type SearchInput struct {
	Journey     string   `json:"journey" jsonschema:"the journey whose documents are searched"`
	Query       string   `json:"query" jsonschema:"the search query to find requirement text"`
	TopK        int      `json:"top_k,omitempty" jsonschema:"number of candidates to retrieve (default from config)"`
	SourceTypes []string `json:"source_types,omitempty" jsonschema:"restrict results to these source types, e.g. fsd or addendum"`
}

// SearchOutput is the output schema for the search tool.
type SearchOutput struct {
	Results    []SearchResultOutput `json:"results"`
	Count      int                  `json:"count"`
	Considered int                  `json:"considered"`
	TokensUsed int                  `json:"tokens_used"`
	Truncated  bool                 `json:"truncated"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ChunkID    string  `json:"chunk_id"`
	VersionID  string  `json:"version_id"`
	SourceType string  `json:"source_type"`
	URI        string  `json:"uri"`
	Sequence   int     `json:"sequence"`
	Rank       int     `json:"rank"`
	Score      float64 `json:"score"`
	Content    string  `json:"content"`
}

// JourneyInput names a journey.
type JourneyInput struct {
	Journey string `json:"journey" jsonschema:"the journey name"`
}

// JourneyView is a journey with its timestamp rendered as text.
type JourneyView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
	CreatedAt   string `json:"created_at"`
}

// JourneysOutput lists journeys.
type JourneysOutput struct {
	Journeys []JourneyView `json:"journeys"`
}

// VersionView is a document version with timestamps rendered as text.
type VersionView struct {
	ID             string `json:"version_id"`
	SourceType     string `json:"source_type"`
	DocumentURI    string `json:"document_uri"`
	Format         string `json:"format,omitempty"`
	EffectiveDate  string `json:"effective_date,omitempty"`
	Notes          string `json:"notes,omitempty"`
	Summary        string `json:"summary,omitempty"`
	CreatedAt      string `json:"created_at"`
	Status         string `json:"status"`
	ChunkCount     int    `json:"chunk_count"`
	EmbeddingModel string `json:"embedding_model,omitempty"`
}

// TimelineOutput lists a journey's versions oldest first.
type TimelineOutput struct {
	Journey  string        `json:"journey"`
	Versions []VersionView `json:"versions"`
}

// AnalyzeInput selects the two versions to compare.
type AnalyzeInput struct {
	Journey     string `json:"journey" jsonschema:"the journey name"`
	FromVersion string `json:"from_version" jsonschema:"the older version id"`
	ToVersion   string `json:"to_version" jsonschema:"the newer version id"`
}

// FactCheckInput is the claim to check.
type FactCheckInput struct {
	Journey string `json:"journey" jsonschema:"the journey name"`
	Claim   string `json:"claim" jsonschema:"a statement or question about the requirements"`
}

// FactCheckOutput is the verdict with its evidence chunks.
type FactCheckOutput struct {
	Verdict    string               `json:"verdict"`
	Answer     string               `json:"answer"`
	Confidence float64              `json:"confidence"`
	Evidence   []SearchResultOutput `json:"evidence"`
}

// GenerateTestsInput configures test case generation.
type GenerateTestsInput struct {
	Journey    string `json:"journey" jsonschema:"the journey name"`
	MaxCases   int    `json:"max_cases,omitempty" jsonschema:"maximum number of cases (default 10)"`
	Focus      string `json:"focus,omitempty" jsonschema:"feature or requirement to focus on"`
	Background bool   `json:"background,omitempty" jsonschema:"cover every indexed chunk in a background task"`
}

// GenerateTestsOutput holds generated cases, or the task started for them.
type GenerateTestsOutput struct {
	Cases []domain.TestCase `json:"cases,omitempty"`
	Task  *TaskView         `json:"task,omitempty"`
}

// ReindexInput selects a version to rebuild.
type ReindexInput struct {
	Journey   string `json:"journey" jsonschema:"the journey name"`
	VersionID string `json:"version_id" jsonschema:"the version to re-chunk and re-embed"`
}

// TaskInput names a background task.
type TaskInput struct {
	TaskID string `json:"task_id" jsonschema:"the background task id"`
}

// TaskView is a background task. Result holds the JSON-encoded output of a
// completed task.
type TaskView struct {
	ID        string  `json:"id"`
	Kind      string  `json:"kind"`
	Journey   string  `json:"journey,omitempty"`
	Status    string  `json:"status"`
	Done      int     `json:"done"`
	Total     int     `json:"total"`
	Progress  float64 `json:"progress"`
	Result    string  `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
	CreatedAt string  `json:"created_at"`
	EndedAt   string  `json:"ended_at,omitempty"`
}

// TaskOutput is the current state of a task.
type TaskOutput struct {
	Task *TaskView `json:"task"`
}

// registerTools registers all tool handlers with the MCP server.
// Tools whose port is missing are not offered.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "search",
		Description: "Search a journey's indexed requirement documents",
	}, s.handleSearch)

	if s.ports.Journeys != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "list_journeys",
			Description: "List the business journeys documents are grouped under",
		}, s.handleListJourneys)
	}
	if s.ports.Versions != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "timeline",
			Description: "List every document version of a journey, oldest first",
		}, s.handleTimeline)
	}
	if s.ports.Analyzer != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "analyze_changes",
			Description: "Classify the change between two versions as functional, cosmetic or mixed",
		}, s.handleAnalyze)
	}
	if s.ports.FactCheck != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "fact_check",
			Description: "Check whether a claim is supported by a journey's documents",
		}, s.handleFactCheck)
	}
	if s.ports.TestGen != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "generate_tests",
			Description: "Generate QA test cases from a journey's requirements",
		}, s.handleGenerateTests)
	}
	if s.ports.Tasks != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "task_status",
			Description: "Report the status, progress and result of a background task",
		}, s.handleTaskStatus)
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "cancel_task",
			Description: "Cancel a running background task; its partial output is discarded",
		}, s.handleCancelTask)
		if s.ports.Ingest != nil {
			mcp.AddTool(s.server, &mcp.Tool{
				Name:        "reindex",
				Description: "Re-chunk and re-embed a version in the background",
			}, s.handleReindex)
		}
	}
}

// handleSearch handles the search tool invocation.
func (s *Server) handleSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := driving.SearchOptions{TopK: input.TopK}
	for _, st := range input.SourceTypes {
		opts.SourceTypes = append(opts.SourceTypes, domain.SourceType(st))
	}

	bundle, err := s.ports.Search.Search(ctx, input.Journey, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, toolError("search", err)
	}

	results := bundleResults(bundle)
	return nil, SearchOutput{
		Results:    results,
		Count:      len(results),
		Considered: bundle.Considered,
		TokensUsed: bundle.TokensUsed,
		Truncated:  bundle.Truncated,
	}, nil
}

func (s *Server) handleListJourneys(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ struct{},
) (*mcp.CallToolResult, JourneysOutput, error) {
	journeys, err := s.ports.Journeys.List(ctx)
	if err != nil {
		return nil, JourneysOutput{}, toolError("list_journeys", err)
	}
	out := JourneysOutput{Journeys: make([]JourneyView, len(journeys))}
	for i := range journeys {
		out.Journeys[i] = JourneyView{
			Name:        journeys[i].Name,
			Description: journeys[i].Description,
			IsDefault:   journeys[i].IsDefault,
			CreatedAt:   formatTime(journeys[i].CreatedAt),
		}
	}
	return nil, out, nil
}

func (s *Server) handleTimeline(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input JourneyInput,
) (*mcp.CallToolResult, TimelineOutput, error) {
	versions, err := s.ports.Versions.Timeline(ctx, input.Journey)
	if err != nil {
		return nil, TimelineOutput{}, toolError("timeline", err)
	}
	out := TimelineOutput{Journey: input.Journey, Versions: make([]VersionView, len(versions))}
	for i := range versions {
		out.Versions[i] = versionView(&versions[i])
	}
	return nil, out, nil
}

func (s *Server) handleAnalyze(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input AnalyzeInput,
) (*mcp.CallToolResult, domain.ChangeAssessment, error) {
	a, err := s.ports.Analyzer.Analyze(ctx, input.Journey, input.FromVersion, input.ToVersion)
	if err != nil {
		return nil, domain.ChangeAssessment{}, toolError("analyze_changes", err)
	}
	return nil, *a, nil
}

func (s *Server) handleFactCheck(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input FactCheckInput,
) (*mcp.CallToolResult, FactCheckOutput, error) {
	res, err := s.ports.FactCheck.Check(ctx, input.Journey, input.Claim)
	if err != nil {
		return nil, FactCheckOutput{}, toolError("fact_check", err)
	}
	return nil, FactCheckOutput{
		Verdict:    string(res.Verdict),
		Answer:     res.Answer,
		Confidence: res.Confidence,
		Evidence:   bundleResults(res.Evidence),
	}, nil
}

func (s *Server) handleGenerateTests(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input GenerateTestsInput,
) (*mcp.CallToolResult, GenerateTestsOutput, error) {
	if input.Background {
		if s.ports.Tasks == nil {
			return nil, GenerateTestsOutput{}, toolError("generate_tests",
				fmt.Errorf("%w: background tasks are not available", domain.ErrInvalidInput))
		}
		journey := input.Journey
		task, err := s.ports.Tasks.Submit(ctx, domain.TaskTestGeneration, journey,
			func(ctx context.Context, progress driving.ProgressFunc) (any, error) {
				return s.ports.TestGen.GenerateAll(ctx, journey, defaultCasesPerBatch, progress)
			})
		if err != nil {
			return nil, GenerateTestsOutput{}, toolError("generate_tests", err)
		}
		return nil, GenerateTestsOutput{Task: taskView(task)}, nil
	}

	cases, err := s.ports.TestGen.Generate(ctx, input.Journey, driving.GenerateOptions{
		MaxCases: input.MaxCases,
		Focus:    input.Focus,
	})
	if err != nil {
		return nil, GenerateTestsOutput{}, toolError("generate_tests", err)
	}
	return nil, GenerateTestsOutput{Cases: cases}, nil
}

func (s *Server) handleReindex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ReindexInput,
) (*mcp.CallToolResult, TaskOutput, error) {
	journey, versionID := input.Journey, input.VersionID
	task, err := s.ports.Tasks.Submit(ctx, domain.TaskReindex, journey,
		func(ctx context.Context, progress driving.ProgressFunc) (any, error) {
			n, err := s.ports.Ingest.Reindex(ctx, journey, versionID, progress)
			if err != nil {
				return nil, err
			}
			return map[string]any{"version_id": versionID, "chunks": n}, nil
		})
	if err != nil {
		return nil, TaskOutput{}, toolError("reindex", err)
	}
	return nil, TaskOutput{Task: taskView(task)}, nil
}

func (s *Server) handleTaskStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TaskInput,
) (*mcp.CallToolResult, TaskOutput, error) {
	task, err := s.ports.Tasks.Get(ctx, input.TaskID)
	if err != nil {
		return nil, TaskOutput{}, toolError("task_status", err)
	}
	return nil, TaskOutput{Task: taskView(task)}, nil
}

func (s *Server) handleCancelTask(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input TaskInput,
) (*mcp.CallToolResult, TaskOutput, error) {
	if err := s.ports.Tasks.Cancel(ctx, input.TaskID); err != nil {
		return nil, TaskOutput{}, toolError("cancel_task", err)
	}
	task, err := s.ports.Tasks.Get(ctx, input.TaskID)
	if err != nil {
		return nil, TaskOutput{}, toolError("cancel_task", err)
	}
	return nil, TaskOutput{Task: taskView(task)}, nil
}

func bundleResults(b *domain.ContextBundle) []SearchResultOutput {
	if b == nil {
		return []SearchResultOutput{}
	}
	out := make([]SearchResultOutput, len(b.Items))
	for i := range b.Items {
		c := &b.Items[i].Chunk
		out[i] = SearchResultOutput{
			ChunkID:    c.ID,
			VersionID:  c.VersionID,
			SourceType: string(c.SourceType),
			URI:        c.DocumentURI,
			Sequence:   c.Sequence,
			Rank:       b.Items[i].Rank,
			Score:      b.Items[i].Score,
			Content:    c.Text,
		}
	}
	return out
}

func versionView(v *domain.DocumentVersion) VersionView {
	view := VersionView{
		ID:             v.ID,
		SourceType:     string(v.SourceType),
		DocumentURI:    v.DocumentURI,
		Format:         v.Format,
		Notes:          v.Notes,
		Summary:        v.Summary,
		CreatedAt:      formatTime(v.CreatedAt),
		Status:         string(v.Status),
		ChunkCount:     v.ChunkCount,
		EmbeddingModel: v.EmbeddingModel,
	}
	if v.EffectiveDate != nil {
		view.EffectiveDate = v.EffectiveDate.Format(time.DateOnly)
	}
	return view
}

func taskView(t *domain.Task) *TaskView {
	return &TaskView{
		ID:        t.ID,
		Kind:      string(t.Kind),
		Journey:   t.Journey,
		Status:    string(t.Status),
		Done:      t.Done,
		Total:     t.Total,
		Progress:  t.Progress(),
		Result:    string(t.Result),
		Error:     t.Error,
		CreatedAt: formatTime(t.CreatedAt),
		EndedAt:   formatTime(t.EndedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
