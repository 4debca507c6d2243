package services

import (
	"context"
	"hash/fnv"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode"

	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/adapters/driven/blob/local"
	"github.com/custodia-labs/traceq/internal/adapters/driven/storage/memory"
	vectormem "github.com/custodia-labs/traceq/internal/adapters/driven/vector/memory"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/extractors"
	"github.com/custodia-labs/traceq/internal/postprocessors/chunker"
)

// --- Mock implementations ---

// faultyIndex wraps an index and fails the next Upsert after writing the
// first partial chunks of the batch.
type faultyIndex struct {
	driven.VectorIndex
	upsertErr error
	partial   int
	onUpsert  func()
}

func (f *faultyIndex) Upsert(ctx context.Context, namespace string, chunks []domain.Chunk) (int, error) {
	if f.onUpsert != nil {
		f.onUpsert()
	}
	if err := f.upsertErr; err != nil {
		f.upsertErr = nil
		if n := min(f.partial, len(chunks)); n > 0 {
			if _, werr := f.VectorIndex.Upsert(ctx, namespace, chunks[:n]); werr != nil {
				return 0, werr
			}
		}
		return 0, err
	}
	return f.VectorIndex.Upsert(ctx, namespace, chunks)
}

// mockEmbedder implements driven.EmbeddingService with a bag-of-words
// projection, so texts sharing words score higher.
type mockEmbedder struct {
	mu       sync.Mutex
	dims     int
	model    string
	err      error
	failOn   string
	calls    int
	onBatch  func()
	embedded int
}

func newMockEmbedder(dims int) *mockEmbedder {
	return &mockEmbedder{dims: dims, model: "mock-embed"}
}

func (m *mockEmbedder) vector(text string) []float32 {
	v := make([]float32, m.dims)
	v[0] = 0.01
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[1+h.Sum32()%uint32(m.dims-1)]++
	}
	return v
}

func (m *mockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.vector(text), nil
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.onBatch != nil {
		m.onBatch()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if m.failOn != "" && strings.Contains(t, m.failOn) {
			return nil, domain.Retrievable("mock.embed", context.DeadlineExceeded)
		}
		out[i] = m.vector(t)
	}
	m.embedded += len(texts)
	return out, nil
}

func (m *mockEmbedder) Dimensions() int            { return m.dims }
func (m *mockEmbedder) ModelName() string          { return m.model }
func (m *mockEmbedder) Ping(context.Context) error { return nil }
func (m *mockEmbedder) Close() error               { return nil }

// mockLLM implements driven.CompletionService with a canned reply.
type mockLLM struct {
	mu      sync.Mutex
	reply   func(prompt string) (string, error)
	prompts []string
}

func newMockLLM(reply string) *mockLLM {
	return &mockLLM{reply: func(string) (string, error) { return reply, nil }}
}

func (m *mockLLM) Complete(_ context.Context, prompt string, _ driven.CompleteOptions) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	return m.reply(prompt)
}

func (m *mockLLM) ModelName() string          { return "mock-llm" }
func (m *mockLLM) Ping(context.Context) error { return nil }
func (m *mockLLM) Close() error               { return nil }

func (m *mockLLM) promptCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.prompts)
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

// --- Test environment ---

type testEnv struct {
	journeyStore *memory.JourneyStore
	versionStore *memory.VersionStore
	chunkStore   *memory.ChunkStore
	namespaces   *memory.NamespaceStore
	taskStore    *memory.TaskStore
	index        *vectormem.Index
	embedder     *mockEmbedder
	clock        *fakeClock

	journeys  *JourneyService
	versions  *VersionService
	assembler *ContextAssembler
	ingest    *IngestService
}

// newTestEnv wires every core service over in-memory adapters. Chunks are
// 800 tokens with 120 overlap.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	blobs, err := local.New(t.TempDir())
	require.NoError(t, err)

	env := &testEnv{
		journeyStore: memory.NewJourneyStore(),
		versionStore: memory.NewVersionStore(),
		chunkStore:   memory.NewChunkStore(),
		namespaces:   memory.NewNamespaceStore(),
		taskStore:    memory.NewTaskStore(),
		index:        vectormem.New(),
		embedder:     newMockEmbedder(64),
		clock:        newFakeClock(time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)),
	}
	env.journeys = NewJourneyService(env.journeyStore, env.versionStore, env.chunkStore,
		env.namespaces, env.index, domain.JourneyDeleteOrphan)
	env.journeys.SetClock(env.clock.Now)
	env.versions = NewVersionService(env.versionStore, env.chunkStore, env.index, env.journeys)
	env.versions.SetClock(env.clock.Now)
	env.assembler = NewContextAssembler(env.embedder, env.index, env.versionStore, env.chunkStore,
		domain.RetrievalSettings{TopK: 10, TokenBudget: 4000})
	env.ingest = NewIngestService(IngestDeps{
		Blobs:      blobs,
		Extractor:  extractors.Default(blobs),
		Chunker:    chunker.New(chunker.WithChunkSize(800), chunker.WithOverlap(120)),
		Versions:   env.versions,
		Chunks:     env.chunkStore,
		Namespaces: env.namespaces,
		Index:      env.index,
		Embedder:   env.embedder,
		EmbedBatch: 2,
	})
	return env
}

// ingestText ingests text as a plain-text document and advances the clock
// one second so ids stay distinct.
func (e *testEnv) ingestText(t *testing.T, journey string, st domain.SourceType, text string) *domain.DocumentVersion {
	t.Helper()
	v, err := e.ingest.Ingest(context.Background(), driving.IngestRequest{
		Journey:    journey,
		SourceType: st,
		Filename:   "doc.txt",
		Data:       []byte(text),
	})
	require.NoError(t, err)
	e.clock.Set(e.clock.Now().Add(time.Second))
	return v
}

// words returns n whitespace-separated tokens.
func words(prefix string, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(prefix)
		b.WriteString(strings.Repeat("x", i%7))
	}
	return b.String()
}
