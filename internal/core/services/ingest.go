package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
	"github.com/custodia-labs/traceq/internal/logger"
)

// Ensure IngestService implements the interface.
var _ driving.IngestService = (*IngestService)(nil)

const (
	// summaryInputChars is how much leading text the summariser sees.
	summaryInputChars = 2000

	defaultEmbedBatch       = 32
	defaultEmbedConcurrency = 4
)

// IngestDeps groups the collaborators of the ingest pipeline.
// Completion is optional; everything else is required.
type IngestDeps struct {
	Blobs      driven.BlobStore
	Extractor  driven.TextExtractor
	Chunker    driven.TextChunker
	Versions   *VersionService
	Chunks     driven.ChunkStore
	Namespaces driven.NamespaceStore
	Index      driven.VectorIndex
	Embedder   driven.EmbeddingService
	Completion driven.CompletionService

	// SummaryOptions configures the summary completion call.
	SummaryOptions driven.CompleteOptions

	// EmbedBatch and EmbedConcurrency tune embedding; zero uses defaults.
	EmbedBatch       int
	EmbedConcurrency int
}

// IngestService runs upload to indexed version.
type IngestService struct {
	promptSet
	deps IngestDeps
}

// NewIngestService creates an ingest service.
func NewIngestService(deps IngestDeps) *IngestService {
	if deps.EmbedBatch <= 0 {
		deps.EmbedBatch = defaultEmbedBatch
	}
	if deps.EmbedConcurrency <= 0 {
		deps.EmbedConcurrency = defaultEmbedConcurrency
	}
	return &IngestService{deps: deps}
}

// Ingest stores the document, extracts and summarises it, records a pending
// version and indexes it. If indexing fails the version stays pending and
// any partially written vectors and chunks are removed.
func (s *IngestService) Ingest(ctx context.Context, req driving.IngestRequest) (*domain.DocumentVersion, error) {
	logger.Section("Ingest")

	if strings.TrimSpace(req.Journey) == "" {
		return nil, fmt.Errorf("%w: journey is required", domain.ErrInvalidInput)
	}
	if !req.SourceType.IsValid() {
		return nil, fmt.Errorf("%w: unknown source type %q", domain.ErrInvalidInput, req.SourceType)
	}
	if s.deps.Embedder == nil {
		return nil, domain.ErrEmbeddingUnavailable
	}

	uri := req.DocumentURI
	switch {
	case len(req.Data) > 0:
		var err error
		uri, err = s.deps.Blobs.Put(ctx, req.Data, req.Filename)
		if err != nil {
			return nil, fmt.Errorf("storing document: %w", err)
		}
	case uri == "":
		return nil, fmt.Errorf("%w: document data or URI is required", domain.ErrInvalidInput)
	}

	format := domain.NormaliseFormat(req.Format, uri)
	text, err := s.deps.Extractor.Extract(ctx, uri, req.Format)
	if err != nil {
		return nil, fmt.Errorf("extracting %s: %w", uri, err)
	}
	logger.Debug("document extracted", "uri", uri, "format", format, "bytes", len(text))

	v, err := s.deps.Versions.Record(ctx, driving.RecordRequest{
		Journey:       req.Journey,
		SourceType:    req.SourceType,
		DocumentURI:   uri,
		Format:        format,
		EffectiveDate: req.EffectiveDate,
		Notes:         req.Notes,
		Summary:       s.summarise(ctx, text),
	})
	if err != nil {
		return nil, err
	}

	n, err := s.index(ctx, v, text, nil)
	if err != nil {
		return nil, fmt.Errorf("indexing version %s: %w", v.ID, err)
	}

	v.Status = domain.VersionIndexed
	v.ChunkCount = n
	v.EmbeddingModel = s.deps.Embedder.ModelName()
	logger.Info("document ingested", "journey", v.Journey, "version", v.ID, "chunks", n)
	return v, nil
}

// Reindex re-extracts, re-chunks and re-embeds an existing version. The
// stored chunk set is replaced only after every chunk has been embedded, and
// a failed write restores the previous set, so a cancelled or failed reindex
// leaves the version as it was.
func (s *IngestService) Reindex(
	ctx context.Context, journey, versionID string, progress driving.ProgressFunc,
) (int, error) {
	if s.deps.Embedder == nil {
		return 0, domain.ErrEmbeddingUnavailable
	}
	v, err := s.deps.Versions.Get(ctx, journey, versionID)
	if err != nil {
		return 0, err
	}
	text, err := s.deps.Extractor.Extract(ctx, v.DocumentURI, v.Format)
	if err != nil {
		return 0, fmt.Errorf("extracting %s: %w", v.DocumentURI, err)
	}
	return s.index(ctx, v, text, progress)
}

// index chunks and embeds text and then writes vectors, chunks and the
// indexed flag, in that order.
func (s *IngestService) index(
	ctx context.Context, v *domain.DocumentVersion, text string, progress driving.ProgressFunc,
) (int, error) {
	chunks, err := s.deps.Chunker.Split(text)
	if err != nil {
		return 0, err
	}
	for i := range chunks {
		chunks[i].ID = domain.ChunkID(v.Journey, v.ID, chunks[i].Sequence)
		chunks[i].VersionID = v.ID
		chunks[i].Journey = v.Journey
		chunks[i].SourceType = v.SourceType
		chunks[i].DocumentURI = v.DocumentURI
	}

	if err := s.checkNamespace(ctx, v.Journey); err != nil {
		return 0, err
	}
	if err := s.embed(ctx, chunks, progress); err != nil {
		return 0, err
	}
	// Cancellation after the last unit still discards the output.
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	// Past this point the output is committed or rolled back whole, so a
	// cancelled request cannot interrupt the writes halfway.
	commitCtx := context.WithoutCancel(ctx)
	var prev []domain.Chunk
	if v.IsIndexed() {
		var err error
		if prev, err = s.deps.Chunks.GetChunks(commitCtx, v.Journey, v.ID); err != nil {
			return 0, fmt.Errorf("loading current chunks: %w", err)
		}
	}
	if err := s.write(commitCtx, v, chunks); err != nil {
		s.rollback(commitCtx, v, prev)
		return 0, err
	}
	return len(chunks), nil
}

// write upserts the new chunks over the old ones (ids are per sequence),
// prunes any old tail, then replaces the stored chunk set and marks the
// version indexed.
func (s *IngestService) write(ctx context.Context, v *domain.DocumentVersion, chunks []domain.Chunk) error {
	if len(chunks) > 0 {
		if _, err := s.deps.Index.Upsert(ctx, v.Journey, chunks); err != nil {
			return fmt.Errorf("upserting vectors: %w", err)
		}
	}
	if _, err := s.deps.Index.Prune(ctx, v.Journey, v.ID, len(chunks)); err != nil {
		return fmt.Errorf("pruning stale vectors: %w", err)
	}
	if err := s.deps.Chunks.SaveChunks(ctx, v.Journey, v.ID, chunks); err != nil {
		return fmt.Errorf("saving chunks: %w", err)
	}
	if err := s.deps.Versions.MarkIndexed(ctx, v.Journey, v.ID, len(chunks), s.deps.Embedder.ModelName()); err != nil {
		return fmt.Errorf("marking indexed: %w", err)
	}
	return nil
}

// rollback restores the chunk set a failed write started from. A version
// that was never indexed has its partial output removed; an indexed one
// gets its previous vectors and chunks back.
func (s *IngestService) rollback(ctx context.Context, v *domain.DocumentVersion, prev []domain.Chunk) {
	if len(prev) == 0 {
		if _, err := s.deps.Index.Delete(ctx, v.Journey, v.ID); err != nil {
			logger.Warn("removing partial vectors failed", "version", v.ID, "error", err)
		}
		if _, err := s.deps.Chunks.DeleteChunks(ctx, v.Journey, v.ID); err != nil {
			logger.Warn("removing partial chunks failed", "version", v.ID, "error", err)
		}
		return
	}

	embedded := make([]domain.Chunk, 0, len(prev))
	for i := range prev {
		if len(prev[i].Embedding) > 0 {
			embedded = append(embedded, prev[i])
		}
	}
	if len(embedded) > 0 {
		if _, err := s.deps.Index.Upsert(ctx, v.Journey, embedded); err != nil {
			logger.Warn("restoring previous vectors failed", "version", v.ID, "error", err)
		}
	}
	if _, err := s.deps.Index.Prune(ctx, v.Journey, v.ID, len(prev)); err != nil {
		logger.Warn("removing new vectors failed", "version", v.ID, "error", err)
	}
	if err := s.deps.Chunks.SaveChunks(ctx, v.Journey, v.ID, prev); err != nil {
		logger.Warn("restoring previous chunks failed", "version", v.ID, "error", err)
	}
}

// checkNamespace binds the journey namespace to the embedder's dimension,
// or fails if it is already bound to another.
func (s *IngestService) checkNamespace(ctx context.Context, journey string) error {
	dims := s.deps.Embedder.Dimensions()
	ns, err := s.deps.Namespaces.GetNamespace(ctx, journey)
	switch {
	case err == nil:
		if ns.Dimensions != dims {
			return domain.Fatal("ingest.namespace", fmt.Errorf(
				"%w: journey %q is indexed with %d dimensions (%s), embedder %s produces %d",
				domain.ErrDimensionMismatch, journey, ns.Dimensions, ns.Model, s.deps.Embedder.ModelName(), dims))
		}
		return nil
	case errors.Is(err, domain.ErrNotFound):
		err = s.deps.Namespaces.SaveNamespace(ctx, &domain.Namespace{
			Journey:    journey,
			Dimensions: dims,
			Model:      s.deps.Embedder.ModelName(),
		})
		if errors.Is(err, domain.ErrDimensionMismatch) {
			return domain.Fatal("ingest.namespace", err)
		}
		return err
	default:
		return fmt.Errorf("loading namespace: %w", err)
	}
}

// embed fills chunk embeddings in concurrent batches. Each batch is one
// cancellation unit.
func (s *IngestService) embed(ctx context.Context, chunks []domain.Chunk, progress driving.ProgressFunc) error {
	size := s.deps.EmbedBatch
	total := (len(chunks) + size - 1) / size
	dims := s.deps.Embedder.Dimensions()
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.deps.EmbedConcurrency)
	for start := 0; start < len(chunks); start += size {
		batch := chunks[start:min(start+size, len(chunks))]
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			texts := make([]string, len(batch))
			for i := range batch {
				texts[i] = batch[i].Text
			}
			vectors, err := s.deps.Embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embedding chunks: %w", err)
			}
			if len(vectors) != len(batch) {
				return domain.Fatal("ingest.embed", fmt.Errorf("%w: %d vectors for %d chunks",
					domain.ErrInvalidInput, len(vectors), len(batch)))
			}
			for i := range batch {
				if len(vectors[i]) != dims {
					return domain.Fatal("ingest.embed", fmt.Errorf("%w: chunk %s has %d dimensions, want %d",
						domain.ErrDimensionMismatch, batch[i].ID, len(vectors[i]), dims))
				}
				batch[i].Embedding = vectors[i]
			}
			if progress != nil {
				progress(int(done.Add(1)), total)
			}
			return nil
		})
	}
	return g.Wait()
}

// summarise asks the completion provider for a short summary and falls back
// to the leading sentences of the text.
func (s *IngestService) summarise(ctx context.Context, text string) string {
	head := truncateRunes(strings.TrimSpace(text), summaryInputChars)
	if head == "" {
		return ""
	}
	if s.deps.Completion != nil {
		out, err := s.deps.Completion.Complete(ctx, s.render(driven.PromptSummarise, head), s.deps.SummaryOptions)
		if err == nil && strings.TrimSpace(out) != "" {
			return strings.TrimSpace(out)
		}
		logger.Warn("summary generation failed, using leading sentences", "error", err)
	}
	return leadingSentences(head, 3)
}

func leadingSentences(text string, n int) string {
	flat := strings.Join(strings.Fields(text), " ")
	if ends := sentenceEnd.FindAllStringIndex(flat, n); len(ends) == n {
		flat = flat[:ends[n-1][0]+1]
	}
	return truncateRunes(flat, 400)
}
