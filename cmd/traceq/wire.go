package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/custodia-labs/traceq/internal/adapters/driven/ai"
	"github.com/custodia-labs/traceq/internal/adapters/driven/blob/gcs"
	"github.com/custodia-labs/traceq/internal/adapters/driven/blob/local"
	memcache "github.com/custodia-labs/traceq/internal/adapters/driven/cache/memory"
	rediscache "github.com/custodia-labs/traceq/internal/adapters/driven/cache/redis"
	"github.com/custodia-labs/traceq/internal/adapters/driven/config/file"
	"github.com/custodia-labs/traceq/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/traceq/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/traceq/internal/adapters/driven/vector/failover"
	"github.com/custodia-labs/traceq/internal/adapters/driven/vector/firestore"
	"github.com/custodia-labs/traceq/internal/adapters/driven/vector/qdrant"
	"github.com/custodia-labs/traceq/internal/adapters/driving/cli"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
	"github.com/custodia-labs/traceq/internal/core/services"
	"github.com/custodia-labs/traceq/internal/extractors"
	"github.com/custodia-labs/traceq/internal/logger"
	"github.com/custodia-labs/traceq/internal/postprocessors/chunker"
)

// stores groups the metadata stores of one backend.
type stores struct {
	journeys   driven.JourneyStore
	versions   driven.VersionStore
	chunks     driven.ChunkStore
	namespaces driven.NamespaceStore
	tasks      driven.TaskStore
}

// runtime holds everything built from the settings and the order in which
// it must be released.
type runtime struct {
	services cli.Services
	tasks    *services.TaskManager
	closers  []func() error
}

func (r *runtime) onClose(fn func() error) {
	r.closers = append(r.closers, fn)
}

// Close lets background tasks finish unless ctx is cancelled, then
// releases resources in reverse construction order.
func (r *runtime) Close(ctx context.Context) {
	if r.tasks != nil {
		r.tasks.Drain(ctx)
		r.tasks.Shutdown()
	}
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			logger.Warn("closing resource", "error", err)
		}
	}
	r.closers = nil
}

// build wires every adapter and service from settings. On error the
// resources created so far are released.
func build(ctx context.Context, settings domain.Settings, cfg *file.ConfigStore) (_ *runtime, err error) {
	rt := &runtime{}
	defer func() {
		if err != nil {
			rt.Close(ctx)
		}
	}()

	st, err := openStores(rt, settings.Storage)
	if err != nil {
		return nil, err
	}

	cache, err := openCache(ctx, rt, settings.Cache)
	if err != nil {
		return nil, err
	}

	providers, err := ai.Resolve(ctx, settings, ai.ResolveOptions{Cache: cache})
	if err != nil {
		return nil, fmt.Errorf("resolving ai providers: %w", err)
	}
	rt.onClose(func() error { providers.Close(); return nil })

	index, err := openIndex(ctx, settings.Vector, st.chunks)
	if err != nil {
		return nil, err
	}
	rt.onClose(index.Close)

	blobs, err := openBlobs(ctx, rt, settings.Blob, settings.Storage.DataDir)
	if err != nil {
		return nil, err
	}

	prompts, err := file.NewPromptStore(filepath.Join(filepath.Dir(cfg.Path()), "prompts"))
	if err != nil {
		return nil, fmt.Errorf("opening prompt store: %w", err)
	}

	complete := driven.CompleteOptions{
		MaxTokens:   settings.LLM.MaxTokens,
		Temperature: settings.LLM.Temperature,
	}

	journeys := services.NewJourneyService(st.journeys, st.versions, st.chunks, st.namespaces, index,
		settings.DeletePolicy)
	if err := journeys.EnsureDefaults(ctx); err != nil {
		return nil, fmt.Errorf("creating default journeys: %w", err)
	}
	versions := services.NewVersionService(st.versions, st.chunks, index, journeys)

	ingest := services.NewIngestService(services.IngestDeps{
		Blobs:     blobs,
		Extractor: extractors.Default(blobs),
		Chunker: chunker.New(
			chunker.WithChunkSize(settings.Chunking.Size),
			chunker.WithOverlap(settings.Chunking.Overlap),
		),
		Versions:       versions,
		Chunks:         st.chunks,
		Namespaces:     st.namespaces,
		Index:          index,
		Embedder:       providers.Embedding,
		Completion:     providers.Completion,
		SummaryOptions: complete,
	})
	ingest.SetPromptStore(prompts)

	assembler := services.NewContextAssembler(providers.Embedding, index, st.versions, st.chunks, settings.Retrieval)

	analyzer := services.NewChangeAnalyzer(assembler, providers.Completion, complete)
	analyzer.SetPromptStore(prompts)

	factCheck := services.NewFactCheckService(assembler, providers.Completion, complete)
	factCheck.SetPromptStore(prompts)

	testGen := services.NewTestGenService(assembler, st.versions, st.chunks, providers.Completion, complete)
	testGen.SetPromptStore(prompts)

	rt.tasks = services.NewTaskManager(st.tasks)
	scheduler := services.NewScheduler(versions, st.versions, rt.tasks, settings.Retention)
	rt.onClose(func() error { scheduler.Stop(); return nil })

	rt.services = cli.Services{
		Journeys:  journeys,
		Versions:  versions,
		Ingest:    ingest,
		Assembler: assembler,
		Search:    services.NewSearchService(assembler, index),
		Analyzer:  analyzer,
		FactCheck: factCheck,
		TestGen:   testGen,
		Tasks:     rt.tasks,
		Scheduler: scheduler,
	}

	logger.Debug("runtime ready",
		"storage", settings.Storage.Backend,
		"vector", settings.Vector.Backend,
		"blob", settings.Blob.Backend,
		"cache", settings.Cache.Backend,
		"variant", providers.Variant,
		"completion", providers.HasCompletion(),
	)
	return rt, nil
}

func openStores(rt *runtime, cfg domain.StorageSettings) (*stores, error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("using in-memory metadata storage; nothing is persisted")
		return &stores{
			journeys:   memory.NewJourneyStore(),
			versions:   memory.NewVersionStore(),
			chunks:     memory.NewChunkStore(),
			namespaces: memory.NewNamespaceStore(),
			tasks:      memory.NewTaskStore(),
		}, nil
	case "sqlite", "":
		db, err := sqlite.NewStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("opening sqlite store: %w", err)
		}
		rt.onClose(db.Close)
		return &stores{
			journeys:   db.JourneyStore(),
			versions:   db.VersionStore(),
			chunks:     db.ChunkStore(),
			namespaces: db.NamespaceStore(),
			tasks:      db.TaskStore(),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown storage backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}

// openCache returns nil when caching is disabled. A redis cache that cannot
// be reached is skipped with a warning.
func openCache(ctx context.Context, rt *runtime, cfg domain.CacheSettings) (driven.EmbeddingCache, error) {
	switch cfg.Backend {
	case "none", "":
		return nil, nil
	case "memory":
		c := memcache.New(memcache.Config{TTL: cfg.TTL})
		rt.onClose(c.Close)
		return c, nil
	case "redis":
		c, err := rediscache.New(ctx, rediscache.Config{Addr: cfg.RedisAddr, TTL: cfg.TTL})
		if err != nil {
			logger.Warn("embedding cache disabled", "backend", "redis", "error", err)
			return nil, nil
		}
		rt.onClose(c.Close)
		return c, nil
	default:
		return nil, fmt.Errorf("%w: unknown cache backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}

// openIndex returns the vector index. Remote backends are wrapped so that an
// unreachable service falls back to scanning the local chunk store.
func openIndex(ctx context.Context, cfg domain.VectorSettings, chunks driven.ChunkStore) (driven.VectorIndex, error) {
	switch cfg.Backend {
	case domain.VectorBackendMemory, "":
		return failover.NewLocal(chunks), nil
	case domain.VectorBackendQdrant:
		remote, err := qdrant.New(qdrant.Config{
			URL:             cfg.QdrantURL,
			Collection:      cfg.QdrantCollection,
			APIKey:          cfg.QdrantAPIKey,
			NamespacePrefix: cfg.NamespacePrefix,
		})
		if err != nil {
			return nil, fmt.Errorf("opening qdrant index: %w", err)
		}
		return failover.New(remote, chunks), nil
	case domain.VectorBackendFirestore:
		remote, err := firestore.New(ctx, firestore.Config{
			ProjectID:  cfg.FirestoreProject,
			Collection: cfg.FirestoreCollection,
		})
		if err != nil {
			return nil, fmt.Errorf("opening firestore index: %w", err)
		}
		return failover.New(remote, chunks), nil
	default:
		return nil, fmt.Errorf("%w: unknown vector backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}

func openBlobs(ctx context.Context, rt *runtime, cfg domain.BlobSettings, dataDir string) (driven.BlobStore, error) {
	switch cfg.Backend {
	case "local", "":
		root := cfg.Root
		if root == "" && dataDir != "" {
			root = filepath.Join(dataDir, "objects")
		}
		s, err := local.New(root)
		if err != nil {
			return nil, fmt.Errorf("opening blob store: %w", err)
		}
		return s, nil
	case "gcs":
		s, err := gcs.New(ctx, gcs.Config{Bucket: cfg.Bucket, CredentialsFile: cfg.CredentialsFile})
		if err != nil {
			return nil, fmt.Errorf("opening gcs blob store: %w", err)
		}
		rt.onClose(s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown blob backend %q", domain.ErrInvalidInput, cfg.Backend)
	}
}
