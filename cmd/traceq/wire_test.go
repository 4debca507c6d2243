package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/adapters/driven/config/file"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driving"
)

func testSettings(t *testing.T) domain.Settings {
	t.Helper()
	s := domain.DefaultSettings()
	s.Storage.Backend = "memory"
	s.Blob.Root = t.TempDir()
	s.Cache.Backend = "memory"
	s.LLM.APIKey = ""
	s.ProviderKeys = nil
	return s
}

func TestBuild_IngestAndSearch(t *testing.T) {
	ctx := context.Background()
	cfg, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)

	rt, err := build(ctx, testSettings(t), cfg)
	require.NoError(t, err)
	defer rt.Close(ctx)

	svc := rt.services
	journeys, err := svc.Journeys.List(ctx)
	require.NoError(t, err)
	assert.Len(t, journeys, len(domain.DefaultJourneys()))

	v, err := svc.Ingest.Ingest(ctx, driving.IngestRequest{
		Journey:    "Refunds",
		SourceType: domain.SourceFSD,
		Filename:   "refunds.txt",
		Data:       []byte("Refunds settle within five business days.\n\nPartial refunds are allowed once."),
	})
	require.NoError(t, err)
	assert.True(t, v.IsIndexed())
	assert.Positive(t, v.ChunkCount)

	bundle, err := svc.Search.Search(ctx, "Refunds", "refund settlement", driving.SearchOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, bundle.Items)
	assert.Equal(t, v.ID, bundle.Items[0].Chunk.VersionID)

	task, err := svc.Tasks.Submit(ctx, domain.TaskCleanup, "Refunds",
		func(ctx context.Context, _ driving.ProgressFunc) (any, error) {
			return svc.Versions.Cleanup(ctx, "Refunds", 30)
		})
	require.NoError(t, err)
	done, err := svc.Tasks.Wait(ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskCompleted, done.Status)
}

func TestBuild_UnknownBackends(t *testing.T) {
	ctx := context.Background()
	cfg, err := file.NewConfigStore(t.TempDir())
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(*domain.Settings)
	}{
		{"storage", func(s *domain.Settings) { s.Storage.Backend = "postgres" }},
		{"cache", func(s *domain.Settings) { s.Cache.Backend = "memcached" }},
		{"vector", func(s *domain.Settings) { s.Vector.Backend = "pinecone" }},
		{"blob", func(s *domain.Settings) { s.Blob.Backend = "s3" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := testSettings(t)
			tt.mutate(&s)

			rt, err := build(ctx, s, cfg)

			assert.Nil(t, rt)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

func TestOpenCache_RedisUnavailable(t *testing.T) {
	rt := &runtime{}
	defer rt.Close(context.Background())

	c, err := openCache(context.Background(), rt, domain.CacheSettings{Backend: "redis"})

	require.NoError(t, err)
	assert.Nil(t, c, "an unusable redis cache is skipped")
}

func TestOpenStores_SQLite(t *testing.T) {
	rt := &runtime{}
	defer rt.Close(context.Background())

	st, err := openStores(rt, domain.StorageSettings{Backend: "sqlite", DataDir: t.TempDir()})

	require.NoError(t, err)
	assert.NotNil(t, st.versions)
	assert.Len(t, rt.closers, 1)
}
