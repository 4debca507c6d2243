package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func newVersion(journey, id string, created time.Time) *domain.DocumentVersion {
	return &domain.DocumentVersion{
		ID:         id,
		Journey:    journey,
		SourceType: domain.SourceFSD,
		CreatedAt:  created,
		Status:     domain.VersionPending,
	}
}

func TestVersionStore_AppendVersion_RejectsDuplicateID(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()

	require.NoError(t, store.AppendVersion(ctx, newVersion("X", "20250101T000000Z-fsd", time.Now())))
	err := store.AppendVersion(ctx, newVersion("x", "20250101T000000Z-fsd", time.Now()))
	assert.ErrorIs(t, err, domain.ErrVersionExists)

	// Same id in another journey is fine.
	require.NoError(t, store.AppendVersion(ctx, newVersion("Y", "20250101T000000Z-fsd", time.Now())))
}

func TestVersionStore_ListVersions_SortedAscending(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()

	for _, id := range []string{"20250301T000000Z-fsd", "20250101T000000Z-fsd", "20250201T000000Z-email"} {
		require.NoError(t, store.AppendVersion(ctx, newVersion("X", id, time.Now())))
	}

	versions, err := store.ListVersions(ctx, "X")
	require.NoError(t, err)
	require.Len(t, versions, 3)
	assert.Equal(t, "20250101T000000Z-fsd", versions[0].ID)
	assert.Equal(t, "20250201T000000Z-email", versions[1].ID)
	assert.Equal(t, "20250301T000000Z-fsd", versions[2].ID)
}

func TestVersionStore_GetVersion_NotFound(t *testing.T) {
	store := NewVersionStore()
	_, err := store.GetVersion(context.Background(), "X", "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestVersionStore_MarkIndexed(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()
	require.NoError(t, store.AppendVersion(ctx, newVersion("X", "v1", time.Now())))

	require.NoError(t, store.MarkIndexed(ctx, "X", "v1", 4, "hashing-768"))

	v, err := store.GetVersion(ctx, "X", "v1")
	require.NoError(t, err)
	assert.True(t, v.IsIndexed())
	assert.Equal(t, 4, v.ChunkCount)
	assert.Equal(t, "hashing-768", v.EmbeddingModel)

	assert.ErrorIs(t, store.MarkIndexed(ctx, "X", "v2", 1, ""), domain.ErrNotFound)
}

func TestVersionStore_ListVersionsCreatedBefore(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()
	now := time.Now()
	require.NoError(t, store.AppendVersion(ctx, newVersion("X", "old", now.AddDate(0, 0, -91))))
	require.NoError(t, store.AppendVersion(ctx, newVersion("X", "new", now.AddDate(0, 0, -10))))

	old, err := store.ListVersionsCreatedBefore(ctx, "X", now.AddDate(0, 0, -90))
	require.NoError(t, err)
	require.Len(t, old, 1)
	assert.Equal(t, "old", old[0].ID)
}

func TestVersionStore_DeleteVersion(t *testing.T) {
	store := NewVersionStore()
	ctx := context.Background()
	require.NoError(t, store.AppendVersion(ctx, newVersion("X", "v1", time.Now())))

	require.NoError(t, store.DeleteVersion(ctx, "X", "v1"))
	assert.ErrorIs(t, store.DeleteVersion(ctx, "X", "v1"), domain.ErrNotFound)

	journeys, err := store.ListVersionJourneys(ctx)
	require.NoError(t, err)
	assert.Empty(t, journeys)
}
