package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func TestJourneyStore_CaseInsensitive(t *testing.T) {
	store := NewJourneyStore()
	ctx := context.Background()

	require.NoError(t, store.SaveJourney(ctx, &domain.Journey{Name: "Payment Processing", IsDefault: true}))

	j, err := store.GetJourney(ctx, "payment PROCESSING")
	require.NoError(t, err)
	assert.Equal(t, "Payment Processing", j.Name)

	require.NoError(t, store.DeleteJourney(ctx, "PAYMENT processing"))
	_, err = store.GetJourney(ctx, "Payment Processing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.ErrorIs(t, store.DeleteJourney(ctx, "Payment Processing"), domain.ErrNotFound)
}

func TestJourneyStore_ListJourneys_SortedByName(t *testing.T) {
	store := NewJourneyStore()
	ctx := context.Background()
	for _, n := range []string{"b", "c", "a"} {
		require.NoError(t, store.SaveJourney(ctx, &domain.Journey{Name: n}))
	}

	list, err := store.ListJourneys(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].Name)
	assert.Equal(t, "c", list[2].Name)
}

func TestChunkStore_SaveGetDelete(t *testing.T) {
	store := NewChunkStore()
	ctx := context.Background()

	chunks := []domain.Chunk{
		{ID: "c1", Sequence: 1, Text: "b", Embedding: []float32{0, 1}},
		{ID: "c0", Sequence: 0, Text: "a", Embedding: []float32{1, 0}},
	}
	require.NoError(t, store.SaveChunks(ctx, "X", "v1", chunks))
	require.NoError(t, store.SaveChunks(ctx, "X", "v2", []domain.Chunk{{ID: "d0"}}))

	got, err := store.GetChunks(ctx, "x", "v1")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c0", got[0].ID)
	assert.Equal(t, []float32{1, 0}, got[0].Embedding)

	// Returned embeddings are copies.
	got[0].Embedding[0] = 9
	again, _ := store.GetChunks(ctx, "X", "v1")
	assert.Equal(t, float32(1), again[0].Embedding[0])

	all, err := store.ListChunks(ctx, "X")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	n, err := store.DeleteChunks(ctx, "X", "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = store.DeleteChunks(ctx, "X", "")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNamespaceStore_DimensionIsFixed(t *testing.T) {
	store := NewNamespaceStore()
	ctx := context.Background()

	_, err := store.GetNamespace(ctx, "X")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, store.SaveNamespace(ctx, &domain.Namespace{Journey: "X", Dimensions: 768, Model: "m"}))
	require.NoError(t, store.SaveNamespace(ctx, &domain.Namespace{Journey: "x", Dimensions: 768, Model: "m"}))
	err = store.SaveNamespace(ctx, &domain.Namespace{Journey: "X", Dimensions: 1536})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	require.NoError(t, store.DeleteNamespace(ctx, "X"))
	require.NoError(t, store.SaveNamespace(ctx, &domain.Namespace{Journey: "X", Dimensions: 1536}))
}

func TestTaskStore_PrunesOnlyTerminalTasks(t *testing.T) {
	store := NewTaskStore()
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: "done", Status: domain.TaskCompleted,
		CreatedAt: now.Add(-48 * time.Hour), EndedAt: now.Add(-47 * time.Hour)}))
	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: "running", Status: domain.TaskRunning,
		CreatedAt: now.Add(-48 * time.Hour)}))
	require.NoError(t, store.SaveTask(ctx, &domain.Task{ID: "fresh", Status: domain.TaskFailed,
		CreatedAt: now, EndedAt: now}))

	n, err := store.DeleteTasksEndedBefore(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	tasks, err := store.ListTasks(ctx)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, "fresh", tasks[0].ID)

	_, err = store.GetTask(ctx, "done")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
