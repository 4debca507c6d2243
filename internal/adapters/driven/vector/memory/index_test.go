package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/adapters/driven/vector/vectortest"
	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

func TestIndex_Suite(t *testing.T) {
	vectortest.Run(t, func(t *testing.T) driven.VectorIndex {
		return New()
	})
}

func TestIndex_ZeroVectorScoresZero(t *testing.T) {
	idx := New()
	ctx := context.Background()
	_, err := idx.Upsert(ctx, "J", []domain.Chunk{vectortest.MakeChunk("J", "v1", 0, domain.SourceFSD, 0, 0)})
	require.NoError(t, err)

	hits, err := idx.Query(ctx, "J", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 0.0, hits[0].Score)
	assert.Nil(t, hits[0].Chunk.Embedding)
}

func TestIndex_UpsertCopiesEmbeddings(t *testing.T) {
	idx := New()
	ctx := context.Background()
	c := vectortest.MakeChunk("J", "v1", 0, domain.SourceFSD, 1, 0)
	_, err := idx.Upsert(ctx, "J", []domain.Chunk{c})
	require.NoError(t, err)

	c.Embedding[0] = -1
	hits, err := idx.Query(ctx, "J", []float32{1, 0}, 1, nil)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
}

func TestIndex_InvalidTopK(t *testing.T) {
	_, err := New().Query(context.Background(), "J", []float32{1}, 0, nil)
	assert.True(t, domain.IsFatal(err))
}

func TestIndex_Has(t *testing.T) {
	idx := New()
	assert.False(t, idx.Has("J"))
	_, err := idx.Upsert(context.Background(), "J", []domain.Chunk{vectortest.MakeChunk("J", "v1", 0, domain.SourceFSD, 1)})
	require.NoError(t, err)
	assert.True(t, idx.Has("j"))
}
