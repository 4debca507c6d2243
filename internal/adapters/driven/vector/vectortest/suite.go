// Package vectortest holds the behaviour suite every VectorIndex
// implementation must pass.
package vectortest

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
	"github.com/custodia-labs/traceq/internal/core/ports/driven"
)

// Factory returns a fresh, empty index for one subtest.
type Factory func(t *testing.T) driven.VectorIndex

// MakeChunk builds an embedded chunk for tests.
func MakeChunk(journey, versionID string, seq int, source domain.SourceType, vec ...float32) domain.Chunk {
	text := fmt.Sprintf("%s chunk %d", versionID, seq)
	return domain.Chunk{
		ID:          domain.ChunkID(journey, versionID, seq),
		VersionID:   versionID,
		Journey:     journey,
		SourceType:  source,
		DocumentURI: "file:///docs/" + versionID,
		Sequence:    seq,
		Text:        text,
		End:         len(text),
		TokenCount:  3,
		Embedding:   vec,
	}
}

// Run executes the suite against indexes produced by factory.
func Run(t *testing.T, factory Factory) {
	t.Run("upsert is idempotent", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		chunks := []domain.Chunk{
			MakeChunk("Refunds", "20250101T000000Z-fsd", 0, domain.SourceFSD, 1, 0, 0),
			MakeChunk("Refunds", "20250101T000000Z-fsd", 1, domain.SourceFSD, 0, 1, 0),
		}

		n, err := idx.Upsert(ctx, "Refunds", chunks)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		_, err = idx.Upsert(ctx, "Refunds", chunks)
		require.NoError(t, err)

		stats, err := idx.Stats(ctx, "Refunds")
		require.NoError(t, err)
		assert.Equal(t, 2, stats.Chunks)
		assert.Equal(t, 1, stats.Versions)
		assert.Equal(t, 3, stats.Dimensions)

		hits, err := idx.Query(ctx, "Refunds", []float32{1, 0, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 2)
		assert.Equal(t, chunks[0].ID, hits[0].Chunk.ID)
		assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
		assert.InDelta(t, 0.5, hits[1].Score, 1e-6)
		assert.Equal(t, chunks[0].Text, hits[0].Chunk.Text)
	})

	t.Run("namespaces are isolated", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		_, err := idx.Upsert(ctx, "A", []domain.Chunk{MakeChunk("A", "v1", 0, domain.SourceFSD, 1, 0)})
		require.NoError(t, err)
		_, err = idx.Upsert(ctx, "B", []domain.Chunk{MakeChunk("B", "v1", 0, domain.SourceFSD, 1, 0)})
		require.NoError(t, err)

		hits, err := idx.Query(ctx, "a", []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "A", hits[0].Chunk.Journey)

		hits, err = idx.Query(ctx, "C", []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("ties rank newer version then lower sequence", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		_, err := idx.Upsert(ctx, "J", []domain.Chunk{
			MakeChunk("J", "20250101T000000Z-fsd", 1, domain.SourceFSD, 1, 1),
			MakeChunk("J", "20250101T000000Z-fsd", 0, domain.SourceFSD, 1, 1),
			MakeChunk("J", "20250301T000000Z-addendum", 2, domain.SourceAddendum, 1, 1),
			MakeChunk("J", "20250201T000000Z-email", 0, domain.SourceEmail, -1, 1),
		})
		require.NoError(t, err)

		hits, err := idx.Query(ctx, "J", []float32{1, 1}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 4)
		assert.Equal(t, "J_20250301T000000Z-addendum_2", hits[0].Chunk.ID)
		assert.Equal(t, "J_20250101T000000Z-fsd_0", hits[1].Chunk.ID)
		assert.Equal(t, "J_20250101T000000Z-fsd_1", hits[2].Chunk.ID)
		assert.Equal(t, "J_20250201T000000Z-email_0", hits[3].Chunk.ID)
	})

	t.Run("top k smaller than population", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		var chunks []domain.Chunk
		for i := 0; i < 8; i++ {
			chunks = append(chunks, MakeChunk("J", "v1", i, domain.SourceFSD, 1, float32(i)))
		}
		_, err := idx.Upsert(ctx, "J", chunks)
		require.NoError(t, err)

		hits, err := idx.Query(ctx, "J", []float32{1, 0}, 3, nil)
		require.NoError(t, err)
		require.Len(t, hits, 3)
		assert.Equal(t, 0, hits[0].Chunk.Sequence)
		assert.Equal(t, 1, hits[1].Chunk.Sequence)
		assert.Equal(t, 2, hits[2].Chunk.Sequence)
		for i := 1; i < len(hits); i++ {
			assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
		}
	})

	t.Run("filter by source type and version", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		_, err := idx.Upsert(ctx, "J", []domain.Chunk{
			MakeChunk("J", "v1", 0, domain.SourceFSD, 1, 0),
			MakeChunk("J", "v2", 0, domain.SourceEmail, 1, 0),
			MakeChunk("J", "v3", 0, domain.SourceEmail, 1, 0),
		})
		require.NoError(t, err)

		hits, err := idx.Query(ctx, "J", []float32{1, 0}, 10,
			&domain.ChunkFilter{SourceTypes: []domain.SourceType{domain.SourceEmail}})
		require.NoError(t, err)
		require.Len(t, hits, 2)
		for _, h := range hits {
			assert.Equal(t, domain.SourceEmail, h.Chunk.SourceType)
		}

		hits, err = idx.Query(ctx, "J", []float32{1, 0}, 10,
			&domain.ChunkFilter{SourceTypes: []domain.SourceType{domain.SourceEmail}, VersionIDs: []string{"v2"}})
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "v2", hits[0].Chunk.VersionID)
	})

	t.Run("delete by version and namespace", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		_, err := idx.Upsert(ctx, "J", []domain.Chunk{
			MakeChunk("J", "v1", 0, domain.SourceFSD, 1, 0),
			MakeChunk("J", "v1", 1, domain.SourceFSD, 0, 1),
			MakeChunk("J", "v2", 0, domain.SourceFSD, 1, 1),
		})
		require.NoError(t, err)

		n, err := idx.Delete(ctx, "J", "v1")
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		hits, err := idx.Query(ctx, "J", []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, "v2", hits[0].Chunk.VersionID)

		n, err = idx.Delete(ctx, "J", "")
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		stats, err := idx.Stats(ctx, "J")
		require.NoError(t, err)
		assert.Zero(t, stats.Chunks)
	})

	t.Run("prune drops the tail of one version", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		var chunks []domain.Chunk
		for seq := 0; seq < 4; seq++ {
			chunks = append(chunks, MakeChunk("J", "v1", seq, domain.SourceFSD, 1, float32(seq)))
		}
		chunks = append(chunks, MakeChunk("J", "v2", 3, domain.SourceFSD, 0, 1))
		_, err := idx.Upsert(ctx, "J", chunks)
		require.NoError(t, err)

		n, err := idx.Prune(ctx, "J", "v1", 2)
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		hits, err := idx.Query(ctx, "J", []float32{1, 0}, 10, nil)
		require.NoError(t, err)
		ids := make([]string, len(hits))
		for i := range hits {
			ids[i] = hits[i].Chunk.ID
		}
		assert.ElementsMatch(t, []string{"J_v1_0", "J_v1_1", "J_v2_3"}, ids)

		n, err = idx.Prune(ctx, "unknown", "v1", 0)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("dimension mismatch is fatal", func(t *testing.T) {
		idx := factory(t)
		ctx := context.Background()
		_, err := idx.Upsert(ctx, "J", []domain.Chunk{MakeChunk("J", "v1", 0, domain.SourceFSD, 1, 0, 0)})
		require.NoError(t, err)

		_, err = idx.Upsert(ctx, "J", []domain.Chunk{MakeChunk("J", "v2", 0, domain.SourceFSD, 1, 0)})
		assert.True(t, domain.IsFatal(err))
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

		_, err = idx.Query(ctx, "J", []float32{1, 0}, 5, nil)
		assert.True(t, domain.IsFatal(err))
		assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	})
}
