package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func TestEmbed_UnitLengthAndDeterministic(t *testing.T) {
	svc := NewEmbeddingService()
	ctx := context.Background()

	a, err := svc.Embed(ctx, "Settlement must complete within 30 seconds.")
	require.NoError(t, err)
	b, err := svc.Embed(ctx, "Settlement must complete within 30 seconds.")
	require.NoError(t, err)

	assert.Len(t, a, DefaultDimensions)
	assert.InDelta(t, 1.0, norm(a), 1e-5)
	assert.Equal(t, a, b)
}

func TestEmbed_CaseAndPunctuationInsensitive(t *testing.T) {
	svc := NewEmbeddingService()
	a, _ := svc.Embed(context.Background(), "Refund window: 14 days")
	b, _ := svc.Embed(context.Background(), "refund WINDOW 14 days!")
	assert.Equal(t, a, b)
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	svc := NewEmbeddingService()
	ctx := context.Background()

	query, _ := svc.Embed(ctx, "settlement timeout seconds")
	near, _ := svc.Embed(ctx, "the settlement timeout is 30 seconds")
	far, _ := svc.Embed(ctx, "customers may update their mailing address")

	assert.Greater(t, domain.CosineScore(query, near), domain.CosineScore(query, far))
}

func TestEmbed_EmptyTextIsZeroVector(t *testing.T) {
	svc := NewEmbeddingService()
	v, err := svc.Embed(context.Background(), " \n\t ")
	require.NoError(t, err)
	assert.Zero(t, norm(v))
}

func TestEmbedBatch(t *testing.T) {
	svc := NewEmbeddingService()
	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)
	assert.Equal(t, ModelName, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())
}

func TestEmbed_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbeddingService().Embed(ctx, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
