package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/traceq/internal/core/domain"
)

func newServer(t *testing.T, status int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			_, _ = w.Write([]byte(`{"models":[]}`))
		case "/api/embeddings":
			if status != http.StatusOK {
				http.Error(w, "boom", status)
				return
			}
			var req embedRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			_ = json.NewEncoder(w).Encode(embedResponse{Embedding: []float64{float64(len(req.Prompt)), 1}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewEmbeddingService_Defaults(t *testing.T) {
	svc := NewEmbeddingService(Config{})
	assert.Equal(t, DefaultModel, svc.ModelName())
	assert.Equal(t, DefaultDimensions, svc.Dimensions())

	svc = NewEmbeddingService(Config{Model: "mxbai-embed-large"})
	assert.Equal(t, 1024, svc.Dimensions())
}

func TestEmbedBatch_PreservesOrder(t *testing.T) {
	server := newServer(t, http.StatusOK)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	vecs, err := svc.EmbedBatch(context.Background(), []string{"a", "bbb", "cc", "dddd", "e", "ffffff"})

	require.NoError(t, err)
	require.Len(t, vecs, 6)
	for i, want := range []float32{1, 3, 2, 4, 1, 6} {
		assert.Equal(t, want, vecs[i][0])
	}
}

func TestEmbed_ServerErrorIsRetrievable(t *testing.T) {
	server := newServer(t, http.StatusInternalServerError)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := svc.Embed(context.Background(), "hello")
	assert.True(t, domain.IsRetrievable(err))

	_, err = svc.EmbedBatch(context.Background(), []string{"a", "b"})
	assert.True(t, domain.IsRetrievable(err))
}

func TestEmbed_UnknownModelIsFatal(t *testing.T) {
	server := newServer(t, http.StatusNotFound)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})

	_, err := svc.Embed(context.Background(), "hello")
	assert.True(t, domain.IsFatal(err))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPing(t *testing.T) {
	server := newServer(t, http.StatusOK)
	svc := NewEmbeddingService(Config{BaseURL: server.URL})
	assert.NoError(t, svc.Ping(context.Background()))
	assert.NoError(t, svc.Close())
}
