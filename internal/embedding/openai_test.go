package embedding

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, failFirst bool) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		require.Equal(t, "/embeddings", r.URL.Path)
		if failFirst && n == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":{"message":"busy","type":"server_error"}}`))
			return
		}

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)

		data := make([]map[string]any, 0, len(req.Input))
		// answer in reverse to check index ordering
		for i := len(req.Input) - 1; i >= 0; i-- {
			data = append(data, map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(req.Input[i])), 1},
			})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"object": "list",
			"data":   data,
			"model":  req.Model,
		})
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv, _ := embeddingServer(t, false)
	e, err := NewOpenAIEmbedder(Config{Model: "nomic-embed-text", BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := e.Embed(t.Context(), []string{"a", "abc"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, []float32{1, 1}, vecs[0])
	assert.Equal(t, []float32{3, 1}, vecs[1])
}

func TestOpenAIEmbedder_RetriesServerErrors(t *testing.T) {
	srv, calls := embeddingServer(t, true)
	e, err := NewOpenAIEmbedder(Config{Model: "nomic-embed-text", BaseURL: srv.URL})
	require.NoError(t, err)

	vecs, err := e.Embed(t.Context(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestNewOpenAIEmbedder_RequiresModel(t *testing.T) {
	_, err := NewOpenAIEmbedder(Config{})
	assert.Error(t, err)
	assert.False(t, Config{}.Enabled())
}
