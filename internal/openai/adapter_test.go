package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIAdapter_CustomBaseURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"closures"}, req.Input)
		assert.Equal(t, "text-embedding-3-small", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.5,0.25,0.125]}],"model":"text-embedding-3-small"}`))
	}))
	defer srv.Close()

	client := NewClientWithConfig(Config{
		APIKey:              "test-key",
		BaseURL:             srv.URL + "/v1",
		EmbeddingModel:      "text-embedding-3-small",
		EmbeddingDimensions: 3,
	})

	embedding, err := client.GenerateEmbedding(context.Background(), "closures")

	require.NoError(t, err)
	assert.Equal(t, []float32{0.5, 0.25, 0.125}, embedding)
}

func TestNewAdapter_Defaults(t *testing.T) {
	adapter := newAdapter(Config{APIKey: "k"})

	assert.Equal(t, DefaultEmbeddingModel, adapter.model)
	assert.Equal(t, DefaultTranscriptionModel, adapter.transcriptionModel)
}
