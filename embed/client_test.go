package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/previewbasket/tabharvest/model"
)

func TestFetchEmbeddings(t *testing.T) {
	var gotBody embeddingRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search/embedding", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(embeddingResponse{Data: []Embedding{
			{URL: "https://a.com", TextEmbedding: []float64{0.1, 0.2}},
		}})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	items := model.NormalizeAll([]model.CollectionResult{
		{URL: "https://a.com", Title: "A", Image: "https://a.com/i.png"},
	})

	embeddings, err := client.FetchEmbeddings(context.Background(), items)
	require.NoError(t, err)

	require.Len(t, gotBody.OpengraphItems, 1)
	require.NotNil(t, gotBody.OpengraphItems[0].URL)
	assert.Equal(t, "https://a.com", *gotBody.OpengraphItems[0].URL)

	require.Len(t, embeddings, 1)
	assert.Equal(t, []float64{0.1, 0.2}, embeddings[0].TextEmbedding)
}

func TestFetchEmbeddingsServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewClient(server.URL).FetchEmbeddings(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}

func TestFetchEmbeddingsUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1")
	_, err := client.FetchEmbeddings(context.Background(), nil)
	assert.Error(t, err)
}
