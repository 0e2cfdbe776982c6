package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/previewbasket/tabharvest/model"
	"github.com/previewbasket/tabharvest/store"
)

// embeddingServer answers every batch with vectors keyed by item URL, and
// can be told to fail specific batches.
func embeddingServer(t *testing.T, failBatches map[int]bool) (*httptest.Server, *[][]string) {
	t.Helper()
	var mu sync.Mutex
	var batches [][]string
	batchNo := 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		n := batchNo
		batchNo++
		urls := make([]string, 0, len(req.OpengraphItems))
		for _, item := range req.OpengraphItems {
			if item.URL != nil {
				urls = append(urls, *item.URL)
			}
		}
		batches = append(batches, urls)
		mu.Unlock()

		if failBatches[n] {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}

		resp := embeddingResponse{}
		for _, url := range urls {
			resp.Data = append(resp.Data, Embedding{
				URL:            url,
				TextEmbedding:  []float64{1},
				ImageEmbedding: []float64{2},
			})
		}
		json.NewEncoder(w).Encode(resp)
	}))
	return server, &batches
}

func seedSession(t *testing.T, items []model.CollectionResult) (*store.SessionStore, model.Session) {
	t.Helper()
	kv, err := store.NewLocalKV(t.TempDir(), 0)
	require.NoError(t, err)
	sessions := store.NewSessionStore(kv, 10)
	session := sessions.CreateSession("", items)
	require.NoError(t, sessions.Save(context.Background()))
	return sessions, session
}

func TestEnricherAttachesEmbeddingsInBatches(t *testing.T) {
	server, batches := embeddingServer(t, nil)
	defer server.Close()

	items := make([]model.CollectionResult, 0, 7)
	urls := []string{"https://a.com", "https://b.com", "https://c.com", "https://d.com", "https://e.com", "https://f.com", "https://g.com"}
	for i, url := range urls {
		items = append(items, model.CollectionResult{
			ID: urls[i], URL: url, Title: "t", Image: "img", Success: true,
		})
	}

	sessions, session := seedSession(t, items)

	enricher := NewEnricher(NewClient(server.URL), sessions, 5, time.Millisecond)
	enricher.Run(context.Background(), session.ID)

	// 7 items, batch size 5: two batches.
	require.Len(t, *batches, 2)
	assert.Len(t, (*batches)[0], 5)
	assert.Len(t, (*batches)[1], 2)

	got, ok := sessions.Session(session.ID)
	require.True(t, ok)
	for _, item := range got.Items {
		assert.Equal(t, []float64{1}, item.TextEmbedding, item.URL)
		assert.Equal(t, []float64{2}, item.ImageEmbedding, item.URL)
	}
}

func TestEnricherSkipsFailedBatchAndContinues(t *testing.T) {
	server, batches := embeddingServer(t, map[int]bool{0: true})
	defer server.Close()

	items := make([]model.CollectionResult, 0, 4)
	for _, url := range []string{"https://a.com", "https://b.com", "https://c.com", "https://d.com"} {
		items = append(items, model.CollectionResult{ID: url, URL: url, Image: "img", Success: true})
	}

	sessions, session := seedSession(t, items)

	enricher := NewEnricher(NewClient(server.URL), sessions, 2, time.Millisecond)
	enricher.Run(context.Background(), session.ID)

	require.Len(t, *batches, 2)

	got, ok := sessions.Session(session.ID)
	require.True(t, ok)
	// First batch's items stayed bare; second batch's items were enriched.
	assert.Empty(t, got.Items[0].TextEmbedding)
	assert.Empty(t, got.Items[1].TextEmbedding)
	assert.Equal(t, []float64{1}, got.Items[2].TextEmbedding)
	assert.Equal(t, []float64{1}, got.Items[3].TextEmbedding)
}

func TestEnricherSelectsOnlySuccessfulUnembeddedItems(t *testing.T) {
	server, batches := embeddingServer(t, nil)
	defer server.Close()

	items := []model.CollectionResult{
		{ID: "a", URL: "https://a.com", Image: "img", Success: true},
		{ID: "b", URL: "https://b.com", Success: false},
		{ID: "c", URL: "https://c.com", Image: "img", Success: true, TextEmbedding: []float64{9}},
	}

	sessions, session := seedSession(t, items)

	enricher := NewEnricher(NewClient(server.URL), sessions, 5, time.Millisecond)
	enricher.Run(context.Background(), session.ID)

	require.Len(t, *batches, 1)
	assert.Equal(t, []string{"https://a.com"}, (*batches)[0])

	got, ok := sessions.Session(session.ID)
	require.True(t, ok)
	// The already-embedded item kept its original vector.
	assert.Equal(t, []float64{9}, got.Items[2].TextEmbedding)
	assert.Empty(t, got.Items[1].TextEmbedding)
}

func TestEnricherPreservesBaseFields(t *testing.T) {
	server, _ := embeddingServer(t, nil)
	defer server.Close()

	items := []model.CollectionResult{
		{ID: "a", TabID: 3, URL: "https://a.com", Title: "A", Description: "d", Image: "img", IsScreenshot: true, Success: true},
	}

	sessions, session := seedSession(t, items)

	before, _ := sessions.Session(session.ID)
	base := before.Items[0]
	base.TextEmbedding, base.ImageEmbedding = nil, nil
	baseJSON, err := json.Marshal(base)
	require.NoError(t, err)

	enricher := NewEnricher(NewClient(server.URL), sessions, 5, time.Millisecond)
	enricher.Run(context.Background(), session.ID)

	after, ok := sessions.Session(session.ID)
	require.True(t, ok)
	stripped := after.Items[0]
	require.NotEmpty(t, stripped.TextEmbedding)
	stripped.TextEmbedding, stripped.ImageEmbedding = nil, nil
	strippedJSON, err := json.Marshal(stripped)
	require.NoError(t, err)

	assert.Equal(t, baseJSON, strippedJSON)
}

func TestEnricherUnknownSessionIsNoop(t *testing.T) {
	server, batches := embeddingServer(t, nil)
	defer server.Close()

	sessions, _ := seedSession(t, nil)

	enricher := NewEnricher(NewClient(server.URL), sessions, 5, time.Millisecond)
	enricher.Run(context.Background(), "missing-session")

	assert.Empty(t, *batches)
}
