package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/previewbasket/tabharvest/model"
)

// Embedding is one item of the backend's response, matched to stored items
// by URL.
type Embedding struct {
	URL            string    `json:"url"`
	TextEmbedding  []float64 `json:"text_embedding,omitempty"`
	ImageEmbedding []float64 `json:"image_embedding,omitempty"`
}

type embeddingRequest struct {
	OpengraphItems []model.NormalizedItem `json:"opengraph_items"`
}

type embeddingResponse struct {
	Data []Embedding `json:"data"`
}

// Client calls the remote embedding backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client for the embedding backend at baseURL.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// FetchEmbeddings requests vectors for a batch of normalized items.
func (c *Client) FetchEmbeddings(ctx context.Context, items []model.NormalizedItem) ([]Embedding, error) {
	body, err := json.Marshal(embeddingRequest{OpengraphItems: items})
	if err != nil {
		return nil, fmt.Errorf("marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/search/embedding", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embedding request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding backend: status %d", resp.StatusCode)
	}

	var result embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	return result.Data, nil
}
