package model

import "time"

// TabDescriptor identifies one open browser tab at enumeration time. It is
// supplied by the host per run and never persisted.
type TabDescriptor struct {
	ID       int    `json:"id"`
	WindowID int    `json:"window_id"`
	URL      string `json:"url"`
	Title    string `json:"title"`
}

// CollectionResult is the outcome of harvesting one tab. Exactly one is
// produced per tab per run. Image is empty only when every tier failed.
type CollectionResult struct {
	ID             string    `json:"id"`
	TabID          int       `json:"tab_id"`
	URL            string    `json:"url"`
	Title          string    `json:"title"`
	Description    string    `json:"description,omitempty"`
	Image          string    `json:"image"`
	IsScreenshot   bool      `json:"is_screenshot"`
	IsDocCard      bool      `json:"is_doc_card"`
	Success        bool      `json:"success"`
	Error          string    `json:"error,omitempty"`
	TextEmbedding  []float64 `json:"text_embedding,omitempty"`
	ImageEmbedding []float64 `json:"image_embedding,omitempty"`
}

// HasEmbeddings reports whether enrichment already attached at least one
// embedding vector to this item.
func (r CollectionResult) HasEmbeddings() bool {
	return len(r.TextEmbedding) > 0 || len(r.ImageEmbedding) > 0
}

// Session is a named, timestamped batch of collected items, the unit of
// persistence. Item embedding fields are the only part mutated after
// creation, by the enricher. Invariant: TabCount == len(Items).
type Session struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	CreatedAt time.Time          `json:"createdAt"`
	Items     []CollectionResult `json:"items"`
	TabCount  int                `json:"tabCount"`
}

// StoreState is the full persisted shape: sessions newest first plus the
// pointer to the session the UI should show.
type StoreState struct {
	Sessions         []Session `json:"sessions"`
	CurrentSessionID string    `json:"currentSessionId"`
	LastCleanTime    time.Time `json:"lastCleanTime"`
}

// CollectionStats summarizes one run. Derived, never persisted.
type CollectionStats struct {
	Total        int
	Success      int
	Failed       int
	WithImage    int
	WithoutImage int
}

// Stats computes summary counts for a batch of results.
func Stats(results []CollectionResult) CollectionStats {
	s := CollectionStats{Total: len(results)}
	for _, r := range results {
		if r.Success {
			s.Success++
		} else {
			s.Failed++
		}
		if r.Image != "" {
			s.WithImage++
		} else {
			s.WithoutImage++
		}
	}
	return s
}
