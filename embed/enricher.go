package embed

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/model"
	"github.com/previewbasket/tabharvest/store"
)

// Enricher attaches vector embeddings to already-persisted session items in
// fixed-size batches. It runs detached from the collection flow: the caller
// has its result before the first batch is even requested, and no batch
// failure can damage the persisted base data.
type Enricher struct {
	client    *Client
	sessions  *store.SessionStore
	batchSize int
	delay     time.Duration
}

// NewEnricher wires an enricher. batchSize items go into each request; delay
// is the pause between batches so the backend is not hammered.
func NewEnricher(client *Client, sessions *store.SessionStore, batchSize int, delay time.Duration) *Enricher {
	if batchSize <= 0 {
		batchSize = 5
	}
	return &Enricher{
		client:    client,
		sessions:  sessions,
		batchSize: batchSize,
		delay:     delay,
	}
}

// Run enriches every successful item of the session that lacks embeddings.
// Intended to be launched on its own goroutine; it logs and returns rather
// than surfacing errors to the collection flow.
func (e *Enricher) Run(ctx context.Context, sessionID string) {
	session, ok := e.sessions.Session(sessionID)
	if !ok {
		log.Warn().Str("session_id", sessionID).Msg("Enrichment skipped, session not found")
		return
	}

	pending := make([]model.CollectionResult, 0, len(session.Items))
	for _, item := range session.Items {
		if item.Success && !item.HasEmbeddings() {
			pending = append(pending, item)
		}
	}
	if len(pending) == 0 {
		log.Debug().Str("session_id", sessionID).Msg("No items need enrichment")
		return
	}

	log.Info().Str("session_id", sessionID).Int("items", len(pending)).Msg("Starting embedding enrichment")

	for start := 0; start < len(pending); start += e.batchSize {
		if ctx.Err() != nil {
			log.Info().Str("session_id", sessionID).Msg("Enrichment cancelled")
			return
		}
		if start > 0 {
			select {
			case <-time.After(e.delay):
			case <-ctx.Done():
				return
			}
		}

		end := start + e.batchSize
		if end > len(pending) {
			end = len(pending)
		}
		batch := pending[start:end]

		embeddings, err := e.client.FetchEmbeddings(ctx, model.NormalizeAll(batch))
		if err != nil {
			// A failed batch is skipped; the base data stays valid without
			// embeddings and later batches still run.
			log.Warn().Err(err).Int("batch_start", start).Msg("Embedding batch failed, skipping")
			continue
		}

		if err := e.merge(ctx, sessionID, embeddings); err != nil {
			log.Warn().Err(err).Int("batch_start", start).Msg("Failed to persist embedding batch")
		}
	}

	log.Info().Str("session_id", sessionID).Msg("Embedding enrichment complete")
}

// merge writes one batch of embeddings into the current persisted session
// state. Items are matched by URL, not array index, because the session may
// have been modified since the batch was requested. Only the two embedding
// fields are touched.
func (e *Enricher) merge(ctx context.Context, sessionID string, embeddings []Embedding) error {
	byURL := make(map[string]Embedding, len(embeddings))
	for _, emb := range embeddings {
		if emb.URL != "" {
			byURL[emb.URL] = emb
		}
	}

	return e.sessions.UpdateSessionItems(ctx, sessionID, func(session *model.Session) {
		for i := range session.Items {
			emb, ok := byURL[session.Items[i].URL]
			if !ok {
				continue
			}
			if len(emb.TextEmbedding) > 0 {
				session.Items[i].TextEmbedding = emb.TextEmbedding
			}
			if len(emb.ImageEmbedding) > 0 {
				session.Items[i].ImageEmbedding = emb.ImageEmbedding
			}
		}
	})
}
