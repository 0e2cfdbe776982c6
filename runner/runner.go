// Package runner wires the collection pipeline end to end: enumerate tabs,
// collect previews, repair missing images, persist a session, reap the
// harvested tabs, and hand the slow embedding enrichment to the background.
package runner

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/browser"
	"github.com/previewbasket/tabharvest/collect"
	"github.com/previewbasket/tabharvest/common"
	"github.com/previewbasket/tabharvest/embed"
	"github.com/previewbasket/tabharvest/model"
	"github.com/previewbasket/tabharvest/store"
)

// Outcome is what a collection run hands back to the caller. The session is
// returned even when persistence failed; Err then explains why it is not
// durable.
type Outcome struct {
	Session model.Session
	Stats   model.CollectionStats
	Reaped  collect.ReapReport

	// Enrichment is closed when background embedding enrichment finishes.
	// Already closed when enrichment was skipped.
	Enrichment <-chan struct{}
}

// Run executes one full collection run. It returns as soon as the session is
// saved and tabs are reaped; embedding enrichment continues detached on
// enrichCtx so process lifetime, not the caller, bounds it.
func Run(ctx, enrichCtx context.Context, cfg common.HarvesterConfig, agent browser.Agent, sessions *store.SessionStore, enricher *embed.Enricher) (Outcome, error) {
	tabs, err := agent.ListTabs(ctx)
	if err != nil {
		return Outcome{}, fmt.Errorf("list tabs: %w", err)
	}

	candidates := collect.FilterTabs(tabs)
	log.Info().Int("open", len(tabs)).Int("candidates", len(candidates)).Msg("Enumerated tabs")
	if len(candidates) == 0 {
		return Outcome{}, fmt.Errorf("no collectable tabs open")
	}

	queue := collect.NewScreenshotQueue(agent, cfg.SettleDelay)
	defer queue.Close()

	orchestrator := collect.NewOrchestrator(agent, queue, cfg.Concurrency, cfg.PollInterval, cfg.ExtractionBudget)
	results := orchestrator.CollectAll(ctx, candidates)

	aggregator := collect.NewAggregator(queue)
	results = aggregator.RepairMissingImages(ctx, results, candidates)
	stats := aggregator.Aggregate(results)

	if err := sessions.Load(ctx); err != nil {
		log.Warn().Err(err).Msg("Could not load existing sessions, starting from empty state")
	}
	session := sessions.CreateSession("", results)

	// Persistence is the only failure surfaced to the caller; the in-memory
	// session is still returned so the run's work is not lost.
	saveErr := sessions.Save(ctx)
	if saveErr != nil {
		log.Error().Err(saveErr).Msg("Failed to persist session")
	}

	reaped := collect.Reap(ctx, agent, results)

	enrichment := make(chan struct{})
	if saveErr == nil && enricher != nil {
		go func() {
			defer close(enrichment)
			enricher.Run(enrichCtx, session.ID)
		}()
	} else {
		close(enrichment)
	}

	outcome := Outcome{Session: session, Stats: stats, Reaped: reaped, Enrichment: enrichment}
	if saveErr != nil {
		return outcome, fmt.Errorf("persist session: %w", saveErr)
	}
	return outcome, nil
}
