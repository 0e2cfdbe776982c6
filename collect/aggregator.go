package collect

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/model"
)

// Aggregator merges per-tab outcomes and runs the bounded repair pass for
// items still missing an image.
type Aggregator struct {
	queue *ScreenshotQueue
}

// NewAggregator shares the orchestrator's screenshot queue so the repair
// pass and first-pass captures never contend for tab focus.
func NewAggregator(queue *ScreenshotQueue) *Aggregator {
	return &Aggregator{queue: queue}
}

// Aggregate computes summary statistics for a batch.
func (a *Aggregator) Aggregate(results []model.CollectionResult) model.CollectionStats {
	return model.Stats(results)
}

// RepairMissingImages retries the screenshot tier exactly once for every
// result that still has no image and whose tab still exists. Extraction is
// not retried: a second extraction attempt is no more likely to succeed than
// the first within the same run. Results are updated in place.
func (a *Aggregator) RepairMissingImages(ctx context.Context, results []model.CollectionResult, tabs []model.TabDescriptor) []model.CollectionResult {
	byTab := make(map[int]model.TabDescriptor, len(tabs))
	for _, tab := range tabs {
		byTab[tab.ID] = tab
	}

	repaired := 0
	for i := range results {
		if results[i].Image != "" {
			continue
		}
		tab, exists := byTab[results[i].TabID]
		if !exists {
			continue
		}

		image, err := a.queue.Capture(ctx, tab.ID, tab.WindowID)
		if err != nil || image == "" {
			log.Debug().Err(err).Int("tab_id", tab.ID).Str("url", results[i].URL).Msg("Repair capture failed, keeping tab open")
			continue
		}

		results[i].Image = image
		results[i].IsScreenshot = true
		results[i].Success = true
		results[i].Error = ""
		repaired++
	}

	if repaired > 0 {
		log.Info().Int("repaired", repaired).Msg("Repair pass recovered images")
	}
	return results
}
