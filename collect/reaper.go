package collect

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/browser"
	"github.com/previewbasket/tabharvest/model"
)

// ReapReport records which tabs were closed and which were deliberately
// left open because their result carries no image.
type ReapReport struct {
	Closed []int
	Kept   []int
}

// Reap closes exactly the tabs whose result has a non-empty image. Tabs
// without a verified image stay open so the user does not lose an
// unrecoverable page. Closing is best effort: a tab that is already gone
// must not stop the rest from closing.
func Reap(ctx context.Context, agent browser.Agent, results []model.CollectionResult) ReapReport {
	var report ReapReport

	for _, r := range results {
		if r.Image == "" {
			report.Kept = append(report.Kept, r.TabID)
			continue
		}

		if err := agent.CloseTab(ctx, r.TabID); err != nil {
			// The tab may have been closed by the user mid-run.
			log.Warn().Err(err).Int("tab_id", r.TabID).Str("url", r.URL).Msg("Failed to close tab")
			continue
		}
		report.Closed = append(report.Closed, r.TabID)
	}

	log.Info().
		Int("closed", len(report.Closed)).
		Int("kept", len(report.Kept)).
		Msg("Tab reaping complete")
	return report
}
