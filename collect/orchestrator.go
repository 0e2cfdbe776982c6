package collect

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/previewbasket/tabharvest/browser"
	"github.com/previewbasket/tabharvest/model"
)

// Orchestrator drives the tiered acquisition strategy: metadata extraction
// first, a serialized visible-area screenshot when extraction yields no
// image, and an explicit failure result when both tiers come up empty.
type Orchestrator struct {
	agent            browser.Agent
	queue            *ScreenshotQueue
	concurrency      int
	pollInterval     time.Duration
	extractionBudget time.Duration
}

// NewOrchestrator wires an orchestrator. The queue is shared with the repair
// pass so all captures funnel through one serialization point.
func NewOrchestrator(agent browser.Agent, queue *ScreenshotQueue, concurrency int, pollInterval, extractionBudget time.Duration) *Orchestrator {
	if concurrency <= 0 {
		concurrency = 6
	}
	return &Orchestrator{
		agent:            agent,
		queue:            queue,
		concurrency:      concurrency,
		pollInterval:     pollInterval,
		extractionBudget: extractionBudget,
	}
}

// CollectAll produces exactly one result per tab. Extraction attempts run
// with bounded parallelism; screenshots are serialized by the queue. One
// tab's failure never aborts the batch.
func (o *Orchestrator) CollectAll(ctx context.Context, tabs []model.TabDescriptor) []model.CollectionResult {
	results := make([]model.CollectionResult, len(tabs))

	var g errgroup.Group
	g.SetLimit(o.concurrency)

	for i, tab := range tabs {
		i, tab := i, tab
		g.Go(func() error {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Msgf("Recovered from panic while collecting tab %d (%s): %v", tab.ID, tab.URL, r)
					results[i] = failureResult(tab, fmt.Sprintf("panic during collection: %v", r))
				}
			}()
			results[i] = o.collectOne(ctx, tab)
			return nil
		})
	}

	_ = g.Wait()

	stats := model.Stats(results)
	log.Info().
		Int("total", stats.Total).
		Int("success", stats.Success).
		Int("failed", stats.Failed).
		Int("with_image", stats.WithImage).
		Msg("Collection pass complete")

	return results
}

// collectOne runs the tier chain for a single tab.
func (o *Orchestrator) collectOne(ctx context.Context, tab model.TabDescriptor) model.CollectionResult {
	result := model.CollectionResult{
		ID:    uuid.New().String(),
		TabID: tab.ID,
		URL:   tab.URL,
		Title: tab.Title,
	}

	var tierErrs []string

	if err := o.runExtractionTier(ctx, tab, &result); err != nil {
		log.Debug().Err(err).Int("tab_id", tab.ID).Str("url", tab.URL).Msg("Extraction tier produced no image")
		tierErrs = append(tierErrs, err.Error())
	}
	if result.Image != "" {
		result.Success = true
		return result
	}

	image, err := o.queue.Capture(ctx, tab.ID, tab.WindowID)
	if err == nil && image != "" {
		result.Image = image
		result.IsScreenshot = true
		result.Success = true
		return result
	}
	if err != nil {
		tierErrs = append(tierErrs, err.Error())
	}

	result.Success = false
	result.Image = ""
	result.Error = describeFailure(tierErrs)
	return result
}

// runExtractionTier injects, requests, and polls until an image appears, the
// extractor completes without one, or the budget is exhausted. Poll errors
// (tab navigated away, tab closed) are tolerated until budget expiry. A nil
// return with an empty result.Image means the extractor completed cleanly
// but the page simply has no representative image.
func (o *Orchestrator) runExtractionTier(ctx context.Context, tab model.TabDescriptor, result *model.CollectionResult) error {
	if err := o.agent.InjectExtractor(ctx, tab.ID); err != nil {
		return fmt.Errorf("injection failed: %w", err)
	}

	opts := browser.ExtractionOptions{
		MaxWait:        o.extractionBudget.Milliseconds(),
		ForceReextract: true,
	}
	if err := o.agent.RequestExtraction(ctx, tab.ID, opts); err != nil {
		return fmt.Errorf("extraction request failed: %w", err)
	}

	deadline := time.Now().Add(o.extractionBudget)
	ticker := time.NewTicker(o.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		status, err := o.agent.PollStatus(ctx, tab.ID)
		if err != nil {
			log.Debug().Err(err).Int("tab_id", tab.ID).Msg("Poll failed, continuing until budget expiry")
		} else if status.Data != nil {
			mergeExtraction(result, status.Data)
			if result.Image != "" {
				return nil
			}
			if status.Completed {
				return nil
			}
		} else if status.Completed {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("extraction timed out after %s", o.extractionBudget)
		}
	}
}

// mergeExtraction copies extractor output into the result without losing the
// enumerator-supplied URL and title when the page reported blanks.
func mergeExtraction(result *model.CollectionResult, data *model.CollectionResult) {
	if data.URL != "" {
		result.URL = data.URL
	}
	if data.Title != "" {
		result.Title = data.Title
	}
	if data.Description != "" {
		result.Description = data.Description
	}
	if data.Image != "" {
		result.Image = data.Image
	}
	result.IsDocCard = data.IsDocCard
}

func failureResult(tab model.TabDescriptor, msg string) model.CollectionResult {
	return model.CollectionResult{
		ID:      uuid.New().String(),
		TabID:   tab.ID,
		URL:     tab.URL,
		Title:   tab.Title,
		Success: false,
		Error:   msg,
	}
}

func describeFailure(tierErrs []string) string {
	if len(tierErrs) == 0 {
		return "no image could be acquired"
	}
	return "all tiers failed: " + strings.Join(tierErrs, "; ")
}
