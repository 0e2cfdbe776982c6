package collect

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/browser"
)

// captureJob is one serialized screenshot request. The outcome is delivered
// on reply, which is always written exactly once.
type captureJob struct {
	ctx      context.Context
	tabID    int
	windowID int
	reply    chan captureOutcome
}

type captureOutcome struct {
	image string
	err   error
}

// ScreenshotQueue serializes visible-area captures across tabs. Only the
// frontmost tab of a window can be captured, so captures must never overlap:
// a single worker drains a FIFO, focusing each tab, waiting for it to
// settle, then capturing. The queue is shared by the collection tier and the
// repair pass so the two can never contend for tab focus.
type ScreenshotQueue struct {
	agent       browser.Agent
	settleDelay time.Duration
	jobs        chan captureJob
	done        chan struct{}
}

// NewScreenshotQueue creates the queue and starts its worker.
func NewScreenshotQueue(agent browser.Agent, settleDelay time.Duration) *ScreenshotQueue {
	q := &ScreenshotQueue{
		agent:       agent,
		settleDelay: settleDelay,
		jobs:        make(chan captureJob, 64),
		done:        make(chan struct{}),
	}
	go q.drain()
	return q
}

// Capture enqueues a screenshot of the given tab and blocks until the worker
// has processed it or ctx expires.
func (q *ScreenshotQueue) Capture(ctx context.Context, tabID, windowID int) (string, error) {
	job := captureJob{
		ctx:      ctx,
		tabID:    tabID,
		windowID: windowID,
		reply:    make(chan captureOutcome, 1),
	}

	select {
	case q.jobs <- job:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		return "", fmt.Errorf("screenshot queue closed")
	}

	select {
	case out := <-job.reply:
		return out.image, out.err
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.done:
		// The worker may have answered just before shutting down.
		select {
		case out := <-job.reply:
			return out.image, out.err
		default:
			return "", fmt.Errorf("screenshot queue closed")
		}
	}
}

// Close stops the worker. Jobs already queued are answered with an error.
func (q *ScreenshotQueue) Close() {
	close(q.done)
}

func (q *ScreenshotQueue) drain() {
	for {
		select {
		case job := <-q.jobs:
			job.reply <- q.capture(job)
		case <-q.done:
			for {
				select {
				case job := <-q.jobs:
					job.reply <- captureOutcome{err: fmt.Errorf("screenshot queue closed")}
				default:
					return
				}
			}
		}
	}
}

func (q *ScreenshotQueue) capture(job captureJob) captureOutcome {
	if err := job.ctx.Err(); err != nil {
		return captureOutcome{err: err}
	}

	if err := q.agent.FocusTab(job.ctx, job.tabID); err != nil {
		return captureOutcome{err: fmt.Errorf("focus tab %d: %w", job.tabID, err)}
	}

	// The compositor needs a beat after a tab switch before the capture
	// reflects the new foreground tab.
	select {
	case <-time.After(q.settleDelay):
	case <-job.ctx.Done():
		return captureOutcome{err: job.ctx.Err()}
	}

	image, err := q.agent.CaptureVisible(job.ctx, job.windowID)
	if err != nil {
		log.Debug().Err(err).Int("tab_id", job.tabID).Msg("Visible-area capture failed")
		return captureOutcome{err: err}
	}
	return captureOutcome{image: image}
}
