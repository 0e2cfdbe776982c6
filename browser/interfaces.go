package browser

import (
	"context"

	"github.com/previewbasket/tabharvest/model"
)

// ExtractionOptions control one extraction request sent into a tab.
type ExtractionOptions struct {
	// MaxWait is the budget the in-page extractor may spend gathering
	// preview data before reporting completion.
	MaxWait int64 `json:"maxWaitMs"`

	// ForceReextract discards any cached extraction the page may hold so the
	// attempt is a fresh one.
	ForceReextract bool `json:"forceReextract"`
}

// ExtractionStatus is one poll observation of an in-page extractor.
type ExtractionStatus struct {
	Completed bool                    `json:"completed"`
	Data      *model.CollectionResult `json:"data,omitempty"`
}

// Agent represents the per-tab automation capabilities of the host browser.
type Agent interface {
	// ListTabs returns descriptors for every open tab.
	ListTabs(ctx context.Context) ([]model.TabDescriptor, error)

	// InjectExtractor installs the preview extractor into a tab.
	InjectExtractor(ctx context.Context, tabID int) error

	// RequestExtraction asks an installed extractor to run. Fire and forget;
	// progress is observed through PollStatus.
	RequestExtraction(ctx context.Context, tabID int, opts ExtractionOptions) error

	// PollStatus reads the extractor's current state for a tab.
	PollStatus(ctx context.Context, tabID int) (ExtractionStatus, error)

	// FocusTab brings a tab to the foreground of its window.
	FocusTab(ctx context.Context, tabID int) error

	// CaptureVisible captures the visible area of the frontmost tab of a
	// window and returns it as a data URL.
	CaptureVisible(ctx context.Context, windowID int) (string, error)

	// CloseTab closes a tab.
	CloseTab(ctx context.Context, tabID int) error
}
