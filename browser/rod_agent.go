package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/rs/zerolog/log"

	"github.com/previewbasket/tabharvest/model"
)

// Config holds browser attachment configuration.
type Config struct {
	// DebuggerURL is the DevTools websocket URL of a running browser. When
	// empty a browser is launched instead.
	DebuggerURL string

	// Bin overrides the browser binary used when self-launching.
	Bin string

	Headless bool
}

type tabRecord struct {
	id       int
	windowID int
	page     *rod.Page
}

// RodAgent implements Agent against a live Chromium over CDP.
type RodAgent struct {
	cfg Config

	mu       sync.RWMutex
	browser  *rod.Browser
	tabs     map[int]*tabRecord
	byTarget map[proto.TargetTargetID]int
	focused  map[int]int // windowID -> tab we last brought to front
	nextID   int
}

// NewRodAgent creates an agent; Start must be called before use.
func NewRodAgent(cfg Config) *RodAgent {
	return &RodAgent{
		cfg:      cfg,
		tabs:     make(map[int]*tabRecord),
		byTarget: make(map[proto.TargetTargetID]int),
		focused:  make(map[int]int),
		nextID:   1,
	}
}

// Start connects to an existing browser or launches a new one.
func (a *RodAgent) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.browser != nil {
		if _, err := a.browser.Version(); err == nil {
			return nil
		}
		log.Warn().Msg("Stale browser connection detected, reconnecting")
		_ = a.browser.Close()
		a.browser = nil
	}

	controlURL := a.cfg.DebuggerURL
	if controlURL == "" {
		l := launcher.New().Headless(a.cfg.Headless)
		if a.cfg.Bin != "" {
			l = l.Bin(a.cfg.Bin)
		}
		url, err := l.Launch()
		if err != nil {
			return fmt.Errorf("launch browser: %w", err)
		}
		controlURL = url
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("connect to browser: %w", err)
	}

	a.browser = browser
	log.Info().Str("control_url", controlURL).Msg("Connected to browser")
	return nil
}

// Close disconnects from the browser without closing user tabs.
func (a *RodAgent) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.browser == nil {
		return nil
	}
	err := a.browser.Close()
	a.browser = nil
	a.tabs = make(map[int]*tabRecord)
	a.byTarget = make(map[proto.TargetTargetID]int)
	a.focused = make(map[int]int)
	return err
}

// ListTabs enumerates open pages, assigning each target a stable numeric ID
// for the lifetime of the agent.
func (a *RodAgent) ListTabs(ctx context.Context) ([]model.TabDescriptor, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.browser == nil {
		return nil, fmt.Errorf("browser not connected")
	}

	pages, err := a.browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}

	descriptors := make([]model.TabDescriptor, 0, len(pages))
	for _, page := range pages {
		info, err := page.Info()
		if err != nil {
			log.Warn().Err(err).Msg("Failed to read page info, skipping tab")
			continue
		}
		if info.Type != proto.TargetTargetInfoTypePage {
			continue
		}

		id, known := a.byTarget[info.TargetID]
		if !known {
			id = a.nextID
			a.nextID++
			a.byTarget[info.TargetID] = id
		}

		windowID := 0
		if win, err := (proto.BrowserGetWindowForTarget{}).Call(page); err == nil {
			windowID = int(win.WindowID)
		} else {
			log.Debug().Err(err).Str("url", info.URL).Msg("Could not resolve window for tab")
		}

		a.tabs[id] = &tabRecord{id: id, windowID: windowID, page: page}
		descriptors = append(descriptors, model.TabDescriptor{
			ID:       id,
			WindowID: windowID,
			URL:      info.URL,
			Title:    info.Title,
		})
	}

	return descriptors, nil
}

func (a *RodAgent) record(tabID int) (*tabRecord, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	rec, ok := a.tabs[tabID]
	if !ok {
		return nil, fmt.Errorf("unknown tab: %d", tabID)
	}
	return rec, nil
}

// InjectExtractor installs the preview extractor into the tab's document.
func (a *RodAgent) InjectExtractor(ctx context.Context, tabID int) error {
	rec, err := a.record(tabID)
	if err != nil {
		return err
	}
	_, err = rec.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      extractorJS,
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("inject extractor into tab %d: %w", tabID, err)
	}
	return nil
}

// RequestExtraction starts an extraction run inside the tab. Fire and
// forget; the run is observed through PollStatus.
func (a *RodAgent) RequestExtraction(ctx context.Context, tabID int, opts ExtractionOptions) error {
	rec, err := a.record(tabID)
	if err != nil {
		return err
	}
	_, err = rec.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      startJS,
		JSArgs:  []interface{}{opts.MaxWait, opts.ForceReextract},
		ByValue: true,
	})
	if err != nil {
		return fmt.Errorf("request extraction in tab %d: %w", tabID, err)
	}
	return nil
}

// PollStatus reads the extractor state for a tab.
func (a *RodAgent) PollStatus(ctx context.Context, tabID int) (ExtractionStatus, error) {
	rec, err := a.record(tabID)
	if err != nil {
		return ExtractionStatus{}, err
	}
	res, err := rec.page.Context(ctx).Evaluate(&rod.EvalOptions{
		JS:      statusJS,
		ByValue: true,
	})
	if err != nil {
		return ExtractionStatus{}, fmt.Errorf("poll tab %d: %w", tabID, err)
	}

	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return ExtractionStatus{}, fmt.Errorf("marshal status for tab %d: %w", tabID, err)
	}
	var status ExtractionStatus
	if err := json.Unmarshal(raw, &status); err != nil {
		return ExtractionStatus{}, fmt.Errorf("decode status for tab %d: %w", tabID, err)
	}
	if status.Data != nil {
		status.Data.TabID = tabID
	}
	return status, nil
}

// FocusTab brings the tab to the foreground of its window.
func (a *RodAgent) FocusTab(ctx context.Context, tabID int) error {
	rec, err := a.record(tabID)
	if err != nil {
		return err
	}
	if _, err := rec.page.Context(ctx).Activate(); err != nil {
		return fmt.Errorf("focus tab %d: %w", tabID, err)
	}
	a.mu.Lock()
	a.focused[rec.windowID] = tabID
	a.mu.Unlock()
	return nil
}

// CaptureVisible captures the visible area of the frontmost tab of the
// window. Only the tab most recently focused through this agent can be
// captured; that is the host constraint the screenshot queue exists for.
func (a *RodAgent) CaptureVisible(ctx context.Context, windowID int) (string, error) {
	a.mu.RLock()
	tabID, ok := a.focused[windowID]
	a.mu.RUnlock()
	if !ok {
		return "", fmt.Errorf("no focused tab in window %d", windowID)
	}
	rec, err := a.record(tabID)
	if err != nil {
		return "", err
	}

	data, err := rec.page.Context(ctx).Screenshot(false, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: jpegQuality(),
	})
	if err != nil {
		return "", fmt.Errorf("capture window %d: %w", windowID, err)
	}
	return "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data), nil
}

// CloseTab closes a tab and forgets it.
func (a *RodAgent) CloseTab(ctx context.Context, tabID int) error {
	rec, err := a.record(tabID)
	if err != nil {
		return err
	}
	if err := rec.page.Close(); err != nil {
		return fmt.Errorf("close tab %d: %w", tabID, err)
	}
	a.mu.Lock()
	delete(a.tabs, tabID)
	for target, id := range a.byTarget {
		if id == tabID {
			delete(a.byTarget, target)
			break
		}
	}
	a.mu.Unlock()
	return nil
}

func jpegQuality() *int {
	q := 80
	return &q
}
