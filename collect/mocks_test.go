package collect

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/previewbasket/tabharvest/browser"
	"github.com/previewbasket/tabharvest/model"
)

// tabBehavior scripts one tab's responses for a test run.
type tabBehavior struct {
	injectErr     error
	requestErr    error
	pollErr       error
	pollResponses []browser.ExtractionStatus // consumed in order; last one repeats
	captureImage  string
	captureErr    error
	closeErr      error
}

// mockAgent is a scriptable Agent that records every interaction.
type mockAgent struct {
	mu        sync.Mutex
	tabs      []model.TabDescriptor
	behaviors map[int]*tabBehavior

	pollCount    map[int]int
	requested    map[int]browser.ExtractionOptions
	focusOrder   []int
	closed       []int
	capturing    atomic.Int32
	maxCapturing atomic.Int32
	focusedTab   map[int]int // windowID -> tabID
}

func newMockAgent(tabs ...model.TabDescriptor) *mockAgent {
	return &mockAgent{
		tabs:       tabs,
		behaviors:  make(map[int]*tabBehavior),
		pollCount:  make(map[int]int),
		requested:  make(map[int]browser.ExtractionOptions),
		focusedTab: make(map[int]int),
	}
}

func (m *mockAgent) behave(tabID int, b tabBehavior) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.behaviors[tabID] = &b
}

func (m *mockAgent) behavior(tabID int) *tabBehavior {
	m.mu.Lock()
	defer m.mu.Unlock()
	if b, ok := m.behaviors[tabID]; ok {
		return b
	}
	return &tabBehavior{}
}

func (m *mockAgent) ListTabs(context.Context) ([]model.TabDescriptor, error) {
	return m.tabs, nil
}

func (m *mockAgent) InjectExtractor(_ context.Context, tabID int) error {
	return m.behavior(tabID).injectErr
}

func (m *mockAgent) RequestExtraction(_ context.Context, tabID int, opts browser.ExtractionOptions) error {
	m.mu.Lock()
	m.requested[tabID] = opts
	m.mu.Unlock()
	return m.behavior(tabID).requestErr
}

func (m *mockAgent) PollStatus(_ context.Context, tabID int) (browser.ExtractionStatus, error) {
	b := m.behavior(tabID)
	if b.pollErr != nil {
		return browser.ExtractionStatus{}, b.pollErr
	}

	m.mu.Lock()
	n := m.pollCount[tabID]
	m.pollCount[tabID] = n + 1
	m.mu.Unlock()

	if len(b.pollResponses) == 0 {
		return browser.ExtractionStatus{}, nil
	}
	if n >= len(b.pollResponses) {
		n = len(b.pollResponses) - 1
	}
	return b.pollResponses[n], nil
}

func (m *mockAgent) FocusTab(_ context.Context, tabID int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.focusOrder = append(m.focusOrder, tabID)
	for _, tab := range m.tabs {
		if tab.ID == tabID {
			m.focusedTab[tab.WindowID] = tabID
			return nil
		}
	}
	m.focusedTab[0] = tabID
	return nil
}

func (m *mockAgent) CaptureVisible(_ context.Context, windowID int) (string, error) {
	cur := m.capturing.Add(1)
	for {
		max := m.maxCapturing.Load()
		if cur <= max || m.maxCapturing.CompareAndSwap(max, cur) {
			break
		}
	}
	defer m.capturing.Add(-1)

	m.mu.Lock()
	tabID, ok := m.focusedTab[windowID]
	m.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("no focused tab in window %d", windowID)
	}

	b := m.behavior(tabID)
	if b.captureErr != nil {
		return "", b.captureErr
	}
	if b.captureImage != "" {
		return b.captureImage, nil
	}
	return fmt.Sprintf("data:image/jpeg;base64,shot-%d", tabID), nil
}

func (m *mockAgent) CloseTab(_ context.Context, tabID int) error {
	if err := m.behavior(tabID).closeErr; err != nil {
		return err
	}
	m.mu.Lock()
	m.closed = append(m.closed, tabID)
	m.mu.Unlock()
	return nil
}

func (m *mockAgent) closedTabs() []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]int, len(m.closed))
	copy(out, m.closed)
	return out
}
