package store

import (
	"context"
	"sync"
)

// memKV is an in-memory KeyValueStore whose next writes can be scripted to
// fail with quota errors.
type memKV struct {
	mu        sync.Mutex
	data      map[string][]byte
	failQuota int // number of upcoming Set calls to reject
	setCalls  int
}

func newMemKV() *memKV {
	return &memKV{data: make(map[string][]byte)}
}

func (m *memKV) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		if v, ok := m.data[key]; ok {
			out[key] = append([]byte(nil), v...)
		}
	}
	return out, nil
}

func (m *memKV) Set(_ context.Context, kv map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setCalls++
	if m.failQuota > 0 {
		m.failQuota--
		return ErrQuotaExceeded
	}
	for key, v := range kv {
		m.data[key] = append([]byte(nil), v...)
	}
	return nil
}

func (m *memKV) Close() error { return nil }
