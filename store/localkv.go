package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog/log"
)

// LocalKV persists each key as a file under a storage root and enforces a
// total-size quota the way a browser profile store would. Writes go through
// a temp file and rename so a crash never leaves a torn value.
type LocalKV struct {
	root  string
	quota int64
	mutex sync.Mutex
}

// NewLocalKV creates the storage root if needed.
func NewLocalKV(root string, quotaBytes int64) (*LocalKV, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create storage root: %w", err)
	}
	return &LocalKV{root: root, quota: quotaBytes}, nil
}

func (s *LocalKV) path(key string) string {
	return filepath.Join(s.root, key+".json")
}

// Get reads the requested keys. Missing keys are simply absent from the
// returned map.
func (s *LocalKV) Get(_ context.Context, keys []string) (map[string][]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		data, err := os.ReadFile(s.path(key))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("read key %q: %w", key, err)
		}
		out[key] = data
	}
	return out, nil
}

// Set writes all supplied keys, or none of them when the quota check fails.
func (s *LocalKV) Set(_ context.Context, kv map[string][]byte) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.quota > 0 {
		projected, err := s.projectedSize(kv)
		if err != nil {
			return err
		}
		if projected > s.quota {
			log.Warn().
				Int64("projected_bytes", projected).
				Int64("quota_bytes", s.quota).
				Msg("Write rejected, storage quota exceeded")
			return ErrQuotaExceeded
		}
	}

	for key, data := range kv {
		tmp := s.path(key) + ".tmp"
		if err := os.WriteFile(tmp, data, 0o644); err != nil {
			return fmt.Errorf("write key %q: %w", key, err)
		}
		if err := os.Rename(tmp, s.path(key)); err != nil {
			return fmt.Errorf("commit key %q: %w", key, err)
		}
	}
	return nil
}

// projectedSize is the store's total size if the write were applied.
func (s *LocalKV) projectedSize(kv map[string][]byte) (int64, error) {
	var total int64
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("scan storage root: %w", err)
	}
	for _, entry := range entries {
		key := trimKeyFile(entry.Name())
		if key == "" {
			continue
		}
		if _, overwritten := kv[key]; overwritten {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	for _, data := range kv {
		total += int64(len(data))
	}
	return total, nil
}

func trimKeyFile(name string) string {
	if filepath.Ext(name) != ".json" {
		return ""
	}
	return name[:len(name)-len(".json")]
}

// Close is a no-op for the file backend.
func (s *LocalKV) Close() error { return nil }
