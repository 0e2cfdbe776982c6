package store

import (
	"context"
	"errors"
)

// Persisted keys. The UI layer reads the same keys, so their names are part
// of the produced interface.
const (
	KeySessions         = "sessions"
	KeyCurrentSessionID = "currentSessionId"
	KeyLastCleanTime    = "lastCleanTime"
)

// ErrQuotaExceeded is returned by Set when a write would push the store past
// its allotted size. Callers are expected to shed data and retry.
var ErrQuotaExceeded = errors.New("storage quota exceeded")

// KeyValueStore is durable, quota-limited key/value persistence. Set is
// atomic across the supplied keys.
type KeyValueStore interface {
	Get(ctx context.Context, keys []string) (map[string][]byte, error)
	Set(ctx context.Context, kv map[string][]byte) error
	Close() error
}

// Config selects and parameterizes a backend.
type Config struct {
	// Backend is "local" or "dapr".
	Backend string

	// StorageRoot is the base path for the local backend.
	StorageRoot string

	// QuotaBytes caps the local backend's total stored size; 0 disables the
	// check.
	QuotaBytes int64

	// StateStoreName is the Dapr state store component name.
	StateStoreName string
}
