package store

import "fmt"

// DefaultFactory selects a key/value backend from configuration.
type DefaultFactory struct{}

// Create returns the configured backend.
func (f *DefaultFactory) Create(config Config) (KeyValueStore, error) {
	switch config.Backend {
	case "dapr":
		return NewDaprKV(config.StateStoreName)
	case "local", "":
		return NewLocalKV(config.StorageRoot, config.QuotaBytes)
	default:
		return nil, fmt.Errorf("unknown state backend: %q", config.Backend)
	}
}
