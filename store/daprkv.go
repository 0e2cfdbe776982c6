package store

import (
	"context"
	"fmt"
	"strings"

	daprc "github.com/dapr/go-sdk/client"
	"github.com/rs/zerolog/log"
)

const defaultStateStoreName = "statestore"

// DaprKV backs the key/value contract with a Dapr state store component, so
// the same pipeline can persist to whatever store the sidecar is configured
// with (Redis, MongoDB, etc.).
type DaprKV struct {
	client         daprc.Client
	stateStoreName string
}

// NewDaprKV connects to the local Dapr sidecar.
func NewDaprKV(stateStoreName string) (*DaprKV, error) {
	if stateStoreName == "" {
		stateStoreName = defaultStateStoreName
	}

	client, err := daprc.NewClient()
	if err != nil {
		return nil, fmt.Errorf("create dapr client: %w", err)
	}

	log.Info().Str("state_store", stateStoreName).Msg("Connected to Dapr state store")
	return &DaprKV{client: client, stateStoreName: stateStoreName}, nil
}

// Get reads the requested keys from the state store.
func (s *DaprKV) Get(ctx context.Context, keys []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(keys))
	for _, key := range keys {
		response, err := s.client.GetState(ctx, s.stateStoreName, key, nil)
		if err != nil {
			return nil, fmt.Errorf("get key %q from dapr: %w", key, err)
		}
		if response.Value == nil {
			continue
		}
		out[key] = response.Value
	}
	return out, nil
}

// Set writes all supplied keys. State stores backed by size-limited
// components report capacity errors, which are mapped to ErrQuotaExceeded so
// the session store's eviction path fires the same way it does locally.
func (s *DaprKV) Set(ctx context.Context, kv map[string][]byte) error {
	items := make([]*daprc.SetStateItem, 0, len(kv))
	for key, data := range kv {
		items = append(items, &daprc.SetStateItem{
			Key:   key,
			Value: data,
		})
	}

	if err := s.client.SaveBulkState(ctx, s.stateStoreName, items...); err != nil {
		if isQuotaError(err) {
			return ErrQuotaExceeded
		}
		return fmt.Errorf("save state to dapr: %w", err)
	}
	return nil
}

// isQuotaError recognizes capacity failures surfaced by common state store
// components.
func isQuotaError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "quota") ||
		strings.Contains(msg, "maxmemory") ||
		strings.Contains(msg, "storage full") ||
		strings.Contains(msg, "resource exhausted")
}

// Close releases the sidecar connection.
func (s *DaprKV) Close() error {
	s.client.Close()
	return nil
}
