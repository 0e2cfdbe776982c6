package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalKVRoundTrip(t *testing.T) {
	kv, err := NewLocalKV(t.TempDir(), 0)
	require.NoError(t, err)

	ctx := context.Background()
	err = kv.Set(ctx, map[string][]byte{
		KeySessions:         []byte(`[]`),
		KeyCurrentSessionID: []byte(`"abc"`),
	})
	require.NoError(t, err)

	values, err := kv.Get(ctx, []string{KeySessions, KeyCurrentSessionID, KeyLastCleanTime})
	require.NoError(t, err)
	assert.Equal(t, []byte(`[]`), values[KeySessions])
	assert.Equal(t, []byte(`"abc"`), values[KeyCurrentSessionID])

	// Missing keys are absent, not errors.
	_, present := values[KeyLastCleanTime]
	assert.False(t, present)
}

func TestLocalKVQuotaExceeded(t *testing.T) {
	kv, err := NewLocalKV(t.TempDir(), 64)
	require.NoError(t, err)

	err = kv.Set(context.Background(), map[string][]byte{
		KeySessions: make([]byte, 128),
	})
	assert.ErrorIs(t, err, ErrQuotaExceeded)
}

func TestLocalKVQuotaCountsExistingKeys(t *testing.T) {
	kv, err := NewLocalKV(t.TempDir(), 100)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string][]byte{"a": make([]byte, 60)}))

	// A second key pushes the total past the quota.
	err = kv.Set(ctx, map[string][]byte{"b": make([]byte, 60)})
	assert.ErrorIs(t, err, ErrQuotaExceeded)

	// Overwriting the existing key with something smaller is fine: the old
	// size is replaced, not added.
	assert.NoError(t, kv.Set(ctx, map[string][]byte{"a": make([]byte, 90)}))
}

func TestLocalKVRejectedWriteLeavesOldValue(t *testing.T) {
	kv, err := NewLocalKV(t.TempDir(), 64)
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, kv.Set(ctx, map[string][]byte{"a": []byte("old")}))
	require.ErrorIs(t, kv.Set(ctx, map[string][]byte{"a": make([]byte, 128)}), ErrQuotaExceeded)

	values, err := kv.Get(ctx, []string{"a"})
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), values["a"])
}
