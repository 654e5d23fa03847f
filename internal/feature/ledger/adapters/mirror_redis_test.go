package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestRedis creates a miniredis instance for testing.
func setupTestRedis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		mr.Close()
	})

	return client, mr
}

func TestNewBalanceMirrorRedis(t *testing.T) {
	client, _ := setupTestRedis(t)

	m := NewBalanceMirrorRedis(client, "ledger", 0)

	assert.Equal(t, "ledger", m.prefix)
	assert.Equal(t, DefaultMirrorTTL, m.ttl)
}

func TestBalanceMirrorRedis_StoreAndLoad(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	m := NewBalanceMirrorRedis(client, "ledger", time.Hour)
	ctx := context.Background()

	_, ok, err := m.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, ok, "missing key is a miss")

	require.NoError(t, m.Store(ctx, "acc-1", 107.8))

	got, ok, err := m.Load(ctx, "acc-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 107.8, got)

	assert.True(t, mr.Exists("ledger:balance:acc-1"))
	assert.Equal(t, time.Hour, mr.TTL("ledger:balance:acc-1"))

	mr.FastForward(2 * time.Hour)
	_, ok, err = m.Load(ctx, "acc-1")
	require.NoError(t, err)
	assert.False(t, ok, "expired entry is a miss")
}

func TestBalanceMirrorRedis_CorruptedEntryIsDeleted(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	m := NewBalanceMirrorRedis(client, "ledger", time.Hour)

	require.NoError(t, mr.Set("ledger:balance:acc-1", "{not json"))

	_, ok, err := m.Load(context.Background(), "acc-1")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("ledger:balance:acc-1"))
}

func TestBalanceMirrorRedis_ConnectionError(t *testing.T) {
	t.Parallel()

	client, mr := setupTestRedis(t)
	m := NewBalanceMirrorRedis(client, "ledger", time.Hour)
	mr.Close()

	_, _, err := m.Load(context.Background(), "acc-1")
	assert.Error(t, err)
	assert.Error(t, m.Store(context.Background(), "acc-1", 1))
}
