package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*RedisClient, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := NewRedisClient(mr.Addr(), "", 0, 5, 0)
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestRedisClient_JSONRoundTrip(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	type payload struct {
		IDs []uint `json:"ids"`
	}

	require.NoError(t, client.SetJSON(ctx, "k", payload{IDs: []uint{3, 1}}, time.Minute))
	assert.True(t, mr.Exists("k"))

	var got payload
	require.NoError(t, client.GetJSON(ctx, "k", &got))
	assert.Equal(t, []uint{3, 1}, got.IDs)

	mr.FastForward(2 * time.Minute)
	assert.ErrorIs(t, client.GetJSON(ctx, "k", &got), ErrCacheMiss)
}

func TestRedisClient_GetMissingKey(t *testing.T) {
	client, _ := newTestClient(t)

	val, err := client.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Empty(t, val)
}

func TestRedisClient_IncrMany(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, client.IncrMany(ctx, "a", "b", "a"))

	a, err := mr.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "2", a)

	n, err := client.Incr(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	assert.NoError(t, client.IncrMany(ctx))
}
