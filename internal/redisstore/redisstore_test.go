package redisstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewFromClient(rdb), mr
}

func TestGetSet(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	t.Run("missing key is not an error", func(t *testing.T) {
		_, found, err := c.Get(ctx, "absent")
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "k", "v", time.Hour))
		val, found, err := c.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, found)
		assert.Equal(t, "v", val)
	})
}

func TestSetKeepTTL(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", "v1", time.Hour))
	require.NoError(t, c.SetKeepTTL(ctx, "k", "v2"))

	val, found, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "v2", val)
	assert.Greater(t, mr.TTL("k"), time.Duration(0))
}

func TestEval(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	res, err := c.Eval(ctx, `return redis.call("INCRBY", KEYS[1], ARGV[1])`, []string{"ctr"}, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 3, res)
}

func TestQueueOps(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()

	require.NoError(t, c.LPush(ctx, "q", "a"))
	require.NoError(t, c.LPush(ctx, "q", "b"))

	// FIFO via LPUSH head / BRPOP tail.
	val, found, err := c.BRPop(ctx, time.Second, "q")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "a", val)
}
