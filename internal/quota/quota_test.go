package quota

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toonslate/toonslate-backend/internal/redisstore"
)

func newEngine(t *testing.T, limit int) (*Engine, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return New(redisstore.NewFromClient(rdb), "test-secret", limit), mr
}

func counterValue(t *testing.T, mr *miniredis.Miniredis, key string) int {
	t.Helper()
	val, err := mr.Get(key)
	if err != nil {
		return 0
	}
	n, err := strconv.Atoi(val)
	require.NoError(t, err)
	return n
}

func TestHashIP(t *testing.T) {
	e, _ := newEngine(t, 20)

	h := e.HashIP("203.0.113.7")
	assert.Len(t, h, 16)
	assert.Regexp(t, "^[a-f0-9]{16}$", h)
	// Deterministic for the same secret and IP.
	assert.Equal(t, h, e.HashIP("203.0.113.7"))
	assert.NotEqual(t, h, e.HashIP("203.0.113.8"))
}

func TestKey_ISOWeek(t *testing.T) {
	e, _ := newEngine(t, 20)
	e.WithClock(func() time.Time {
		return time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC) // 2026-W01
	})
	assert.Equal(t, "usage:images:abc:2026-W01", e.Key("abc"))
}

func TestCheckAndConsume(t *testing.T) {
	ctx := context.Background()

	t.Run("consumes exactly n", func(t *testing.T) {
		e, mr := newEngine(t, 20)
		require.NoError(t, e.CheckAndConsume(ctx, "h", 3))
		assert.Equal(t, 3, counterValue(t, mr, e.Key("h")))
	})

	t.Run("exceeding limit leaves counter untouched", func(t *testing.T) {
		e, mr := newEngine(t, 20)
		for i := 0; i < 20; i++ {
			require.NoError(t, e.CheckAndConsume(ctx, "h", 1))
		}

		err := e.CheckAndConsume(ctx, "h", 1)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.Equal(t, 20, counterValue(t, mr, e.Key("h")))
	})

	t.Run("batch reservation is all or nothing", func(t *testing.T) {
		e, mr := newEngine(t, 10)
		require.NoError(t, e.CheckAndConsume(ctx, "h", 8))

		err := e.CheckAndConsume(ctx, "h", 5)
		assert.ErrorIs(t, err, ErrQuotaExceeded)
		assert.Equal(t, 8, counterValue(t, mr, e.Key("h")))
	})

	t.Run("rejects non-positive n", func(t *testing.T) {
		e, _ := newEngine(t, 20)
		assert.Error(t, e.CheckAndConsume(ctx, "h", 0))
		assert.Error(t, e.CheckAndConsume(ctx, "h", -2))
	})

	t.Run("sets a TTL on the counter", func(t *testing.T) {
		e, mr := newEngine(t, 20)
		require.NoError(t, e.CheckAndConsume(ctx, "h", 1))
		assert.Greater(t, mr.TTL(e.Key("h")), time.Duration(0))
	})
}

func TestRefund(t *testing.T) {
	ctx := context.Background()

	t.Run("refund decrements by min(n, value)", func(t *testing.T) {
		e, mr := newEngine(t, 20)
		require.NoError(t, e.CheckAndConsume(ctx, "h", 5))

		require.NoError(t, e.Refund(ctx, "h", 2))
		assert.Equal(t, 3, counterValue(t, mr, e.Key("h")))

		require.NoError(t, e.Refund(ctx, "h", 100))
		assert.Equal(t, 0, counterValue(t, mr, e.Key("h")))
	})

	t.Run("refund preserves TTL", func(t *testing.T) {
		e, mr := newEngine(t, 20)
		require.NoError(t, e.CheckAndConsume(ctx, "h", 5))
		before := mr.TTL(e.Key("h"))

		require.NoError(t, e.Refund(ctx, "h", 1))
		assert.Equal(t, before, mr.TTL(e.Key("h")))
	})

	t.Run("refund on a missing key stays at zero", func(t *testing.T) {
		e, mr := newEngine(t, 20)
		require.NoError(t, e.Refund(ctx, "h", 3))
		assert.Equal(t, 0, counterValue(t, mr, e.Key("h")))
	})

	t.Run("rejects non-positive n", func(t *testing.T) {
		e, _ := newEngine(t, 20)
		assert.Error(t, e.Refund(ctx, "h", 0))
	})
}

func TestSecondsUntilNextMonday(t *testing.T) {
	e, _ := newEngine(t, 20)

	cases := []struct {
		name string
		now  time.Time
		want int
	}{
		{
			name: "mid-week",
			now:  time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC), // Wednesday
			want: int((5*24 - 12) * 3600),
		},
		{
			name: "monday rolls to next monday",
			now:  time.Date(2026, 8, 24, 0, 0, 1, 0, time.UTC),
			want: 7*24*3600 - 1,
		},
		{
			name: "sunday just before midnight",
			now:  time.Date(2026, 8, 30, 23, 59, 59, 0, time.UTC),
			want: 1,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			e.WithClock(func() time.Time { return tc.now })
			assert.Equal(t, tc.want, e.secondsUntilNextMonday())
		})
	}
}
