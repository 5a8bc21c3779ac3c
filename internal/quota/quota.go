// Package quota enforces the per-client weekly image quota. Single
// translations and batches share the same counter: one key per
// (hashed client IP, ISO week), consumed atomically with a ceiling check
// and refunded exactly on failure.
package quota

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/toonslate/toonslate-backend/internal/redisstore"
)

// ErrQuotaExceeded is returned when a reservation would push the weekly
// counter past the limit.
var ErrQuotaExceeded = errors.New("weekly image quota exceeded")

// consumeScript performs the combined read-check-increment-expire atomically.
// Returns -1 when the reservation would exceed the limit.
const consumeScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local requested = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
if current + requested > limit then
    return -1
end
redis.call("INCRBY", KEYS[1], requested)
redis.call("EXPIRE", KEYS[1], ARGV[3])
return current + requested
`

// refundScript decrements without going below zero, preserving the TTL.
const refundScript = `
local current = tonumber(redis.call("GET", KEYS[1]) or "0")
local refund = tonumber(ARGV[1])
local new_val = current - refund
if new_val < 0 then
    new_val = 0
end
redis.call("SET", KEYS[1], new_val, "KEEPTTL")
return new_val
`

// Engine reserves and refunds weekly image quota.
type Engine struct {
	store  *redisstore.Client
	secret string
	limit  int
	now    func() time.Time
}

// New builds an Engine. limit is the weekly image allowance per client.
func New(store *redisstore.Client, secret string, limit int) *Engine {
	return &Engine{store: store, secret: secret, limit: limit, now: time.Now}
}

// WithClock replaces the engine's clock (tests).
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// HashIP derives the quota identity from a client IP: the first 16 hex
// characters of SHA-256(secret ":" ip).
func (e *Engine) HashIP(ip string) string {
	sum := sha256.Sum256([]byte(e.secret + ":" + ip))
	return hex.EncodeToString(sum[:])[:16]
}

// Key returns the counter key for the current ISO week.
func (e *Engine) Key(ipHash string) string {
	year, week := e.now().UTC().ISOWeek()
	return fmt.Sprintf("usage:images:%s:%d-W%02d", ipHash, year, week)
}

// CheckAndConsume atomically reserves n images against the weekly limit.
// Returns ErrQuotaExceeded when the reservation would cross the limit; the
// counter is untouched in that case.
func (e *Engine) CheckAndConsume(ctx context.Context, ipHash string, n int) error {
	if n <= 0 {
		return fmt.Errorf("quota consume count must be positive, got %d", n)
	}

	res, err := e.store.Eval(ctx, consumeScript, []string{e.Key(ipHash)},
		n, e.limit, e.secondsUntilNextMonday())
	if err != nil {
		return fmt.Errorf("quota consume: %w", err)
	}

	if val, ok := res.(int64); ok && val == -1 {
		return ErrQuotaExceeded
	}
	return nil
}

// Refund atomically returns n images to the client, never dropping the
// counter below zero and preserving the key's TTL.
func (e *Engine) Refund(ctx context.Context, ipHash string, n int) error {
	if n <= 0 {
		return fmt.Errorf("quota refund count must be positive, got %d", n)
	}

	if _, err := e.store.Eval(ctx, refundScript, []string{e.Key(ipHash)}, n); err != nil {
		return fmt.Errorf("quota refund: %w", err)
	}
	return nil
}

// secondsUntilNextMonday returns the TTL that expires the counter at the
// next Monday 00:00 UTC (at least 1 second).
func (e *Engine) secondsUntilNextMonday() int {
	now := e.now().UTC()

	// time.Weekday has Sunday=0; ISO weeks start on Monday.
	daysAhead := (8 - int(now.Weekday())) % 7
	if daysAhead == 0 {
		daysAhead = 7
	}
	next := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC).
		AddDate(0, 0, daysAhead)

	secs := int(next.Sub(now).Seconds())
	if secs < 1 {
		secs = 1
	}
	return secs
}
