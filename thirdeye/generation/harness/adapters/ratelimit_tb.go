package adapters

import (
	"context"
	"sync"
	"time"

	ports "github.com/ZanzyTHEbar/third-eye/thirdeye/generation/harness/ports"
)

// TokenBucket paces backend calls per key. Acquire waits for a permit
// instead of failing, so a burst of seed dialogues is slowed down rather
// than rejected.
type TokenBucket struct {
	mu       sync.Mutex
	capacity float64
	interval time.Duration // time to earn one permit back
	keys     map[string]*permits
	now      func() time.Time
}

type permits struct {
	available float64
	updated   time.Time
}

// NewTokenBucket allows bursts of capacity calls per key and one more call
// every interval after that. A non-positive interval disables pacing.
func NewTokenBucket(capacity int, interval time.Duration) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	return &TokenBucket{
		capacity: float64(capacity),
		interval: interval,
		keys:     make(map[string]*permits),
		now:      time.Now,
	}
}

// Acquire blocks until key has a permit or ctx is done. Permits are earned
// back over time, so release does nothing.
func (tb *TokenBucket) Acquire(ctx context.Context, key string) (release func(), err error) {
	for {
		wait := tb.reserve(key)
		if wait <= 0 {
			return func() {}, nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, &RateLimitError{Key: key, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}

// reserve takes a permit for key and returns zero, or returns how long until
// one is earned.
func (tb *TokenBucket) reserve(key string) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.interval <= 0 {
		return 0
	}

	now := tb.now()
	p, ok := tb.keys[key]
	if !ok {
		p = &permits{available: tb.capacity, updated: now}
		tb.keys[key] = p
	}

	earned := float64(now.Sub(p.updated)) / float64(tb.interval)
	p.available = min(tb.capacity, p.available+earned)
	p.updated = now

	if p.available >= 1 {
		p.available--
		return 0
	}
	return max(time.Duration((1-p.available)*float64(tb.interval)), time.Nanosecond)
}

// RateLimitError is returned when waiting for a permit is cut short.
type RateLimitError struct {
	Key string
	Err error
}

func (e *RateLimitError) Error() string {
	return "rate limit wait for " + e.Key + " aborted: " + e.Err.Error()
}

func (e *RateLimitError) Unwrap() error { return e.Err }

var _ ports.RateLimiter = (*TokenBucket)(nil)
