package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// TokenBucket refills Max tokens evenly over Window per key.
type TokenBucket struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	max     int
	window  time.Duration
	every   time.Duration
	now     func() time.Time
}

func NewTokenBucket(max int, window time.Duration) *TokenBucket {
	return &TokenBucket{
		buckets: make(map[string]*bucket),
		max:     max,
		window:  window,
		every:   window / time.Duration(max),
		now:     time.Now,
	}
}

func (t *TokenBucket) limiter(key string, now time.Time) *rate.Limiter {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, ok := t.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rate.Every(t.every), t.max)}
		t.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func (t *TokenBucket) Allow(_ context.Context, key string) (Decision, error) {
	now := t.now()
	l := t.limiter(key, now)

	allowed := l.AllowN(now, 1)
	tokens := l.TokensAt(now)
	if tokens < 0 {
		tokens = 0
	}

	missing := float64(t.max) - tokens
	resetAt := now.Add(time.Duration(missing * float64(t.every)))

	return Decision{
		Allowed:   allowed,
		Limit:     t.max,
		Remaining: int(tokens),
		ResetAt:   resetAt,
	}, nil
}

// Sweep drops keys idle for a full window. Their buckets have refilled, so a
// fresh limiter is indistinguishable.
func (t *TokenBucket) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	removed := 0
	for key, b := range t.buckets {
		if now.Sub(b.lastSeen) >= t.window {
			delete(t.buckets, key)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps idle keys every interval until ctx is done.
func (t *TokenBucket) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				t.Sweep()
			}
		}
	}()
}
