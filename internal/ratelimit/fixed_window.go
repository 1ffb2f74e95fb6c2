package ratelimit

import (
	"context"
	"sync"
	"time"
)

type windowCounter struct {
	count   int
	resetAt time.Time
}

// FixedWindow allows Max requests per key in each Window. State is process
// local; run one instance or use Redis for shared counters.
type FixedWindow struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	counters map[string]*windowCounter
	now      func() time.Time
}

func NewFixedWindow(max int, window time.Duration) *FixedWindow {
	return &FixedWindow{
		max:      max,
		window:   window,
		counters: make(map[string]*windowCounter),
		now:      time.Now,
	}
}

func (f *FixedWindow) Allow(_ context.Context, key string) (Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	c, ok := f.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &windowCounter{resetAt: now.Add(f.window)}
		f.counters[key] = c
	}
	c.count++

	remaining := f.max - c.count
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   c.count <= f.max,
		Limit:     f.max,
		Remaining: remaining,
		ResetAt:   c.resetAt,
	}, nil
}

// Sweep drops counters whose window has ended.
func (f *FixedWindow) Sweep() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	removed := 0
	for key, c := range f.counters {
		if !now.Before(c.resetAt) {
			delete(f.counters, key)
			removed++
		}
	}
	return removed
}

// StartCleanup sweeps expired counters every interval until ctx is done.
func (f *FixedWindow) StartCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				f.Sweep()
			}
		}
	}()
}
