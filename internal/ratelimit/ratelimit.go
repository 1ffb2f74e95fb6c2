// Package ratelimit provides per-client request quotas behind a single
// Limiter interface so the backing strategy can be swapped per deployment.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is how long the client should wait before the quota frees up.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	wait := d.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// Limiter counts one request for key and reports whether it may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}
