package middleware

import (
	"math"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/EmpoweredVote/watchlist-backend/internal/apperror"
	"github.com/EmpoweredVote/watchlist-backend/internal/httputil"
	"github.com/EmpoweredVote/watchlist-backend/internal/metrics"
	"github.com/EmpoweredVote/watchlist-backend/internal/ratelimit"
)

// RateLimitOptions describes one limiter mounted on a route group.
type RateLimitOptions struct {
	Name    string // metrics label
	Message string // 429 body message
	Metrics *metrics.Metrics
	Now     func() time.Time
}

// RateLimit counts every request against the client IP. Limiter failures
// let the request through.
func RateLimit(limiter ratelimit.Limiter, opts RateLimitOptions, rs *httputil.Responder) func(http.Handler) http.Handler {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	rejected := apperror.RateLimited(opts.Message)
	log := rs.Log.Named("ratelimit")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)

			d, err := limiter.Allow(r.Context(), key)
			if err != nil {
				log.Warn("limiter unavailable, allowing request",
					zap.String("limiter", opts.Name),
					zap.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}

			wait := d.RetryAfter(now())
			h := w.Header()
			h.Set("RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("RateLimit-Reset", strconv.Itoa(ceilSeconds(wait)))

			if !d.Allowed {
				opts.Metrics.RateLimited(opts.Name)
				log.Info("rate limit exceeded",
					zap.String("limiter", opts.Name),
					zap.String("client", key),
					zap.String("path", r.URL.Path),
				)
				h.Set("Retry-After", strconv.Itoa(ceilSeconds(wait)))
				rs.Error(w, r, rejected)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the request's remote host without the port. RemoteAddr is the
// socket peer unless chi's RealIP ran first (TRUST_PROXY).
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}
