package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
	"golang.org/x/time/rate"
)

// RateLimiter is a token bucket per client address.
type RateLimiter struct {
	perMin  int
	limit   rate.Limit
	burst   int
	idle    time.Duration
	clients *xsync.MapOf[string, *visitor]
	now     func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen atomic.Int64 // unix nanos
}

// NewRateLimiter allows perMinute requests per client with bursts of burst.
// Clients idle for more than ten minutes are forgotten by Sweep.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perMin:  perMinute,
		limit:   rate.Limit(float64(perMinute) / 60),
		burst:   burst,
		idle:    10 * time.Minute,
		clients: xsync.NewMapOf[string, *visitor](),
		now:     time.Now,
	}
}

// Allow reports whether client may make a request now and consumes a token if so.
func (rl *RateLimiter) Allow(client string) bool {
	now := rl.now()
	v, _ := rl.clients.LoadOrCompute(client, func() *visitor {
		return &visitor{limiter: rate.NewLimiter(rl.limit, rl.burst)}
	})
	v.lastSeen.Store(now.UnixNano())
	return v.limiter.AllowN(now, 1)
}

// Sweep forgets idle clients and returns how many were removed.
func (rl *RateLimiter) Sweep() int {
	cutoff := rl.now().Add(-rl.idle).UnixNano()
	removed := 0
	rl.clients.Range(func(client string, v *visitor) bool {
		if v.lastSeen.Load() < cutoff {
			rl.clients.Delete(client)
			removed++
		}
		return true
	})
	return removed
}

// Run sweeps idle clients every minute until ctx is cancelled.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Middleware rejects requests over the limit with 429. It keys on
// r.RemoteAddr, so it belongs after TrustedRealIP.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := r.RemoteAddr
		if a, ok := clientAddr(r.RemoteAddr); ok {
			client = a.String()
		}

		if !rl.Allow(client) {
			w.Header().Set("Retry-After", rl.retryAfter())
			writeError(w, http.StatusTooManyRequests, "RATE001", "rate limit exceeded")
			return
		}

		next.ServeHTTP(w, r)
	})
}

// retryAfter is the wait for one token, in whole seconds.
func (rl *RateLimiter) retryAfter() string {
	if rl.perMin <= 0 {
		return "60"
	}
	return strconv.Itoa(max((60+rl.perMin-1)/rl.perMin, 1))
}
