package middleware

import (
	"context"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/uibattles/uibattles-api/internal/api/shared"
	"github.com/uibattles/uibattles-api/internal/platform/logger"
	"golang.org/x/time/rate"
)

// Rate limiter defaults.
const (
	DefaultRequestsPerMinute = 3
	DefaultCleanupInterval   = 5 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a per client IP token bucket. Idle buckets are dropped by
// Cleanup, which the owner runs for the lifetime of the server.
type RateLimiter struct {
	limit  rate.Limit
	burst  int
	idle   time.Duration
	now    func() time.Time
	logger *slog.Logger

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewRateLimiter creates a RateLimiter allowing perMinute requests per
// minute with the given burst. Non-positive values select the defaults.
func NewRateLimiter(perMinute, burst int, log *slog.Logger) *RateLimiter {
	if perMinute <= 0 {
		perMinute = DefaultRequestsPerMinute
	}
	if burst <= 0 {
		burst = perMinute
	}
	if log == nil {
		log = slog.Default()
	}
	return &RateLimiter{
		limit:    rate.Limit(float64(perMinute) / 60),
		burst:    burst,
		idle:     time.Minute,
		now:      time.Now,
		logger:   log.With(slog.String("component", "rate_limiter")),
		visitors: make(map[string]*visitor),
	}
}

// Allow reports whether a request from key may proceed and, if not, how
// long until the next token is available.
func (l *RateLimiter) Allow(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now

	res := v.limiter.ReserveN(now, 1)
	if !res.OK() {
		return false, time.Minute
	}
	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// Middleware rejects requests over the limit with 429 and a Retry-After header.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		ok, retryAfter := l.Allow(ip)
		if !ok {
			logger.FromContextOrDefault(r.Context(), l.logger).Warn("rate limit exceeded",
				slog.String("client_ip", ip),
				slog.Duration("retry_after", retryAfter))
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(retryAfter.Seconds()))))
			shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Cleanup drops idle buckets every interval until ctx is done.
func (l *RateLimiter) Cleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanupInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := l.sweep(); n > 0 {
				l.logger.Debug("dropped idle rate limit buckets", slog.Int("count", n))
			}
		}
	}
}

// sweep removes buckets idle for longer than the refill window and returns
// how many were removed.
func (l *RateLimiter) sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.idle)
	removed := 0
	for key, v := range l.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// clientIP returns the host part of RemoteAddr. chi's RealIP middleware has
// already rewritten it from the forwarding headers.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
