package api

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/tvmmachans/Customo/internal/infrastructure/config"
	"github.com/tvmmachans/Customo/internal/infrastructure/logging"
	"github.com/tvmmachans/Customo/internal/metrics"
)

// limiterCleanupInterval is how often idle client limiters are evicted.
const limiterCleanupInterval = 5 * time.Minute

type clientLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// rateLimiter applies one RateLimitRule per client address. A rule allowing
// MaxRequests per window becomes a token bucket of that burst refilled at
// MaxRequests/window.
type rateLimiter struct {
	scope   string
	enabled bool
	limit   rate.Limit
	burst   int
	metrics metrics.Recorder
	logger  *logging.Logger

	mu      sync.Mutex
	clients map[string]*clientLimiter
	now     func() time.Time
}

func newRateLimiter(scope string, rule config.RateLimitRule, rec metrics.Recorder, logger *logging.Logger) *rateLimiter {
	rl := &rateLimiter{
		scope:   scope,
		enabled: rule.Enabled && rule.MaxRequests > 0 && rule.WindowSeconds > 0,
		burst:   rule.MaxRequests,
		metrics: rec,
		logger:  logger,
		clients: make(map[string]*clientLimiter),
		now:     time.Now,
	}
	if rl.enabled {
		rl.limit = rate.Limit(float64(rule.MaxRequests) / rule.Window().Seconds())
	}
	return rl
}

// middleware rejects requests over the client's budget with 429.
func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	if !rl.enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientAddr(r)
		if !rl.allow(client) {
			rl.metrics.RecordRateLimited(rl.scope)
			rl.logger.Warn("rate limit exceeded", "scope", rl.scope, "client", client)

			retryAfter := int(math.Ceil(1.0 / float64(rl.limit)))
			w.Header().Set("Retry-After", strconv.Itoa(max(retryAfter, 1)))
			writeError(w, http.StatusTooManyRequests, "Too many requests from this IP, please try again later.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (rl *rateLimiter) allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cl, ok := rl.clients[client]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = cl
	}
	cl.lastAccess = now
	return cl.limiter.AllowN(now, 1)
}

// cleanupLoop evicts idle clients until ctx is cancelled.
func (rl *rateLimiter) cleanupLoop(ctx context.Context) {
	if !rl.enabled {
		return
	}
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

// cleanup drops limiters idle for longer than twice the cleanup interval.
func (rl *rateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-2 * limiterCleanupInterval)
	for client, cl := range rl.clients {
		if cl.lastAccess.Before(cutoff) {
			delete(rl.clients, client)
		}
	}
}

func (rl *rateLimiter) size() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	return len(rl.clients)
}

// clientAddr returns the request's remote host without its port.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
