// Package ratelimiter throttles requests per client IP.
package ratelimiter

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/johndosdos/chatroom/internal/metrics"
)

// CleanupOpts controls how long an idle IP keeps its bucket.
type CleanupOpts struct {
	TTL      time.Duration
	Interval time.Duration
}

type ipAddr string

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPRateLimiter hands out one token bucket per client IP.
type IPRateLimiter struct {
	mu      sync.Mutex
	buckets map[ipAddr]*bucket

	limit  rate.Limit
	burst  int
	window time.Duration
	opts   CleanupOpts
	logger zerolog.Logger

	stop chan struct{}
	done chan struct{}
}

// NewIPRateLimiter allows requests per window for each IP. Idle buckets are
// dropped after cleanupOpts.TTL. Call Stop to end the cleanup goroutine.
func NewIPRateLimiter(requests int, window time.Duration, cleanupOpts CleanupOpts, logger zerolog.Logger) *IPRateLimiter {
	rl := &IPRateLimiter{
		buckets: make(map[ipAddr]*bucket),
		limit:   rate.Every(window / time.Duration(requests)),
		burst:   requests,
		window:  window,
		opts:    cleanupOpts,
		logger:  logger.With().Str("component", "ip_limiter").Logger(),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}

	go rl.evictLoop()

	return rl
}

// Stop ends the cleanup goroutine and waits for it to exit. It is safe to
// call more than once.
func (rl *IPRateLimiter) Stop() {
	select {
	case <-rl.stop:
	default:
		close(rl.stop)
	}
	<-rl.done
}

func (rl *IPRateLimiter) evictLoop() {
	defer close(rl.done)

	ticker := time.NewTicker(rl.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			if n := rl.evict(now); n > 0 {
				rl.logger.Debug().Int("evicted", n).Msg("dropped idle rate limit buckets")
			}
		}
	}
}

// evict removes buckets idle for longer than the TTL and reports how many.
func (rl *IPRateLimiter) evict(now time.Time) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	n := 0
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > rl.opts.TTL {
			delete(rl.buckets, ip)
			n++
		}
	}
	return n
}

// GetClientIP keys on the connection's address. Proxy headers are not read
// here; chi's RealIP middleware has already folded a trusted one into
// RemoteAddr.
func (rl *IPRateLimiter) GetClientIP(r *http.Request) ipAddr {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		rl.logger.Debug().Str("remote_addr", r.RemoteAddr).Msg("remote address has no port")
		return ipAddr(r.RemoteAddr)
	}

	return ipAddr(host)
}

// Allow takes one token from ip's bucket.
func (rl *IPRateLimiter) Allow(ip ipAddr) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = time.Now()

	return b.limiter.Allow()
}

// Middleware answers 429 with a JSON detail once an IP runs out of tokens.
func (rl *IPRateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil((rl.window / time.Duration(rl.burst)).Seconds())))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := rl.GetClientIP(r)
		if rl.Allow(ip) {
			next.ServeHTTP(w, r)
			return
		}

		metrics.RateLimitHits.WithLabelValues(r.URL.Path).Inc()
		rl.logger.Warn().
			Str("ip", string(ip)).
			Str("path", r.URL.Path).
			Str("method", r.Method).
			Msg("rate limit exceeded")

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Retry-After", retryAfter)
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Too many requests. Try again later."})
	})
}
