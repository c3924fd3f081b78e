package ratelimiter

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestGetClientIP(t *testing.T) {
	rl := NewIPRateLimiter(5, time.Minute, CleanupOpts{TTL: time.Minute, Interval: time.Minute}, zerolog.Nop())
	defer rl.Stop()

	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		want       ipAddr
	}{
		{"remote_addr", "10.0.0.1:5555", "", "10.0.0.1"},
		{"forwarded_header_ignored", "10.0.0.1:5555", "1.1.1.1, 2.2.2.2", "10.0.0.1"},
		{"bad_remote_addr", "garbage", "", "garbage"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			assert.Equal(t, tt.want, rl.GetClientIP(req))
		})
	}
}

func TestMiddleware(t *testing.T) {
	rl := NewIPRateLimiter(2, time.Hour, CleanupOpts{TTL: time.Hour, Interval: time.Hour}, zerolog.Nop())
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for j := 0; j < 3; j++ {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)

	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "1800", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"detail":"Too many requests. Try again later."}`, rec.Body.String())

	// A different IP has its own bucket.
	req = httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = "10.0.0.2:1234"
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCleanup(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Hour, CleanupOpts{TTL: 10 * time.Millisecond, Interval: 10 * time.Millisecond}, zerolog.Nop())
	defer rl.Stop()

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))

	assert.Eventually(t, func() bool {
		rl.mu.Lock()
		defer rl.mu.Unlock()
		return len(rl.buckets) == 0
	}, time.Second, 10*time.Millisecond)

	assert.True(t, rl.Allow("10.0.0.1"))
}

func TestForwardedHeaderDoesNotResetBucket(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Hour, CleanupOpts{TTL: time.Hour, Interval: time.Hour}, zerolog.Nop())
	defer rl.Stop()

	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 2)
	for _, xff := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodPost, "/login", nil)
		req.RemoteAddr = "10.0.0.1:1234"
		req.Header.Set("X-Forwarded-For", xff)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests}, codes)
}

func TestEvict(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Hour, CleanupOpts{TTL: time.Minute, Interval: time.Hour}, zerolog.Nop())
	defer rl.Stop()

	rl.Allow("10.0.0.1")
	rl.Allow("10.0.0.2")

	assert.Equal(t, 0, rl.evict(time.Now()))
	assert.Equal(t, 2, rl.evict(time.Now().Add(2*time.Minute)))
}

func TestStopTwice(t *testing.T) {
	rl := NewIPRateLimiter(1, time.Hour, CleanupOpts{TTL: time.Minute, Interval: time.Minute}, zerolog.Nop())
	rl.Stop()
	rl.Stop()
}
