package middleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RemoteIP returns the host part of the connection's remote address. Client
// supplied headers are ignored.
func RemoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// ForwardedIP returns the address a reverse proxy reported in X-Real-IP or
// the first hop of X-Forwarded-For, falling back to RemoteIP. Only use it
// when every request arrives through a proxy that overwrites those headers.
func ForwardedIP(r *http.Request) string {
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	return RemoteIP(r)
}

// ClientIP picks the key function for rate limiting.
func ClientIP(trustProxy bool) func(*http.Request) string {
	if trustProxy {
		return ForwardedIP
	}
	return RemoteIP
}

// RateLimiter allows at most limit requests per key within any span of
// period. It keeps the times of accepted requests; rejected requests are not
// recorded, so a client hammering the limit is let back in as soon as its
// oldest accepted request ages out.
type RateLimiter struct {
	limit  int
	period time.Duration
	now    func() time.Time

	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewRateLimiter(limit int, period time.Duration) *RateLimiter {
	return &RateLimiter{
		limit:  limit,
		period: period,
		now:    time.Now,
		hits:   make(map[string][]time.Time),
	}
}

// Allow records a request for key if it fits under the limit. When it does
// not, Allow returns false and how long until the next request would fit.
func (rl *RateLimiter) Allow(key string) (bool, time.Duration) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	recent := rl.recent(key, now)
	if len(recent) >= rl.limit {
		rl.hits[key] = recent
		wait := rl.period
		if len(recent) > 0 {
			wait = recent[0].Add(rl.period).Sub(now)
		}
		return false, wait
	}
	rl.hits[key] = append(recent, now)
	return true, 0
}

// recent returns the hits for key still inside the period ending at now.
// Hits are appended in order, so the expired ones form a prefix.
func (rl *RateLimiter) recent(key string, now time.Time) []time.Time {
	hits := rl.hits[key]
	cutoff := now.Add(-rl.period)
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	return hits[i:]
}

// Cleanup forgets keys with no requests left inside the period.
func (rl *RateLimiter) Cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key := range rl.hits {
		if recent := rl.recent(key, now); len(recent) == 0 {
			delete(rl.hits, key)
		} else {
			rl.hits[key] = recent
		}
	}
}

// RunCleanup calls Cleanup every interval until ctx is done.
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.Cleanup()
		}
	}
}

// RateLimit rejects requests over the limiter's budget with 429 and a
// Retry-After in whole seconds. Requests are keyed by keyFunc, usually one
// returned by ClientIP.
func RateLimit(limiter *RateLimiter, keyFunc func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ok, wait := limiter.Allow(keyFunc(r))
			if !ok {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(wait)))
				writeError(w, http.StatusTooManyRequests, "too many requests", "rate_limited")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(wait time.Duration) int {
	return max(1, int(math.Ceil(wait.Seconds())))
}
