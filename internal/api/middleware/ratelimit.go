package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/bizops/internal/api/dto"
)

// RateLimiter is a per-key sliding window counter.
type RateLimiter struct {
	requests int
	window   time.Duration
	now      func() time.Time

	mu      sync.Mutex
	clients map[string][]time.Time
}

func NewRateLimiter(requests int, windowSeconds int) *RateLimiter {
	if requests <= 0 {
		requests = 60
	}
	if windowSeconds <= 0 {
		windowSeconds = 60
	}
	return &RateLimiter{
		requests: requests,
		window:   time.Duration(windowSeconds) * time.Second,
		now:      time.Now,
		clients:  make(map[string][]time.Time),
	}
}

// Allow records a hit for key and reports whether it fits in the window,
// how many hits remain, and when the window frees up.
func (rl *RateLimiter) Allow(key string) (bool, int, time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	cutoff := now.Add(-rl.window)

	hits := rl.clients[key]
	i := 0
	for i < len(hits) && !hits[i].After(cutoff) {
		i++
	}
	hits = hits[i:]

	if len(hits) >= rl.requests {
		rl.clients[key] = hits
		return false, 0, hits[0].Add(rl.window)
	}

	hits = append(hits, now)
	rl.clients[key] = hits
	return true, rl.requests - len(hits), now.Add(rl.window)
}

// Sweep drops keys with no hits inside the window.
func (rl *RateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	cutoff := rl.now().Add(-rl.window)
	for key, hits := range rl.clients {
		if len(hits) == 0 || !hits[len(hits)-1].After(cutoff) {
			delete(rl.clients, key)
		}
	}
}

// KeyFunc picks the bucket a request counts against.
type KeyFunc func(r *http.Request) string

// ByIP buckets on the client address.
func ByIP(r *http.Request) string {
	return getClientIP(r)
}

// ByUser buckets on the authenticated user, falling back to the address.
func ByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != uuid.Nil {
		return "user:" + userID.String()
	}
	return getClientIP(r)
}

// RateLimit answers 429 once a key exceeds the limiter's budget.
func RateLimit(limiter *RateLimiter, key KeyFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining, reset := limiter.Allow(key(r))

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limiter.requests))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

			if !allowed {
				retry := int64(reset.Sub(limiter.now()).Seconds()) + 1
				w.Header().Set("Retry-After", strconv.FormatInt(retry, 10))
				dto.Error(w, http.StatusTooManyRequests, "Too many requests.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
