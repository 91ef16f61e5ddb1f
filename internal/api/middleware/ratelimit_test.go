package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_Window(t *testing.T) {
	rl := NewRateLimiter(2, 60)
	clock := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return clock }

	ok, remaining, _ := rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, remaining, _ = rl.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 0, remaining)

	ok, _, reset := rl.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, clock.Add(time.Minute), reset)

	ok, _, _ = rl.Allow("b")
	assert.True(t, ok, "keys are independent")

	clock = clock.Add(61 * time.Second)
	ok, _, _ = rl.Allow("a")
	assert.True(t, ok, "window slides")

	clock = clock.Add(5 * time.Minute)
	rl.Sweep()
	assert.Empty(t, rl.clients)
}

func TestRateLimit_Middleware(t *testing.T) {
	handler := RateLimit(NewRateLimiter(1, 60), ByIP)(okHandler())

	req := httptest.NewRequest("POST", "/auth/login", nil)
	req.RemoteAddr = "10.0.0.1:5555"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "Too many requests.", decodeMessage(t, rec))
}

func TestKeys(t *testing.T) {
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "192.168.1.9:1234"
	assert.Equal(t, "192.168.1.9", ByIP(req))
	assert.Equal(t, "192.168.1.9", ByUser(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ByIP(req))

	id := uuid.New()
	req = req.WithContext(context.WithValue(req.Context(), UserIDKey, id))
	assert.Equal(t, "user:"+id.String(), ByUser(req))
}
