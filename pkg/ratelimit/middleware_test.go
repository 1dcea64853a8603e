package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"raffle/internal/config"
)

func TestRegistry_Allow(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRegistry(Config{RPS: 1, Burst: 2, MaxAge: time.Minute})
	r.now = func() time.Time { return now }

	ok, remaining := r.Allow("a")
	assert.True(t, ok)
	assert.Equal(t, 1, remaining)

	ok, _ = r.Allow("a")
	assert.True(t, ok)
	ok, _ = r.Allow("a")
	assert.False(t, ok, "burst exhausted")

	ok, _ = r.Allow("b")
	assert.True(t, ok, "clients are limited independently")

	now = now.Add(time.Second)
	ok, _ = r.Allow("a")
	assert.True(t, ok, "tokens refill over time")
}

func TestRegistry_Cleanup(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRegistry(Config{RPS: 1, Burst: 1, MaxAge: time.Minute})
	r.now = func() time.Time { return now }

	r.Allow("old")
	now = now.Add(50 * time.Second)
	r.Allow("new")
	now = now.Add(20 * time.Second)

	assert.Equal(t, 1, r.Cleanup())
	assert.Equal(t, 1, r.Len())
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(NewRegistry(Config{RPS: 1, Burst: 1, MaxAge: time.Minute}).Middleware())
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "1", w.Header().Get("Retry-After"))
}

func TestFromConfig(t *testing.T) {
	cfg := FromConfig(config.RateLimitConfig{RPS: 5, CleanupInterval: 30, MaxAge: 60})
	assert.Equal(t, 5.0, cfg.RPS)
	assert.Equal(t, 20, cfg.Burst)
	assert.Equal(t, 30*time.Second, cfg.CleanupInterval)
	assert.Equal(t, time.Minute, cfg.MaxAge)
}
