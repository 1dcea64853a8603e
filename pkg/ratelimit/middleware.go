package ratelimit

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"raffle/internal/config"
	"raffle/pkg/metrics"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Config struct {
	RPS             float64
	Burst           int
	CleanupInterval time.Duration
	MaxAge          time.Duration
}

func DefaultConfig() Config {
	return Config{
		RPS:             10.0,
		Burst:           20,
		CleanupInterval: 5 * time.Minute,
		MaxAge:          10 * time.Minute,
	}
}

// FromConfig converts the service configuration; intervals there are in
// seconds.
func FromConfig(cfg config.RateLimitConfig) Config {
	out := DefaultConfig()
	if cfg.RPS > 0 {
		out.RPS = cfg.RPS
	}
	if cfg.Burst > 0 {
		out.Burst = cfg.Burst
	}
	if cfg.CleanupInterval > 0 {
		out.CleanupInterval = time.Duration(cfg.CleanupInterval) * time.Second
	}
	if cfg.MaxAge > 0 {
		out.MaxAge = time.Duration(cfg.MaxAge) * time.Second
	}
	return out
}

// Registry holds one token bucket per client key.
type Registry struct {
	cfg      Config
	mu       sync.Mutex
	limiters map[string]*clientLimiter
	now      func() time.Time
}

func NewRegistry(cfg Config) *Registry {
	return &Registry{
		cfg:      cfg,
		limiters: make(map[string]*clientLimiter),
		now:      time.Now,
	}
}

// Allow reports whether key may proceed and the tokens it has left.
func (r *Registry) Allow(key string) (bool, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	l, ok := r.limiters[key]
	if !ok {
		l = &clientLimiter{limiter: rate.NewLimiter(rate.Limit(r.cfg.RPS), r.cfg.Burst)}
		r.limiters[key] = l
	}
	l.lastSeen = now

	allowed := l.limiter.AllowN(now, 1)
	remaining := int(l.limiter.TokensAt(now))
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// Cleanup drops clients idle for longer than MaxAge.
func (r *Registry) Cleanup() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	removed := 0
	for key, l := range r.limiters {
		if now.Sub(l.lastSeen) > r.cfg.MaxAge {
			delete(r.limiters, key)
			removed++
		}
	}
	return removed
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.limiters)
}

// Run calls Cleanup every CleanupInterval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Cleanup()
		}
	}
}

func (r *Registry) Middleware() gin.HandlerFunc {
	limit := strconv.Itoa(int(r.cfg.RPS))

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		if clientIP == "" {
			clientIP = c.RemoteIP()
		}

		allowed, remaining := r.Allow(clientIP)
		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			metrics.IncRateLimit("limited")
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limit exceeded",
				"error_code": "RATE_LIMIT_EXCEEDED",
			})
			return
		}

		metrics.IncRateLimit("allowed")
		c.Next()
	}
}
