package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

// RateLimitConfig bounds request throughput per client.
type RateLimitConfig struct {
	RequestsPerSecond float64
	BurstSize         int
}

// DefaultRateLimitConfig returns the stock 100 rps / 200 burst limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		BurstSize:         200,
	}
}

// bucket is one caller's token balance. Refill happens lazily on each
// take, pro-rated by the time elapsed since the previous one.
type bucket struct {
	mu       sync.Mutex
	balance  float64
	capacity float64
	rate     float64
	seen     time.Time
}

func newBucket(rate float64, burst int) *bucket {
	return &bucket{
		balance:  float64(burst),
		capacity: float64(burst),
		rate:     rate,
		seen:     time.Now(),
	}
}

func (b *bucket) take(now time.Time) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balance = math.Min(b.capacity, b.balance+now.Sub(b.seen).Seconds()*b.rate)
	b.seen = now
	if b.balance < 1 {
		return false
	}
	b.balance--
	return true
}

// wait estimates whole seconds until the next token accrues.
func (b *bucket) wait() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.rate <= 0 {
		return 1
	}
	return int((1-b.balance)/b.rate) + 1
}

// RateLimit applies a per-client token bucket. The API is anonymous,
// so the client IP is the only workable key.
func RateLimit(cfg RateLimitConfig) echo.MiddlewareFunc {
	var (
		mu      sync.Mutex
		buckets = make(map[string]*bucket)
	)
	lookup := func(key string) *bucket {
		mu.Lock()
		defer mu.Unlock()
		b, ok := buckets[key]
		if !ok {
			b = newBucket(cfg.RequestsPerSecond, cfg.BurstSize)
			buckets[key] = b
		}
		return b
	}
	limit := strconv.FormatFloat(cfg.RequestsPerSecond, 'f', 0, 64)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			b := lookup(c.RealIP())
			res := c.Response()
			res.Header().Set("X-RateLimit-Limit", limit)
			if !b.take(time.Now()) {
				res.Header().Set("Retry-After", strconv.Itoa(b.wait()))
				res.Header().Set("X-RateLimit-Remaining", "0")
				return echo.NewHTTPError(http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
