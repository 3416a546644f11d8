package auth

import (
	"sync"
	"time"
)

// RateLimiter is a token bucket refilled continuously at a fixed rate.
type RateLimiter struct {
	mu       sync.Mutex
	rate     float64 // tokens per second
	capacity float64
	tokens   float64
	last     time.Time
}

// NewRateLimiter allows rate operations per interval, with bursts of up
// to rate.
func NewRateLimiter(rate int64, interval time.Duration) *RateLimiter {
	if rate <= 0 || interval <= 0 {
		panic("rate and interval must be positive")
	}

	return &RateLimiter{
		rate:     float64(rate) / interval.Seconds(),
		capacity: float64(rate),
		tokens:   float64(rate),
		last:     time.Now(),
	}
}

func (rl *RateLimiter) refill(now time.Time) {
	rl.tokens = min(rl.capacity, rl.tokens+now.Sub(rl.last).Seconds()*rl.rate)
	rl.last = now
}

// Allow consumes a token when one is available.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())

	if rl.tokens < 1.0 {
		return false
	}

	rl.tokens--
	return true
}

// WaitTime returns the time until the next token is available.
func (rl *RateLimiter) WaitTime() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill(time.Now())

	if rl.tokens >= 1.0 {
		return 0
	}

	return time.Duration((1.0 - rl.tokens) / rl.rate * float64(time.Second))
}

func (rl *RateLimiter) Reset() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.tokens = rl.capacity
	rl.last = time.Now()
}

/*
Limiters hands out one limiter per key, created on first use.
*/
type Limiters struct {
	mu       sync.Mutex
	rate     int64
	interval time.Duration
	limiters map[string]*RateLimiter
}

func NewLimiters(rate int64, interval time.Duration) *Limiters {
	return &Limiters{
		rate:     rate,
		interval: interval,
		limiters: make(map[string]*RateLimiter),
	}
}

func (limiters *Limiters) Allow(key string) bool {
	limiters.mu.Lock()
	limiter, ok := limiters.limiters[key]

	if !ok {
		limiter = NewRateLimiter(limiters.rate, limiters.interval)
		limiters.limiters[key] = limiter
	}

	limiters.mu.Unlock()

	return limiter.Allow()
}
