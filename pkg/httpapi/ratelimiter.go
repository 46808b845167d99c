package httpapi

import (
	"sync"
	"time"
)

// rateLimitState tracks request timestamps for one client key.
type rateLimitState struct {
	requests []int64
}

// RateLimiter implements per-client sliding window rate limiting keyed by
// source address.
type RateLimiter struct {
	limits          map[string]*rateLimitState
	maxRequests     int
	window          time.Duration
	mu              sync.RWMutex
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
}

// NewRateLimiter creates a rate limiter allowing maxRequests per window
// per client key and starts its idle-entry cleanup loop.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = 15
	}
	if window <= 0 {
		window = time.Minute
	}

	rl := &RateLimiter{
		limits:          make(map[string]*rateLimitState),
		maxRequests:     maxRequests,
		window:          window,
		cleanupInterval: 5 * time.Minute,
		stopCleanup:     make(chan struct{}),
	}

	go rl.startCleanup()

	return rl
}

// Allow checks whether a request from key fits the window, recording it
// when it does.
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()

	state, exists := rl.limits[key]
	if !exists {
		state = &rateLimitState{requests: make([]int64, 0)}
		rl.limits[key] = state
	}

	state.requests = rl.pruneLocked(state.requests, now)

	if len(state.requests) >= rl.maxRequests {
		return false
	}

	state.requests = append(state.requests, now)
	return true
}

// RetryAfter returns the number of seconds until the oldest request in
// key's window falls out of it.
func (rl *RateLimiter) RetryAfter(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	state, exists := rl.limits[key]
	if !exists || len(state.requests) == 0 {
		return 0
	}

	now := time.Now().UnixMilli()
	oldest := state.requests[0]

	retryAfterMs := rl.window.Milliseconds() - (now - oldest)
	if retryAfterMs < 0 {
		return 0
	}

	// Round up to whole seconds.
	return int((retryAfterMs + 999) / 1000)
}

func (rl *RateLimiter) pruneLocked(requests []int64, now int64) []int64 {
	windowMs := rl.window.Milliseconds()
	valid := requests[:0]
	for _, reqTime := range requests {
		if now-reqTime < windowMs {
			valid = append(valid, reqTime)
		}
	}
	return valid
}

// startCleanup periodically removes idle client entries
func (rl *RateLimiter) startCleanup() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now().UnixMilli()

	for key, state := range rl.limits {
		state.requests = rl.pruneLocked(state.requests, now)
		if len(state.requests) == 0 {
			delete(rl.limits, key)
		}
	}
}

// Stop stops the cleanup goroutine
func (rl *RateLimiter) Stop() {
	close(rl.stopCleanup)
}
