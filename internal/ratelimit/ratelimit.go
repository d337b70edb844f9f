// Package ratelimit provides a keyed rate limiter using token bucket algorithm.
// It supports both non-blocking (Allow) and blocking (Wait) operations.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// How long an idle key keeps its limiter before the janitor drops it.
// Keys here are client IPs and user IDs, so the map would otherwise grow
// without bound.
const (
	idleTTL         = 10 * time.Minute
	cleanupInterval = time.Minute
)

// entry pairs a limiter with its last access time for cleanup.
type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages per-key rate limiting.
// Each unique key gets its own independent rate limiter.
type KeyedRateLimiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   rate.Limit
	burst   int

	// Cleanup
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new keyed rate limiter.
// rps: requests per second allowed.
// burst: maximum burst size (tokens available immediately).
func New(rps float64, burst int) *KeyedRateLimiter {
	krl := &KeyedRateLimiter{
		entries: make(map[string]*entry),
		limit:   rate.Limit(rps),
		burst:   burst,
		done:    make(chan struct{}),
	}

	go krl.cleanup()

	return krl
}

// Allow checks if a request for the given key should be allowed.
// Returns immediately without blocking. Use for inbound request protection.
func (krl *KeyedRateLimiter) Allow(key string) bool {
	return krl.getLimiter(key).Allow()
}

// Wait blocks until a request for the given key is allowed or context is canceled.
// Use for outbound requests where you want to respect rate limits.
func (krl *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return krl.getLimiter(key).Wait(ctx)
}

// getLimiter returns the limiter for a key, creating one if needed,
// and marks the key as recently used.
func (krl *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	krl.mu.Lock()
	defer krl.mu.Unlock()

	e, exists := krl.entries[key]
	if !exists {
		e = &entry{limiter: rate.NewLimiter(krl.limit, krl.burst)}
		krl.entries[key] = e
	}
	e.lastSeen = time.Now()
	return e.limiter
}

// Stop shuts down the cleanup goroutine.
func (krl *KeyedRateLimiter) Stop() {
	krl.stopOnce.Do(func() {
		close(krl.done)
	})
}

// cleanup periodically drops limiters that haven't been touched within idleTTL.
func (krl *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-krl.done:
			return
		case now := <-ticker.C:
			krl.mu.Lock()
			for key, e := range krl.entries {
				if now.Sub(e.lastSeen) > idleTTL {
					delete(krl.entries, key)
				}
			}
			krl.mu.Unlock()
		}
	}
}
