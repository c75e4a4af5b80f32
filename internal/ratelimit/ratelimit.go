// Package ratelimit provides a per-identity windowed rate limiter,
// grounded on StreetsDigital/thenexusengine's
// internal/middleware/ratelimit.go token-bucket implementation, adapted
// to key by authenticated bidder id (§5: "Rate limiters are per-identity
// counters with bounded memory (windowed)") rather than publisher id.
package ratelimit

import (
	"sync"
	"time"
)

// Config controls the token bucket shape.
type Config struct {
	RequestsPerSecond float64
	BurstSize         float64
	CleanupInterval   time.Duration
	Idle              time.Duration // entries untouched this long are evicted
}

// DefaultConfig allows 20 bids/sec sustained with bursts of 10, and
// evicts identities idle for more than a minute to bound memory.
func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 20,
		BurstSize:         10,
		CleanupInterval:   time.Minute,
		Idle:              time.Minute,
	}
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// Limiter is a bounded-memory, per-identity token bucket.
type Limiter struct {
	cfg     Config
	mu      sync.Mutex
	buckets map[string]*bucket
	stop    chan struct{}
}

// New creates a Limiter and starts its background eviction loop.
func New(cfg Config) *Limiter {
	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	go l.evictLoop()
	return l
}

func (l *Limiter) evictLoop() {
	t := time.NewTicker(l.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			l.mu.Lock()
			now := time.Now()
			for id, b := range l.buckets {
				if now.Sub(b.lastCheck) > l.cfg.Idle {
					delete(l.buckets, id)
				}
			}
			l.mu.Unlock()
		case <-l.stop:
			return
		}
	}
}

// Stop halts the eviction loop.
func (l *Limiter) Stop() { close(l.stop) }

// Allow reports whether a request from identity should proceed now,
// consuming one token if so.
func (l *Limiter) Allow(identity string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	b, ok := l.buckets[identity]
	if !ok {
		l.buckets[identity] = &bucket{tokens: l.cfg.BurstSize - 1, lastCheck: now}
		return true
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	b.tokens += elapsed * l.cfg.RequestsPerSecond
	if b.tokens > l.cfg.BurstSize {
		b.tokens = l.cfg.BurstSize
	}
	b.lastCheck = now

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
