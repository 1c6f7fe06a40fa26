package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

// Limiter decides whether a caller identified by key may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a per-key token bucket kept in process memory.
type MemoryLimiter struct {
	visitors      map[string]*visitor
	mu            sync.Mutex
	ratePerMinute float64
	burst         float64
	ttl           time.Duration
	now           func() time.Time
}

type visitor struct {
	tokens   float64
	lastSeen time.Time
}

// NewMemoryLimiter refills requestsPerMinute tokens per minute up to burst.
func NewMemoryLimiter(requestsPerMinute, burst int) *MemoryLimiter {
	if burst <= 0 {
		burst = requestsPerMinute
	}
	return &MemoryLimiter{
		visitors:      make(map[string]*visitor),
		ratePerMinute: float64(requestsPerMinute),
		burst:         float64(burst),
		ttl:           5 * time.Minute,
		now:           time.Now,
	}
}

// Allow consumes one token for key.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{tokens: l.burst, lastSeen: now}
		l.visitors[key] = v
	} else {
		elapsed := now.Sub(v.lastSeen).Minutes()
		if elapsed > 0 {
			v.tokens = math.Min(l.burst, v.tokens+elapsed*l.ratePerMinute)
		}
		v.lastSeen = now
	}
	l.cleanupLocked(now)
	if v.tokens < 1 {
		return false, nil
	}
	v.tokens--
	return true, nil
}

func (l *MemoryLimiter) cleanupLocked(now time.Time) {
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > l.ttl {
			delete(l.visitors, key)
		}
	}
}

var _ Limiter = (*MemoryLimiter)(nil)
