package auth

import (
	"context"
	"sync"
	"time"
)

// RateLimiter decides whether an identity may issue another request.
type RateLimiter interface {
	Allow(ctx context.Context, identity *Identity) error
}

// InProcessLimiter counts requests per subject and tier in fixed one-minute
// windows. Each move request can cost up to MaxAttempts vendor calls, so the
// limit protects the configured vendor quota.
type InProcessLimiter struct {
	tiers      map[string]int
	defaultRPM int
	now        func() time.Time

	mu       sync.Mutex
	counters map[string]*window
}

type window struct {
	count   int
	startAt time.Time
}

// NewInProcessLimiter creates a limiter. tiers maps a service tier to its
// requests per minute; other tiers get defaultRPM. Zero means unlimited.
func NewInProcessLimiter(tiers map[string]int, defaultRPM int) *InProcessLimiter {
	return &InProcessLimiter{
		tiers:      tiers,
		defaultRPM: defaultRPM,
		now:        time.Now,
		counters:   make(map[string]*window),
	}
}

// Allow returns ErrTooManyRequests once the subject exceeds its tier's limit
// within the current window.
func (l *InProcessLimiter) Allow(_ context.Context, identity *Identity) error {
	tier := tierOf(identity)
	rpm := l.defaultRPM
	if v, ok := l.tiers[tier]; ok {
		rpm = v
	}
	if rpm <= 0 {
		return nil
	}

	key := identity.Subject + ":" + tier
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	w, ok := l.counters[key]
	if !ok || now.Sub(w.startAt) >= time.Minute {
		l.counters[key] = &window{count: 1, startAt: now}
		l.evict(now)
		return nil
	}
	w.count++
	if w.count > rpm {
		return ErrTooManyRequests
	}
	return nil
}

// evict drops expired windows so idle subjects do not accumulate.
func (l *InProcessLimiter) evict(now time.Time) {
	if len(l.counters) < 1024 {
		return
	}
	for k, w := range l.counters {
		if now.Sub(w.startAt) >= time.Minute {
			delete(l.counters, k)
		}
	}
}

func tierOf(id *Identity) string {
	if id == nil || id.ServiceTier == "" {
		return "default"
	}
	return id.ServiceTier
}
