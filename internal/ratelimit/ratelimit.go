package ratelimit

import (
	"sync"

	ratelib "golang.org/x/time/rate"

	"github.com/fabian4/devproxy/internal/model"
)

// Limiter keeps one token bucket per proxy rule.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*ratelib.Limiter
}

func NewLimiter() *Limiter {
	return &Limiter{
		limiters: make(map[string]*ratelib.Limiter),
	}
}

// Allow reports whether a request for rule may proceed. A nil cfg never
// limits. The bucket follows cfg when it changes (hot reload).
func (l *Limiter) Allow(rule string, cfg *model.RateLimit) bool {
	if cfg == nil {
		return true
	}

	l.mu.RLock()
	lim, ok := l.limiters[rule]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		lim, ok = l.limiters[rule]
		if !ok {
			lim = ratelib.NewLimiter(ratelib.Limit(cfg.RequestsPerSecond), cfg.Burst)
			l.limiters[rule] = lim
		}
		l.mu.Unlock()
	}

	if lim.Limit() != ratelib.Limit(cfg.RequestsPerSecond) {
		lim.SetLimit(ratelib.Limit(cfg.RequestsPerSecond))
	}
	if lim.Burst() != cfg.Burst {
		lim.SetBurst(cfg.Burst)
	}

	return lim.Allow()
}

// Reset drops all buckets, e.g. after the rule table was replaced.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limiters = make(map[string]*ratelib.Limiter)
}
