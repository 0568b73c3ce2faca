// Package middleware holds request-level guards for the webhook server.
package middleware

import (
	"sync"

	"golang.org/x/time/rate"
)

// CallerLimiter rate limits inbound messages per caller handle so one
// chatty contact cannot monopolize the LLM round trips.
type CallerLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter

	rps   rate.Limit
	burst int
}

// NewCallerLimiter creates a limiter allowing rps messages per second
// with the given burst per caller.
func NewCallerLimiter(rps float64, burst int) *CallerLimiter {
	if rps <= 0 {
		rps = 1
	}
	if burst <= 0 {
		burst = 5
	}
	return &CallerLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(rps),
		burst:    burst,
	}
}

// Allow reports whether a message from the given caller may be processed
// now.
func (l *CallerLimiter) Allow(caller string) bool {
	return l.limiter(caller).Allow()
}

func (l *CallerLimiter) limiter(caller string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if limiter, ok := l.limiters[caller]; ok {
		return limiter
	}
	limiter := rate.NewLimiter(l.rps, l.burst)
	l.limiters[caller] = limiter
	return limiter
}
