package handshake

import (
	"sync"
	"time"
)

// Limiter is a token-bucket rate limiter guarding how often a responder
// will accept a new handshake attempt, independent of any per-connection
// transport limiting the embedder may already apply.
type Limiter struct {
	mu         sync.Mutex
	rate       float64 // tokens added per second
	burst      float64
	tokens     float64
	lastRefill time.Time
	now        func() time.Time
}

// NewLimiter constructs a Limiter allowing up to burst handshakes
// immediately, refilling at rate handshakes per second thereafter.
func NewLimiter(rate, burst float64) *Limiter {
	return &Limiter{
		rate:       rate,
		burst:      burst,
		tokens:     burst,
		lastRefill: time.Now(),
		now:        time.Now,
	}
}

// AllowHandshake reports whether a handshake attempt may proceed now,
// consuming one token if so.
func (l *Limiter) AllowHandshake() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	elapsed := now.Sub(l.lastRefill).Seconds()
	l.lastRefill = now
	l.tokens += elapsed * l.rate
	if l.tokens > l.burst {
		l.tokens = l.burst
	}
	if l.tokens < 1 {
		return false
	}
	l.tokens--
	return true
}
