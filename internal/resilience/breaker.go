// Package resilience provides reliability patterns for external service
// calls. The license client wraps its HTTP calls in a Breaker so a flapping
// billing backend degrades to "deny premium" instead of piling up requests.
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker is rejecting calls.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker trips after a run of consecutive failures and rejects calls for a
// cooling-off period. The first call after the period probes the backend;
// its outcome decides whether the circuit closes again.
type Breaker struct {
	mu          sync.Mutex
	failures    int
	maxFailures int
	cooloff     time.Duration
	trippedAt   time.Time
	tripped     bool
	probing     bool
	now         func() time.Time // for testing
}

// NewBreaker creates a breaker that trips after maxFailures consecutive
// failures and rejects calls for cooloff before probing.
func NewBreaker(maxFailures int, cooloff time.Duration) *Breaker {
	return &Breaker{
		maxFailures: maxFailures,
		cooloff:     cooloff,
		now:         time.Now,
	}
}

// Execute runs fn unless the circuit is open, in which case it returns
// ErrCircuitOpen without calling fn.
func (b *Breaker) Execute(fn func() error) error {
	b.mu.Lock()
	if b.tripped {
		if b.now().Sub(b.trippedAt) < b.cooloff {
			b.mu.Unlock()
			return ErrCircuitOpen
		}
		b.probing = true
	}
	b.mu.Unlock()

	err := fn()

	b.mu.Lock()
	defer b.mu.Unlock()

	if err != nil {
		b.failures++
		if b.probing || b.failures >= b.maxFailures {
			b.tripped = true
			b.trippedAt = b.now()
		}
		b.probing = false
		return err
	}

	b.failures = 0
	b.tripped = false
	b.probing = false
	return nil
}
