package service

import (
	"sync"
	"time"
)

// CooldownTable tracks live cooldowns keyed by (command, invoker). Entries
// are removed lazily when a check observes expiry, or explicitly via Clear.
type CooldownTable struct {
	mu      sync.Mutex
	expires map[string]time.Time
	now     func() time.Time // for testing
}

// NewCooldownTable creates an empty cooldown table.
func NewCooldownTable() *CooldownTable {
	return &CooldownTable{
		expires: make(map[string]time.Time),
		now:     time.Now,
	}
}

func cooldownKey(command, invokerID string) string {
	return command + "\x00" + invokerID
}

// Remaining returns the time left on a live cooldown for (command, invoker),
// or zero if none. Expired entries are deleted on observation.
func (t *CooldownTable) Remaining(command, invokerID string) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := cooldownKey(command, invokerID)
	expiry, ok := t.expires[key]
	if !ok {
		return 0
	}
	remaining := expiry.Sub(t.now())
	if remaining <= 0 {
		delete(t.expires, key)
		return 0
	}
	return remaining
}

// Put records a cooldown expiring after d.
func (t *CooldownTable) Put(command, invokerID string, d time.Duration) {
	if d <= 0 {
		return
	}
	t.mu.Lock()
	t.expires[cooldownKey(command, invokerID)] = t.now().Add(d)
	t.mu.Unlock()
}

// Clear removes the cooldown for (command, invoker), returning whether one
// existed. Used by the admin surface.
func (t *CooldownTable) Clear(command, invokerID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	key := cooldownKey(command, invokerID)
	_, ok := t.expires[key]
	delete(t.expires, key)
	return ok
}

// ClearCommand removes every cooldown for the named command, returning the
// number removed. Called when a command is deregistered.
func (t *CooldownTable) ClearCommand(command string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	prefix := command + "\x00"
	removed := 0
	for key := range t.expires {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(t.expires, key)
			removed++
		}
	}
	return removed
}
