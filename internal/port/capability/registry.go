package capability

import (
	"fmt"
	"sync"
)

// Factory is a constructor function that creates a new Capability instance.
type Factory func() Capability

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
	order     []string
)

// Register makes a capability factory available by key. It is typically
// called from an init() function in the capability's package. Duplicate
// registration is a programming error and panics.
func Register(key string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[key]; exists {
		panic(fmt.Sprintf("capability: duplicate registration for %q", key))
	}
	factories[key] = factory
	order = append(order, key)
}

// New creates a new Capability by key using the registered factory.
func New(key string) (Capability, error) {
	mu.RLock()
	factory, ok := factories[key]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("capability: unknown capability %q", key)
	}
	return factory(), nil
}

// Available returns the keys of all registered capabilities in registration
// order.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()

	return append([]string(nil), order...)
}
