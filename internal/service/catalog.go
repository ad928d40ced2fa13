// Package service contains the application services of the runtime core.
package service

import (
	"fmt"
	"sync"

	"github.com/guildkit/guildkit/internal/domain"
	"github.com/guildkit/guildkit/internal/domain/capability"
)

// CatalogService holds the immutable set of known capability definitions.
// Registration happens at process start; reads dominate afterwards.
type CatalogService struct {
	mu    sync.RWMutex
	byKey map[string]capability.Definition
	order []string // insertion order, for stable listings
}

// NewCatalogService creates an empty capability catalog.
func NewCatalogService() *CatalogService {
	return &CatalogService{byKey: make(map[string]capability.Definition)}
}

// Register adds a capability definition to the catalog. Fails with
// domain.ErrDuplicateKey if the key is taken, domain.ErrInvalidDefinition on
// shape violations.
func (s *CatalogService) Register(def capability.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byKey[def.Key]; exists {
		return fmt.Errorf("%w: capability %q", domain.ErrDuplicateKey, def.Key)
	}
	s.byKey[def.Key] = def
	s.order = append(s.order, def.Key)
	return nil
}

// Get returns the definition for key, or domain.ErrNotFound.
func (s *CatalogService) Get(key string) (capability.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	def, ok := s.byKey[key]
	if !ok {
		return capability.Definition{}, fmt.Errorf("capability %q: %w", key, domain.ErrNotFound)
	}
	return def, nil
}

// All returns every definition in insertion order.
func (s *CatalogService) All() []capability.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]capability.Definition, 0, len(s.order))
	for _, key := range s.order {
		defs = append(defs, s.byKey[key])
	}
	return defs
}

// ByCategory returns definitions in the given category, insertion order.
func (s *CatalogService) ByCategory(category string) []capability.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var defs []capability.Definition
	for _, key := range s.order {
		if def := s.byKey[key]; def.Category == category {
			defs = append(defs, def)
		}
	}
	return defs
}
