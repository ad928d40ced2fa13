package service

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/guildkit/guildkit/internal/domain"
	"github.com/guildkit/guildkit/internal/domain/command"
)

// CommandService holds the shared catalog of remote-command definitions and
// their alias index.
type CommandService struct {
	mu        sync.RWMutex
	byName    map[string]*command.Definition
	aliases   map[string]string // alias -> canonical name
	cooldowns *CooldownTable
}

// NewCommandService creates an empty command catalog backed by the given
// cooldown table. Deregistering a command clears its cooldown records.
func NewCommandService(cooldowns *CooldownTable) *CommandService {
	return &CommandService{
		byName:    make(map[string]*command.Definition),
		aliases:   make(map[string]string),
		cooldowns: cooldowns,
	}
}

// Register adds a command definition and indexes its aliases. A name
// collision fails with domain.ErrDuplicateKey unless the definition sets
// AllowOverwrite, in which case the existing registration and its aliases are
// replaced. Alias collisions are skipped with a warning, never an error.
func (s *CommandService) Register(def *command.Definition) error {
	if err := def.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[def.Name]; exists {
		if !def.AllowOverwrite {
			return fmt.Errorf("%w: command %q", domain.ErrDuplicateKey, def.Name)
		}
		slog.Warn("command registration overwrites existing definition", "command", def.Name)
		s.dropAliasesLocked(def.Name)
	}

	s.byName[def.Name] = def
	for _, alias := range def.Aliases {
		if owner, taken := s.aliases[alias]; taken && owner != def.Name {
			slog.Warn("command alias collision, skipping",
				"alias", alias, "command", def.Name, "held_by", owner)
			continue
		}
		if _, isName := s.byName[alias]; isName && alias != def.Name {
			slog.Warn("command alias shadows canonical name, skipping",
				"alias", alias, "command", def.Name)
			continue
		}
		s.aliases[alias] = def.Name
	}
	return nil
}

// Deregister removes a command, its aliases, and any cooldown records for
// it. Returns whether a registration existed.
func (s *CommandService) Deregister(name string) bool {
	s.mu.Lock()
	_, existed := s.byName[name]
	delete(s.byName, name)
	s.dropAliasesLocked(name)
	s.mu.Unlock()

	if existed && s.cooldowns != nil {
		s.cooldowns.ClearCommand(name)
	}
	return existed
}

// dropAliasesLocked removes every alias pointing at name. Caller holds s.mu.
func (s *CommandService) dropAliasesLocked(name string) {
	for alias, owner := range s.aliases {
		if owner == name {
			delete(s.aliases, alias)
		}
	}
}

// Get resolves a canonical name or alias to its definition. The returned
// definition is a copy, detached from later SetEnabled toggles.
func (s *CommandService) Get(nameOrAlias string) (*command.Definition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if def, ok := s.byName[nameOrAlias]; ok {
		c := *def
		return &c, nil
	}
	if canonical, ok := s.aliases[nameOrAlias]; ok {
		c := *s.byName[canonical]
		return &c, nil
	}
	return nil, fmt.Errorf("command %q: %w", nameOrAlias, domain.ErrUnknownCommand)
}

// SetEnabled toggles a command's visibility without dropping registration
// data. Fails with domain.ErrNotFound for unknown names.
func (s *CommandService) SetEnabled(name string, enabled bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	def, ok := s.byName[name]
	if !ok {
		return fmt.Errorf("command %q: %w", name, domain.ErrNotFound)
	}
	def.Enabled = enabled
	return nil
}

// All returns a copy of every registered definition. Order is unspecified.
func (s *CommandService) All() []*command.Definition {
	s.mu.RLock()
	defer s.mu.RUnlock()

	defs := make([]*command.Definition, 0, len(s.byName))
	for _, def := range s.byName {
		c := *def
		defs = append(defs, &c)
	}
	return defs
}
