// Package command defines the remote-command domain model: definitions,
// argument schemas, and invocations.
package command

import (
	"fmt"
	"time"

	"github.com/guildkit/guildkit/internal/domain"
)

// ArgType is the primitive type tag of an argument.
type ArgType string

const (
	ArgString      ArgType = "string"
	ArgInteger     ArgType = "integer"
	ArgNumber      ArgType = "number"
	ArgBoolean     ArgType = "boolean"
	ArgUser        ArgType = "user"
	ArgChannel     ArgType = "channel"
	ArgRole        ArgType = "role"
	ArgMentionable ArgType = "mentionable"
	ArgAttachment  ArgType = "attachment"
)

// Choice is one entry in an argument's enumerated choice list, and also the
// shape returned to the transport for autocomplete candidates.
type Choice struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Argument describes one parameter of a command. Immutable once attached to
// a Definition.
type Argument struct {
	Name         string   `json:"name"`
	Description  string   `json:"description"`
	Type         ArgType  `json:"type"`
	Required     bool     `json:"required"`
	MinValue     *float64 `json:"min_value,omitempty"` // integer/number
	MaxValue     *float64 `json:"max_value,omitempty"`
	MinLength    *int     `json:"min_length,omitempty"` // string
	MaxLength    *int     `json:"max_length,omitempty"`
	Choices      []Choice `json:"choices,omitempty"`
	Autocomplete bool     `json:"autocomplete,omitempty"`
}

// Definition describes a registered command.
type Definition struct {
	Name        string        `json:"name"` // unique, 1-32 chars
	Description string        `json:"description"`
	Category    string        `json:"category"`
	Permissions []string      `json:"permissions,omitempty"` // invoker permissions required
	Roles       []string      `json:"roles,omitempty"`       // invoker role IDs required
	Cooldown    time.Duration `json:"cooldown"`
	Premium     bool          `json:"premium"`
	OwnerOnly   bool          `json:"owner_only"`
	GuildOnly   bool          `json:"guild_only"`
	Enabled     bool          `json:"enabled"`
	Args        []Argument    `json:"args,omitempty"`
	Aliases     []string      `json:"aliases,omitempty"`

	// AllowOverwrite permits re-registration under an existing name, for
	// hot-reload scenarios. Default registration fails on collision.
	AllowOverwrite bool `json:"-"`

	// Run executes the command. Assigned at registration, never serialized.
	Run Handler `json:"-"`
}

const maxNameLength = 32

// Validate checks the definition shape.
func (d *Definition) Validate() error {
	if d.Name == "" || len(d.Name) > maxNameLength {
		return fmt.Errorf("%w: command name must be 1-%d chars", domain.ErrInvalidDefinition, maxNameLength)
	}
	if d.Description == "" {
		return fmt.Errorf("%w: command %q has no description", domain.ErrInvalidDefinition, d.Name)
	}
	seen := make(map[string]bool, len(d.Args))
	for i := range d.Args {
		a := &d.Args[i]
		if a.Name == "" {
			return fmt.Errorf("%w: command %q argument %d has no name", domain.ErrInvalidDefinition, d.Name, i)
		}
		if seen[a.Name] {
			return fmt.Errorf("%w: command %q declares argument %q twice", domain.ErrInvalidDefinition, d.Name, a.Name)
		}
		seen[a.Name] = true
	}
	return nil
}
