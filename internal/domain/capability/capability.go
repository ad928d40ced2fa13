// Package capability defines the capability (feature) domain model.
package capability

import (
	"fmt"
	"time"

	"github.com/guildkit/guildkit/internal/domain"
)

// Definition describes a capability known to the platform. Definitions are
// built at process start from the static catalog and never mutated afterwards.
type Definition struct {
	Key          string            `json:"key"`      // unique, stable identifier, e.g. "welcome"
	Name         string            `json:"name"`     // display name
	Category     string            `json:"category"` // e.g. "engagement", "moderation"
	Premium      bool              `json:"premium"`
	Permissions  []string          `json:"permissions,omitempty"`   // bot permissions required in the guild
	Defaults     map[string]any    `json:"defaults,omitempty"`      // default configuration values
	ConfigSchema map[string]string `json:"config_schema,omitempty"` // value type per configuration key
}

// Validate checks the definition shape.
func (d *Definition) Validate() error {
	if d.Key == "" {
		return fmt.Errorf("%w: capability key is empty", domain.ErrInvalidDefinition)
	}
	if d.Name == "" {
		return fmt.Errorf("%w: capability %q has no display name", domain.ErrInvalidDefinition, d.Key)
	}
	for key := range d.ConfigSchema {
		if _, ok := d.Defaults[key]; !ok {
			return fmt.Errorf("%w: capability %q declares schema key %q without a default",
				domain.ErrInvalidDefinition, d.Key, key)
		}
	}
	return nil
}

// State is the lifecycle state of a capability for one guild.
type State string

const (
	StateUnregistered State = "unregistered"
	StateRegistered   State = "registered"
	StateEnabled      State = "enabled"
	StateDisabled     State = "disabled"
	StateRemoved      State = "removed"
)

// Record is the per-(guild, capability) runtime record. Owned exclusively by
// the runtime service for that guild.
type Record struct {
	GuildID   string         `json:"guild_id"`
	Key       string         `json:"key"`
	State     State          `json:"state"`
	Config    map[string]any `json:"config"`
	CreatedAt time.Time      `json:"created_at"`
}
