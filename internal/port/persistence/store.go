// Package persistence defines the persistence port (interface) consumed by
// the runtime core. The core never embeds a storage implementation.
package persistence

import "context"

// Store is the port interface for tenant-scoped persistence.
type Store interface {
	// LoadCapabilityConfig returns the stored configuration for a guild's
	// capability, or domain.ErrNotFound if none was ever saved.
	LoadCapabilityConfig(ctx context.Context, guildID, key string) (map[string]any, error)

	// SaveCapabilityConfig upserts the configuration for a guild's capability.
	SaveCapabilityConfig(ctx context.Context, guildID, key string, config map[string]any) error

	// AppendAuditEntry records an action taken in a guild's context.
	AppendAuditEntry(ctx context.Context, guildID, action string, metadata map[string]any) error

	// IncrementUsageCounter adds count to the named usage counter for a guild.
	IncrementUsageCounter(ctx context.Context, guildID, kind string, count int) error
}
