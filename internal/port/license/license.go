// Package license defines the license service port (interface).
package license

import (
	"context"

	"github.com/guildkit/guildkit/internal/domain/entitlement"
)

// Service is the pull-model license port. Unavailability of the backing
// service must be treated by callers as "deny premium, allow free", never as
// a fatal error for the guild.
type Service interface {
	// FetchEntitlement returns the current entitlement for a guild.
	FetchEntitlement(ctx context.Context, guildID string) (*entitlement.Record, error)
}
