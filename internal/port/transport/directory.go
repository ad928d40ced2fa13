package transport

import "context"

// Directory resolves invoker permissions and role membership in a guild
// context. The gateway adapter implements it from its member cache; the
// dispatcher wraps it into per-invocation lookup closures.
type Directory interface {
	HasPermission(ctx context.Context, guildID, userID, perm string) bool
	HasRole(ctx context.Context, guildID, userID, roleID string) bool
}
