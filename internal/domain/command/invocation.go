package command

import "context"

// Invocation is a single inbound request to execute a command, as delivered
// by the transport layer.
type Invocation struct {
	ID        string         `json:"id"`
	Command   string         `json:"command"` // name or alias
	InvokerID string         `json:"invoker_id"`
	GuildID   string         `json:"guild_id,omitempty"` // empty for direct messages
	Args      map[string]any `json:"args,omitempty"`     // raw values keyed by argument name
}

// InvocationContext carries everything a handler may need about the caller.
// Permission, role, and entitlement lookups are closures so the dispatcher
// can assemble them from its collaborators without exposing them here.
type InvocationContext struct {
	Invocation *Invocation
	Owner      bool // invoker is a bot owner

	HasPermission func(perm string) bool
	HasRole       func(roleID string) bool
	Premium       func() bool // invoker's guild holds premium access
}

// Handler executes a command with the assembled context and parsed arguments.
type Handler func(ctx context.Context, ic *InvocationContext, args map[string]any) error
