// Package capability defines the plugin port for capabilities and the
// factory registry built-in capabilities register themselves with.
package capability

import (
	"context"
	"log/slog"
	"maps"
	"sync"

	domaincap "github.com/guildkit/guildkit/internal/domain/capability"
	"github.com/guildkit/guildkit/internal/port/persistence"
)

// Handler processes one platform event for one guild. Failures are isolated
// per capability by the runtime and never abort sibling handlers.
type Handler func(ctx context.Context, cc *Context, ev domaincap.Event) error

// Capability is the plugin interface. Handlers is consulted once at
// registration time: the returned map is a dispatch table keyed by the closed
// event-kind enumeration, so there is no string-based method lookup at call
// time.
type Capability interface {
	// Definition returns the immutable definition for this capability.
	Definition() domaincap.Definition

	// Register is invoked when a runtime record is created for a guild.
	Register(ctx context.Context, cc *Context) error

	// Enable is invoked on the Disabled/Registered -> Enabled transition.
	Enable(ctx context.Context, cc *Context) error

	// Disable is invoked on the Enabled -> Disabled transition.
	Disable(ctx context.Context, cc *Context) error

	// Handlers returns the event dispatch table. A nil map means the
	// capability handles no passive events.
	Handlers() map[domaincap.EventKind]Handler
}

// Context is the capability-scoped interaction context handed to hooks and
// event handlers: the guild's live configuration plus the persistence
// collaborators for audit and usage accounting. Configuration updates swap
// the whole map at once, so a handler reading mid-update never observes a
// partial write.
type Context struct {
	GuildID string
	Store   persistence.Store
	Log     *slog.Logger

	mu     sync.RWMutex
	config map[string]any
}

// NewContext creates a Context with the given initial configuration. A nil
// log falls back to slog.Default.
func NewContext(guildID string, config map[string]any, store persistence.Store, log *slog.Logger) *Context {
	if config == nil {
		config = make(map[string]any)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Context{GuildID: guildID, Store: store, Log: log, config: config}
}

// Config returns a point-in-time copy of the live configuration. Mutating
// the returned map does not affect the stored configuration.
func (c *Context) Config() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]any, len(c.config))
	maps.Copy(out, c.config)
	return out
}

// ConfigValue returns one configuration value and whether it is set.
func (c *Context) ConfigValue(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.config[key]
	return v, ok
}

// ReplaceConfig swaps in a new configuration map in a single step. The map
// must not be written by the caller afterwards.
func (c *Context) ReplaceConfig(config map[string]any) {
	c.mu.Lock()
	c.config = config
	c.mu.Unlock()
}

// Audit appends an audit entry scoped to this capability's guild.
func (c *Context) Audit(ctx context.Context, action string, metadata map[string]any) error {
	return c.Store.AppendAuditEntry(ctx, c.GuildID, action, metadata)
}

// CountUsage increments a usage counter scoped to this capability's guild.
func (c *Context) CountUsage(ctx context.Context, kind string, n int) error {
	return c.Store.IncrementUsageCounter(ctx, c.GuildID, kind, n)
}

// SaveConfig persists the current live configuration.
func (c *Context) SaveConfig(ctx context.Context, key string) error {
	return c.Store.SaveCapabilityConfig(ctx, c.GuildID, key, c.Config())
}
