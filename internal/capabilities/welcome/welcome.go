// Package welcome greets new members and waves off leavers.
package welcome

import (
	"context"
	"fmt"
	"strings"

	domaincap "github.com/guildkit/guildkit/internal/domain/capability"
	capport "github.com/guildkit/guildkit/internal/port/capability"
)

const Key = "welcome"

func init() {
	capport.Register(Key, func() capport.Capability { return &Welcome{} })
}

// Welcome posts a configurable greeting when a member joins. The rendered
// greeting is recorded through the audit trail; delivery is handled by the
// platform side that tails it.
type Welcome struct{}

func (w *Welcome) Definition() domaincap.Definition {
	return domaincap.Definition{
		Key:      Key,
		Name:     "Welcome Messages",
		Category: "community",
		Defaults: map[string]any{
			"message":       "Welcome to the server, {user}!",
			"leave_message": "",
		},
		ConfigSchema: map[string]string{
			"message":       "string",
			"leave_message": "string",
		},
	}
}

func (w *Welcome) Register(_ context.Context, _ *capport.Context) error { return nil }

func (w *Welcome) Enable(ctx context.Context, cc *capport.Context) error {
	return cc.Audit(ctx, "welcome.enabled", nil)
}

func (w *Welcome) Disable(ctx context.Context, cc *capport.Context) error {
	return cc.Audit(ctx, "welcome.disabled", nil)
}

func (w *Welcome) Handlers() map[domaincap.EventKind]capport.Handler {
	return map[domaincap.EventKind]capport.Handler{
		domaincap.EventMemberJoin:  w.onJoin,
		domaincap.EventMemberLeave: w.onLeave,
	}
}

func (w *Welcome) onJoin(ctx context.Context, cc *capport.Context, ev domaincap.Event) error {
	msg := render(cc.Config(), "message", ev.UserID)
	if msg == "" {
		return nil
	}
	if err := cc.Audit(ctx, "welcome.sent", map[string]any{"user_id": ev.UserID, "message": msg}); err != nil {
		return fmt.Errorf("record welcome: %w", err)
	}
	return cc.CountUsage(ctx, "welcome.sent", 1)
}

func (w *Welcome) onLeave(ctx context.Context, cc *capport.Context, ev domaincap.Event) error {
	msg := render(cc.Config(), "leave_message", ev.UserID)
	if msg == "" {
		return nil
	}
	return cc.Audit(ctx, "welcome.leave", map[string]any{"user_id": ev.UserID, "message": msg})
}

// render substitutes {user} in the configured template. A missing or empty
// template disables the message.
func render(config map[string]any, key, userID string) string {
	tmpl, _ := config[key].(string)
	if tmpl == "" {
		return ""
	}
	return strings.ReplaceAll(tmpl, "{user}", userID)
}
