// Package xp awards activity points for messages and voice presence.
package xp

import (
	"context"

	domaincap "github.com/guildkit/guildkit/internal/domain/capability"
	capport "github.com/guildkit/guildkit/internal/port/capability"
)

const Key = "xp"

func init() {
	capport.Register(Key, func() capport.Capability { return &XP{} })
}

// XP accumulates per-guild activity points in usage counters. Point values
// come from the guild's capability config.
type XP struct{}

func (x *XP) Definition() domaincap.Definition {
	return domaincap.Definition{
		Key:      Key,
		Name:     "Activity Points",
		Category: "community",
		Defaults: map[string]any{
			"per_message": 1,
			"per_voice":   2,
		},
		ConfigSchema: map[string]string{
			"per_message": "integer",
			"per_voice":   "integer",
		},
	}
}

func (x *XP) Register(_ context.Context, _ *capport.Context) error { return nil }

func (x *XP) Enable(ctx context.Context, cc *capport.Context) error {
	return cc.Audit(ctx, "xp.enabled", nil)
}

func (x *XP) Disable(ctx context.Context, cc *capport.Context) error {
	return cc.Audit(ctx, "xp.disabled", nil)
}

func (x *XP) Handlers() map[domaincap.EventKind]capport.Handler {
	return map[domaincap.EventKind]capport.Handler{
		domaincap.EventMessageCreate: x.onMessage,
		domaincap.EventVoiceJoin:     x.onVoice,
	}
}

func (x *XP) onMessage(ctx context.Context, cc *capport.Context, ev domaincap.Event) error {
	return cc.CountUsage(ctx, "xp:"+ev.UserID, points(cc, "per_message", 1))
}

func (x *XP) onVoice(ctx context.Context, cc *capport.Context, ev domaincap.Event) error {
	return cc.CountUsage(ctx, "xp:"+ev.UserID, points(cc, "per_voice", 2))
}

// points reads a point value from config, tolerating the numeric types JSON
// decoding produces.
func points(cc *capport.Context, key string, fallback int) int {
	val, _ := cc.ConfigValue(key)
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return fallback
	}
}
