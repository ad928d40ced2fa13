// Package moderation flags messages that match a guild's blocked terms.
// It is a premium capability.
package moderation

import (
	"context"
	"fmt"
	"strings"

	domaincap "github.com/guildkit/guildkit/internal/domain/capability"
	capport "github.com/guildkit/guildkit/internal/port/capability"
)

const Key = "moderation"

func init() {
	capport.Register(Key, func() capport.Capability { return &Moderation{} })
}

// Moderation scans message events against the guild's blocked-term list and
// records violations in the audit trail for platform-side enforcement.
type Moderation struct{}

func (m *Moderation) Definition() domaincap.Definition {
	return domaincap.Definition{
		Key:         Key,
		Name:        "Auto Moderation",
		Category:    "safety",
		Premium:     true,
		Permissions: []string{"manage_messages"},
		Defaults: map[string]any{
			"blocked_terms": []any{},
		},
		ConfigSchema: map[string]string{
			"blocked_terms": "string_list",
		},
	}
}

func (m *Moderation) Register(_ context.Context, _ *capport.Context) error { return nil }

func (m *Moderation) Enable(ctx context.Context, cc *capport.Context) error {
	return cc.Audit(ctx, "moderation.enabled", nil)
}

func (m *Moderation) Disable(ctx context.Context, cc *capport.Context) error {
	return cc.Audit(ctx, "moderation.disabled", nil)
}

func (m *Moderation) Handlers() map[domaincap.EventKind]capport.Handler {
	return map[domaincap.EventKind]capport.Handler{
		domaincap.EventMessageCreate: m.scan,
		domaincap.EventMessageEdit:   m.scan,
	}
}

func (m *Moderation) scan(ctx context.Context, cc *capport.Context, ev domaincap.Event) error {
	content, _ := ev.Payload["content"].(string)
	if content == "" {
		return nil
	}

	term := match(cc.Config(), content)
	if term == "" {
		return nil
	}

	err := cc.Audit(ctx, "moderation.flagged", map[string]any{
		"user_id": ev.UserID,
		"term":    term,
	})
	if err != nil {
		return fmt.Errorf("record violation: %w", err)
	}
	return cc.CountUsage(ctx, "moderation.flagged", 1)
}

// match returns the first blocked term found in content, or "".
func match(config map[string]any, content string) string {
	terms, _ := config["blocked_terms"].([]any)
	lowered := strings.ToLower(content)
	for _, t := range terms {
		term, _ := t.(string)
		if term != "" && strings.Contains(lowered, strings.ToLower(term)) {
			return term
		}
	}
	return ""
}
