package xp

import (
	"context"
	"testing"

	domaincap "github.com/guildkit/guildkit/internal/domain/capability"
	capport "github.com/guildkit/guildkit/internal/port/capability"
)

type counterStore struct {
	counters map[string]int
}

func (s *counterStore) LoadCapabilityConfig(context.Context, string, string) (map[string]any, error) {
	return nil, nil
}

func (s *counterStore) SaveCapabilityConfig(context.Context, string, string, map[string]any) error {
	return nil
}

func (s *counterStore) AppendAuditEntry(context.Context, string, string, map[string]any) error {
	return nil
}

func (s *counterStore) IncrementUsageCounter(_ context.Context, _ string, kind string, count int) error {
	s.counters[kind] += count
	return nil
}

func TestMessageAwardsConfiguredPoints(t *testing.T) {
	store := &counterStore{counters: make(map[string]int)}
	x := &XP{}
	// JSON numbers decode as float64.
	cc := capport.NewContext("g1", map[string]any{"per_message": float64(3)}, store, nil)

	handler := x.Handlers()[domaincap.EventMessageCreate]
	ev := domaincap.Event{Kind: domaincap.EventMessageCreate, GuildID: "g1", UserID: "u7"}
	for range 2 {
		if err := handler(context.Background(), cc, ev); err != nil {
			t.Fatalf("onMessage: %v", err)
		}
	}

	if got := store.counters["xp:u7"]; got != 6 {
		t.Fatalf("expected 6 points, got %d", got)
	}
}

func TestVoiceFallbackPoints(t *testing.T) {
	store := &counterStore{counters: make(map[string]int)}
	x := &XP{}
	cc := capport.NewContext("g1", map[string]any{}, store, nil)

	handler := x.Handlers()[domaincap.EventVoiceJoin]
	ev := domaincap.Event{Kind: domaincap.EventVoiceJoin, GuildID: "g1", UserID: "u7"}
	if err := handler(context.Background(), cc, ev); err != nil {
		t.Fatalf("onVoice: %v", err)
	}

	if got := store.counters["xp:u7"]; got != 2 {
		t.Fatalf("expected fallback of 2 points, got %d", got)
	}
}
