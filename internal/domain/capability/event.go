package capability

import "fmt"

// EventKind is the closed set of platform events a capability can handle.
// Handlers are declared per kind at registration time, so a misspelled event
// name is a compile error rather than a silent no-op.
type EventKind string

const (
	EventMemberJoin    EventKind = "member_join"
	EventMemberLeave   EventKind = "member_leave"
	EventMessageCreate EventKind = "message_create"
	EventMessageDelete EventKind = "message_delete"
	EventMessageEdit   EventKind = "message_edit"
	EventReactionAdd   EventKind = "reaction_add"
	EventVoiceJoin     EventKind = "voice_join"
	EventVoiceLeave    EventKind = "voice_leave"
)

// Kinds lists every known event kind in a stable order.
func Kinds() []EventKind {
	return []EventKind{
		EventMemberJoin, EventMemberLeave,
		EventMessageCreate, EventMessageDelete, EventMessageEdit,
		EventReactionAdd,
		EventVoiceJoin, EventVoiceLeave,
	}
}

// ParseEventKind converts a wire-level event name into an EventKind.
func ParseEventKind(s string) (EventKind, error) {
	for _, k := range Kinds() {
		if string(k) == s {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown event kind %q", s)
}

// Event is a platform event delivered to enabled capabilities of one guild.
type Event struct {
	Kind    EventKind      `json:"kind"`
	GuildID string         `json:"guild_id"`
	UserID  string         `json:"user_id,omitempty"`
	Payload map[string]any `json:"payload,omitempty"`
}
