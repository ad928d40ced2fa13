// Package guild defines the guild (tenant) domain model.
package guild

import "time"

// Guild represents one chat-platform community the bot is a member of.
// Permissions is the bot's permission snapshot in that guild, as reported by
// the transport layer when the guild is first observed.
type Guild struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	OwnerID     string    `json:"owner_id"`
	Permissions []string  `json:"permissions,omitempty"`
	JoinedAt    time.Time `json:"joined_at"`
}

// HasPermissions reports whether the bot's snapshot covers every required
// permission, returning the missing ones otherwise.
func (g *Guild) HasPermissions(required []string) (bool, []string) {
	held := make(map[string]bool, len(g.Permissions))
	for _, p := range g.Permissions {
		held[p] = true
	}
	var missing []string
	for _, p := range required {
		if !held[p] {
			missing = append(missing, p)
		}
	}
	return len(missing) == 0, missing
}
