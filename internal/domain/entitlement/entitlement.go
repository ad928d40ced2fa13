// Package entitlement defines the license-derived entitlement domain model.
package entitlement

import (
	"slices"
	"time"
)

// Plan is a license plan tier. Ordering matters: any plan above PlanFree
// carries baseline premium access regardless of specific feature keys.
type Plan string

const (
	PlanFree  Plan = "free"
	PlanTrial Plan = "trial"
	PlanPro   Plan = "pro"
	PlanScale Plan = "scale"
)

// rank maps plans to their tier order. Unknown plans rank as free.
func rank(p Plan) int {
	switch p {
	case PlanTrial:
		return 1
	case PlanPro:
		return 2
	case PlanScale:
		return 3
	default:
		return 0
	}
}

// Record is the entitlement state for one guild, as issued by the license
// service.
type Record struct {
	GuildID   string         `json:"guild_id"`
	Plan      Plan           `json:"plan"`
	Features  []string       `json:"features,omitempty"` // granted feature keys
	Limits    map[string]int `json:"limits,omitempty"`   // numeric plan limits, e.g. "max_commands"
	IssuedAt  time.Time      `json:"issued_at"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	RevokedAt *time.Time     `json:"revoked_at,omitempty"`
}

// Valid reports whether the record is neither revoked nor expired at now.
func (r *Record) Valid(now time.Time) bool {
	if r.RevokedAt != nil {
		return false
	}
	if r.ExpiresAt != nil && now.After(*r.ExpiresAt) {
		return false
	}
	return true
}

// HasFeature reports whether the feature key is in the granted set.
func (r *Record) HasFeature(key string) bool {
	return slices.Contains(r.Features, key)
}

// PremiumTier reports whether the plan is above the lowest tier. Some call
// sites gate on tier alone rather than a specific feature key.
func (r *Record) PremiumTier() bool {
	return rank(r.Plan) > rank(PlanFree)
}
