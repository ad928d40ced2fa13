package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/guildkit/guildkit/internal/domain"
	"github.com/guildkit/guildkit/internal/domain/entitlement"
	"github.com/guildkit/guildkit/internal/port/license"
)

// Denial reasons returned by Check.
const (
	ReasonNoEntitlement     = "no_entitlement"
	ReasonExpired           = "expired"
	ReasonRevoked           = "revoked"
	ReasonFeatureNotGranted = "feature_not_granted"
)

// Decision is the outcome of an entitlement check.
type Decision struct {
	Granted bool   `json:"granted"`
	Reason  string `json:"reason,omitempty"`
}

// EntitlementService is the entitlement gate: it tracks per-guild
// entitlement records and answers premium-access questions. It is an
// explicit, constructed instance injected into the runtime and dispatcher,
// never shared package state.
type EntitlementService struct {
	mu      sync.RWMutex
	records map[string]*entitlement.Record

	licenses license.Service // optional; nil means records only arrive via Record
	now      func() time.Time
}

// NewEntitlementService creates an entitlement gate backed by the given
// license service. licenses may be nil in tests.
func NewEntitlementService(licenses license.Service) *EntitlementService {
	return &EntitlementService{
		records:  make(map[string]*entitlement.Record),
		licenses: licenses,
		now:      time.Now,
	}
}

// Record registers or refreshes a guild's entitlement. Fails with
// domain.ErrInvalidEntitlement if the record is already expired or revoked
// at registration time.
func (s *EntitlementService) Record(rec *entitlement.Record) error {
	if rec.GuildID == "" {
		return fmt.Errorf("%w: missing guild id", domain.ErrInvalidEntitlement)
	}
	if rec.RevokedAt != nil {
		return fmt.Errorf("%w: revoked at registration", domain.ErrInvalidEntitlement)
	}
	if rec.ExpiresAt != nil && s.now().After(*rec.ExpiresAt) {
		return fmt.Errorf("%w: expiry in the past", domain.ErrInvalidEntitlement)
	}

	s.mu.Lock()
	s.records[rec.GuildID] = rec
	s.mu.Unlock()
	return nil
}

// Revoke marks an existing record revoked. Returns false if none exists.
func (s *EntitlementService) Revoke(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[guildID]
	if !ok {
		return false
	}
	t := s.now()
	rec.RevokedAt = &t
	return true
}

// Check answers whether guildID is entitled to featureKey.
func (s *EntitlementService) Check(guildID, featureKey string) Decision {
	s.mu.RLock()
	rec, ok := s.records[guildID]
	s.mu.RUnlock()

	if !ok {
		return Decision{Reason: ReasonNoEntitlement}
	}
	if rec.RevokedAt != nil {
		return Decision{Reason: ReasonRevoked}
	}
	if rec.ExpiresAt != nil && s.now().After(*rec.ExpiresAt) {
		return Decision{Reason: ReasonExpired}
	}
	if !rec.HasFeature(featureKey) {
		return Decision{Reason: ReasonFeatureNotGranted}
	}
	return Decision{Granted: true}
}

// CheckPremium answers the tier-level question only: a guild with a valid
// record on any plan above the lowest tier has baseline premium access,
// independent of specific feature keys.
func (s *EntitlementService) CheckPremium(guildID string) bool {
	s.mu.RLock()
	rec, ok := s.records[guildID]
	s.mu.RUnlock()

	return ok && rec.Valid(s.now()) && rec.PremiumTier()
}

// Refresh pulls the current entitlement from the license service and records
// it. License-service unavailability keeps the last known record: premium
// checks then fall back to it, and free access is never blocked.
func (s *EntitlementService) Refresh(ctx context.Context, guildID string) error {
	if s.licenses == nil {
		return nil
	}

	rec, err := s.licenses.FetchEntitlement(ctx, guildID)
	if err != nil {
		slog.Warn("license fetch failed, keeping last known entitlement",
			"guild_id", guildID, "error", err)
		return nil
	}
	if err := s.Record(rec); err != nil {
		return fmt.Errorf("record fetched entitlement: %w", err)
	}
	return nil
}

// Lookup returns the stored record for a guild, or nil. Used by the admin
// surface.
func (s *EntitlementService) Lookup(guildID string) *entitlement.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[guildID]
}
