package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/guildkit/guildkit/internal/domain"
	"github.com/guildkit/guildkit/internal/domain/entitlement"
)

type fakeLicense struct {
	rec *entitlement.Record
	err error
}

func (f *fakeLicense) FetchEntitlement(_ context.Context, _ string) (*entitlement.Record, error) {
	return f.rec, f.err
}

func TestEntitlementService_Record_Invalid(t *testing.T) {
	s := NewEntitlementService(nil)
	past := time.Now().Add(-time.Hour)

	err := s.Record(&entitlement.Record{GuildID: "g1", Plan: entitlement.PlanPro, ExpiresAt: &past})
	if !errors.Is(err, domain.ErrInvalidEntitlement) {
		t.Fatalf("expected ErrInvalidEntitlement for past expiry, got %v", err)
	}

	revoked := time.Now()
	err = s.Record(&entitlement.Record{GuildID: "g1", Plan: entitlement.PlanPro, RevokedAt: &revoked})
	if !errors.Is(err, domain.ErrInvalidEntitlement) {
		t.Fatalf("expected ErrInvalidEntitlement for pre-revoked record, got %v", err)
	}
}

func TestEntitlementService_Check_Reasons(t *testing.T) {
	s := NewEntitlementService(nil)

	if d := s.Check("unknown", "xp"); d.Granted || d.Reason != ReasonNoEntitlement {
		t.Fatalf("expected no_entitlement, got %+v", d)
	}

	if err := s.Record(&entitlement.Record{
		GuildID:  "g1",
		Plan:     entitlement.PlanTrial,
		Features: []string{"welcome", "xp"},
		IssuedAt: time.Now(),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if d := s.Check("g1", "xp"); !d.Granted {
		t.Fatalf("expected grant for xp, got %+v", d)
	}
	if d := s.Check("g1", "moderation"); d.Granted || d.Reason != ReasonFeatureNotGranted {
		t.Fatalf("expected feature_not_granted, got %+v", d)
	}

	if !s.Revoke("g1") {
		t.Fatal("expected Revoke to find record")
	}
	if d := s.Check("g1", "xp"); d.Granted || d.Reason != ReasonRevoked {
		t.Fatalf("expected revoked, got %+v", d)
	}
	if s.Revoke("g2") {
		t.Fatal("expected Revoke to report missing record")
	}
}

func TestEntitlementService_Check_Expiry(t *testing.T) {
	s := NewEntitlementService(nil)
	clock := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return clock }

	expires := clock.Add(24 * time.Hour)
	if err := s.Record(&entitlement.Record{
		GuildID: "g1", Plan: entitlement.PlanPro,
		Features: []string{"moderation"}, ExpiresAt: &expires,
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if d := s.Check("g1", "moderation"); !d.Granted {
		t.Fatalf("expected grant before expiry, got %+v", d)
	}

	clock = clock.Add(48 * time.Hour)
	if d := s.Check("g1", "moderation"); d.Granted || d.Reason != ReasonExpired {
		t.Fatalf("expected expired, got %+v", d)
	}
}

func TestEntitlementService_CheckPremium_TierLevel(t *testing.T) {
	s := NewEntitlementService(nil)

	// Plan above free grants baseline premium even with no feature keys.
	if err := s.Record(&entitlement.Record{GuildID: "g1", Plan: entitlement.PlanTrial}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if !s.CheckPremium("g1") {
		t.Fatal("trial plan should carry baseline premium access")
	}

	if err := s.Record(&entitlement.Record{GuildID: "g2", Plan: entitlement.PlanFree, Features: []string{"xp"}}); err != nil {
		t.Fatalf("record: %v", err)
	}
	if s.CheckPremium("g2") {
		t.Fatal("free plan should not carry premium access")
	}
}

func TestEntitlementService_Refresh_UnavailableKeepsLastKnown(t *testing.T) {
	lic := &fakeLicense{err: errors.New("license service down")}
	s := NewEntitlementService(lic)

	if err := s.Record(&entitlement.Record{GuildID: "g1", Plan: entitlement.PlanPro, Features: []string{"moderation"}}); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := s.Refresh(context.Background(), "g1"); err != nil {
		t.Fatalf("refresh must not fail on license outage: %v", err)
	}
	if d := s.Check("g1", "moderation"); !d.Granted {
		t.Fatalf("last known entitlement should survive outage, got %+v", d)
	}
}

func TestEntitlementService_Refresh_UpdatesRecord(t *testing.T) {
	lic := &fakeLicense{rec: &entitlement.Record{
		GuildID: "g1", Plan: entitlement.PlanScale, Features: []string{"moderation"}, IssuedAt: time.Now(),
	}}
	s := NewEntitlementService(lic)

	if err := s.Refresh(context.Background(), "g1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if d := s.Check("g1", "moderation"); !d.Granted {
		t.Fatalf("expected refreshed grant, got %+v", d)
	}
}
