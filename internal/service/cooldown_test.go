package service

import (
	"testing"
	"time"
)

func TestCooldownTable_PutAndExpire(t *testing.T) {
	table := NewCooldownTable()
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	table.now = func() time.Time { return clock }

	table.Put("ping", "user-1", 5*time.Second)

	remaining := table.Remaining("ping", "user-1")
	if remaining <= 0 || remaining > 5*time.Second {
		t.Fatalf("expected remaining in (0, 5s], got %v", remaining)
	}

	// Advance past expiry; entry is removed lazily on check.
	clock = clock.Add(6 * time.Second)
	if remaining := table.Remaining("ping", "user-1"); remaining != 0 {
		t.Fatalf("expected expired cooldown, got %v", remaining)
	}
	if table.Clear("ping", "user-1") {
		t.Fatal("lazy expiry should have removed the entry")
	}
}

func TestCooldownTable_ZeroDurationIgnored(t *testing.T) {
	table := NewCooldownTable()
	table.Put("ping", "user-1", 0)
	if remaining := table.Remaining("ping", "user-1"); remaining != 0 {
		t.Fatalf("zero-duration cooldown should not be recorded, got %v", remaining)
	}
}

func TestCooldownTable_Clear(t *testing.T) {
	table := NewCooldownTable()
	table.Put("ping", "user-1", time.Minute)

	if !table.Clear("ping", "user-1") {
		t.Fatal("expected Clear to report an existing entry")
	}
	if remaining := table.Remaining("ping", "user-1"); remaining != 0 {
		t.Fatalf("cleared cooldown still live: %v", remaining)
	}
}

func TestCooldownTable_ClearCommand(t *testing.T) {
	table := NewCooldownTable()
	table.Put("ping", "user-1", time.Minute)
	table.Put("ping", "user-2", time.Minute)
	table.Put("pong", "user-1", time.Minute)

	if removed := table.ClearCommand("ping"); removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if remaining := table.Remaining("pong", "user-1"); remaining == 0 {
		t.Fatal("other command's cooldown should survive")
	}
}
