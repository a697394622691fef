package domain

import (
	"testing"
	"time"
)

func activeRecord() SessionRecord {
	return SessionRecord{
		ID:          "s1",
		ProfileName: "lock-in",
		StartedAt:   time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC),
		StartUptime: time.Hour,
		BootID:      "boot-1",
		Duration:    90 * time.Minute,
		State:       SessionActive,
	}
}

func TestElapsedPrefersUptimeWithinSameBoot(t *testing.T) {
	r := activeRecord()
	// Wall clock was pushed forward two days; uptime says 30 minutes.
	now := r.StartedAt.Add(48 * time.Hour)
	if got := r.Elapsed(now, r.StartUptime+30*time.Minute, "boot-1"); got != 30*time.Minute {
		t.Errorf("elapsed = %v, want 30m from uptime", got)
	}
	if r.IsExpired(now, r.StartUptime+30*time.Minute, "boot-1") {
		t.Error("session must not expire from a wall-clock jump")
	}
}

func TestElapsedFallsBackToWallAfterReboot(t *testing.T) {
	r := activeRecord()
	now := r.StartedAt.Add(2 * time.Hour)
	if got := r.Elapsed(now, 5*time.Minute, "boot-2"); got != 2*time.Hour {
		t.Errorf("elapsed = %v, want 2h wall-clock fallback", got)
	}
	if !r.IsExpired(now, 5*time.Minute, "boot-2") {
		t.Error("session should be expired after the reboot")
	}
}

func TestElapsedClampsBackwardsWallClock(t *testing.T) {
	r := activeRecord()
	r.BootID = ""
	now := r.StartedAt.Add(-time.Hour)
	if got := r.Elapsed(now, 0, ""); got != 0 {
		t.Errorf("elapsed = %v, want 0 when wall clock runs backwards", got)
	}
}

func TestRemainingClampsAtZero(t *testing.T) {
	r := activeRecord()
	now := r.StartedAt.Add(3 * time.Hour)
	if got := r.Remaining(now, r.StartUptime+3*time.Hour, "boot-1"); got != 0 {
		t.Errorf("remaining = %v, want 0", got)
	}
}

func TestExpiresAt(t *testing.T) {
	r := activeRecord()
	want := time.Date(2026, 8, 26, 10, 30, 0, 0, time.UTC)
	if got := r.ExpiresAt(); !got.Equal(want) {
		t.Errorf("expires at %v, want %v", got, want)
	}
}
