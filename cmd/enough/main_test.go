package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/enough/enough/internal/domain"
	"github.com/enough/enough/internal/usecase/engine"
)

func TestExitCodeMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.ErrAlreadyActive, 2},
		{fmt.Errorf("start: %w", domain.ErrAlreadyActive), 2},
		{domain.ErrNotActive, 3},
		{domain.ErrStillLocked, 4},
		{fmt.Errorf("stop: %w", domain.ErrStillLocked), 4},
		{domain.ErrPermissionDenied, 5},
		{errors.New("something else"), 1},
	}
	for _, tc := range cases {
		if got := exitCode(tc.err); got != tc.want {
			t.Errorf("exitCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}

func TestStatusLine(t *testing.T) {
	if got := statusLine(engine.StatusReport{Status: engine.StatusNone}); got != "none" {
		t.Errorf("none line = %q", got)
	}

	active := engine.StatusReport{
		Status:      engine.StatusActive,
		ProfileName: "lock-in",
		Remaining:   83*time.Minute + 20*time.Second,
	}
	if got := statusLine(active); got != "lock-in 1h23m20s" {
		t.Errorf("active line = %q", got)
	}

	expired := engine.StatusReport{Status: engine.StatusExpired, ProfileName: "lock-in"}
	if got := statusLine(expired); got != "lock-in expired" {
		t.Errorf("expired line = %q", got)
	}
}

func TestStatusJSONShape(t *testing.T) {
	start := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	rep := engine.StatusReport{
		Status:       engine.StatusActive,
		ProfileName:  "lock-in",
		StartedAt:    start,
		ExpiresAt:    start.Add(90 * time.Minute),
		Remaining:    time.Hour,
		Websites:     2,
		Applications: 1,
	}
	out := statusJSON(rep)
	if out["status"] != "active" || out["profile"] != "lock-in" {
		t.Errorf("unexpected payload: %v", out)
	}
	if out["remaining_seconds"] != 3600 {
		t.Errorf("remaining_seconds = %v, want 3600", out["remaining_seconds"])
	}

	none := statusJSON(engine.StatusReport{Status: engine.StatusNone, CorruptState: true})
	if none["status"] != "none" || none["corrupt_state"] != true {
		t.Errorf("none payload: %v", none)
	}
	if _, ok := none["profile"]; ok {
		t.Error("none payload must not carry profile fields")
	}
}
