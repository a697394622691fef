package domain

import "time"

// SessionState is the lifecycle tag of a session record.
type SessionState string

const (
	SessionActive  SessionState = "active"
	SessionExpired SessionState = "expired"
	SessionStopped SessionState = "stopped"
)

// SessionRecord is the persisted aggregate for the single enforced
// session. At most one record exists at a time; it is the source of
// truth for intent and must stay enforceable even if the config file
// changes, so it carries a snapshot of the resolved targets.
//
// StartedAt is wall clock and used for display. StartUptime and BootID
// pin the start to a boot-relative instant: within the same boot the
// elapsed time is computed from uptime and is immune to wall-clock
// edits, after a reboot it falls back to the wall-clock difference.
type SessionRecord struct {
	ID          string        `yaml:"id"`
	ProfileName string        `yaml:"profile"`
	Targets     []BlockTarget `yaml:"targets"`
	StartedAt   time.Time     `yaml:"started_at"`
	StartUptime time.Duration `yaml:"start_uptime"`
	BootID      string        `yaml:"boot_id,omitempty"`
	Duration    time.Duration `yaml:"duration"`
	State       SessionState  `yaml:"state"`
}

// Elapsed reports how long the session has been running, preferring the
// boot-relative reading when the record was written in the current boot.
func (r SessionRecord) Elapsed(now time.Time, uptime time.Duration, bootID string) time.Duration {
	if r.BootID != "" && bootID == r.BootID && uptime >= r.StartUptime && uptime > 0 {
		return uptime - r.StartUptime
	}
	e := now.Sub(r.StartedAt)
	if e < 0 {
		return 0
	}
	return e
}

// Remaining is Duration minus Elapsed, clamped at zero.
func (r SessionRecord) Remaining(now time.Time, uptime time.Duration, bootID string) time.Duration {
	rem := r.Duration - r.Elapsed(now, uptime, bootID)
	if rem < 0 {
		return 0
	}
	return rem
}

// IsExpired reports whether elapsed time has reached the duration.
func (r SessionRecord) IsExpired(now time.Time, uptime time.Duration, bootID string) bool {
	return r.Elapsed(now, uptime, bootID) >= r.Duration
}

// ExpiresAt is the wall-clock end of the session, for display only.
func (r SessionRecord) ExpiresAt() time.Time {
	return r.StartedAt.Add(r.Duration)
}
