package domain

import "time"

// Profile is a named, already-validated blocking configuration.
// It is immutable once resolved for a session; the engine snapshots
// its targets into the session record.
type Profile struct {
	Name     string
	Duration time.Duration
	Targets  []BlockTarget
}

// CountByKind returns how many targets of the given kind the profile has.
func CountByKind(targets []BlockTarget, kind TargetKind) int {
	n := 0
	for _, t := range targets {
		if t.Kind == kind {
			n++
		}
	}
	return n
}
