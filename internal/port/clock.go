package port

import "time"

// Clock abstracts time to keep the engine deterministic in tests.
type Clock interface {
	Now() time.Time

	// Uptime is time since boot, or zero when the platform cannot report it.
	Uptime() time.Duration

	// BootID identifies the current boot, or "" when unavailable. Records
	// written in a different boot fall back to wall-clock arithmetic.
	BootID() string
}
