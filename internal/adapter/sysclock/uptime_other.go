//go:build !linux

package sysclock

import "time"

// No portable boot-relative reading here; a zero uptime makes the
// session record fall back to wall-clock arithmetic.

func uptime() time.Duration { return 0 }

func bootID() string { return "" }
