package engine

import (
	"context"
	"sync/atomic"
	"time"
)

// DefaultTickInterval is how often the watchdog re-asserts blocks.
const DefaultTickInterval = 5 * time.Second

// RunWatchdog drives Tick until the session is gone or ctx is
// cancelled. The first tick runs synchronously before the loop starts,
// so a session left behind by a crash or reboot is recovered
// immediately. Returns nil once no session remains.
func (e *Engine) RunWatchdog(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultTickInterval
	}

	var inFlight atomic.Bool
	runTick := func() {
		// A tick stuck on a slow target must not stack another behind it.
		if !inFlight.CompareAndSwap(false, true) {
			e.log.Warn("previous tick still running, skipping")
			return
		}
		defer inFlight.Store(false)
		if err := e.Tick(ctx); err != nil {
			e.log.Error("tick failed", "error", err)
		}
	}

	runTick()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		rep, err := e.Status(ctx)
		if err == nil && rep.Status == StatusNone {
			e.log.Debug("no session remains, watchdog exiting")
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			runTick()
		}
	}
}
