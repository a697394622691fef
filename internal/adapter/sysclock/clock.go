// Package sysclock is the system implementation of port.Clock.
package sysclock

import "time"

type Clock struct{}

func New() Clock { return Clock{} }

func (Clock) Now() time.Time { return time.Now() }

func (Clock) Uptime() time.Duration { return uptime() }

func (Clock) BootID() string { return bootID() }
