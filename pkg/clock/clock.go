package clock

import (
	"time"

	internalclock "github.com/SmitUplenchwar2687/wsreplay/internal/clock"
)

// Clock abstracts time so replay timing can run on real or virtual time.
type Clock = internalclock.Clock

// Timer is a cancellable one-shot timer created by a Clock.
type Timer = internalclock.Timer

// RealClock delegates to the standard time package.
type RealClock = internalclock.RealClock

// VirtualClock is a manually advanced clock for deterministic tests.
type VirtualClock = internalclock.VirtualClock

// NewRealClock creates a real wall-clock implementation.
func NewRealClock() *RealClock {
	return internalclock.NewRealClock()
}

// NewVirtualClock creates a virtual clock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return internalclock.NewVirtualClock(start)
}
