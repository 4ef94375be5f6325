// Package simclock provides the wall-clock seam used by the simulator and
// monitor loops so cycle logic is testable with a frozen clock.
package simclock

import "time"

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// System is the real wall clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// HourOfDay returns the fractional hour of day of t in local time,
// in [0, 24).
func HourOfDay(t time.Time) float64 {
	return float64(t.Hour()) +
		float64(t.Minute())/60 +
		float64(t.Second())/3600 +
		float64(t.Nanosecond())/3.6e12
}

// Frozen is a Clock fixed at a settable instant.
type Frozen struct {
	T time.Time
}

func (f *Frozen) Now() time.Time { return f.T }

// Advance moves the frozen clock forward by d.
func (f *Frozen) Advance(d time.Duration) { f.T = f.T.Add(d) }
