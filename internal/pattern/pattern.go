// Package pattern implements the diurnal demand multiplier: a deterministic,
// piecewise-linear time-of-day scaling factor applied to sensor baselines.
package pattern

import "math"

// anchor is one (hour, multiplier) breakpoint of the diurnal curve.
type anchor struct {
	hour float64
	mult float64
}

// anchors define the nine linear segments of the curve. The final anchor at
// hour 24 equals the first at hour 0, keeping the curve continuous across
// midnight.
var anchors = []anchor{
	{0, 0.8},
	{6, 0.7},
	{8, 1.4},
	{10, 1.4},
	{12, 1.0},
	{14, 0.6},
	{18, 0.9},
	{20, 1.3},
	{22, 1.0},
	{24, 0.8},
}

// Multiplier returns the demand multiplier for the given hour of day.
// Inputs outside [0, 24) are normalized modulo 24; negative hours wrap.
// The result is always within [0.6, 1.4].
func Multiplier(hour float64) float64 {
	h := math.Mod(hour, 24)
	if h < 0 {
		h += 24
	}

	for i := 0; i < len(anchors)-1; i++ {
		lo, hi := anchors[i], anchors[i+1]
		if h < hi.hour {
			frac := (h - lo.hour) / (hi.hour - lo.hour)
			return lo.mult + frac*(hi.mult-lo.mult)
		}
	}
	return anchors[0].mult
}
