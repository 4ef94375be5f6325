package monitor

import (
	"math"

	"github.com/waterline-io/waterline/internal/model"
)

// nearZero guards the relative-deviation denominator. Expected values this
// close to zero fall back to absolute deviation.
const nearZero = 1e-4

// DeviationPercent measures how far an observation strays from the model's
// expectation: relative (percent) in the normal case, absolute when the
// expectation is effectively zero.
func DeviationPercent(actual, expected float64) float64 {
	if math.Abs(expected) > nearZero {
		return math.Abs(actual-expected) / math.Abs(expected) * 100
	}
	return math.Abs(actual - expected)
}

// Classify maps a deviation already past its threshold to a severity by the
// deviation-to-threshold ratio.
func Classify(deviationPercent, thresholdPercent float64) model.Severity {
	ratio := math.Inf(1)
	if thresholdPercent > 0 {
		ratio = deviationPercent / thresholdPercent
	}
	switch {
	case ratio >= 2:
		return model.SeverityCritical
	case ratio >= 1.5:
		return model.SeverityHigh
	default:
		return model.SeverityMedium
	}
}
