package simulator

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig wraps all config validation failures.
var ErrInvalidConfig = errors.New("simulator: invalid config")

// Config tunes the telemetry generator. All intervals and delays are
// expressed in minutes.
type Config struct {
	GenerationIntervalMinutes float64 `json:"generation_interval_minutes"`

	// Data loss per cycle: the fraction of each item group dropped, drawn
	// from N(mean, variance) and clamped to [0, 1].
	DataLossMean     float64 `json:"data_loss_mean"`
	DataLossVariance float64 `json:"data_loss_variance"`

	// Transmission delay per reading, drawn from a truncated normal over
	// [0, max] minutes.
	DelayMeanMinutes float64 `json:"delay_mean_minutes"`
	DelayStdMinutes  float64 `json:"delay_std_minutes"`
	DelayMaxMinutes  float64 `json:"delay_max_minutes"`

	// Multiplicative noise per sensor kind, as a percentage.
	PressureNoisePercent float64 `json:"pressure_noise_percent"`
	FlowNoisePercent     float64 `json:"flow_noise_percent"`
	LevelNoisePercent    float64 `json:"level_noise_percent"`
}

// DefaultConfig returns the generator defaults.
func DefaultConfig() Config {
	return Config{
		GenerationIntervalMinutes: 1,
		DataLossMean:              0.05,
		DataLossVariance:          0.02,
		DelayMeanMinutes:          0.5,
		DelayStdMinutes:           0.25,
		DelayMaxMinutes:           2,
		PressureNoisePercent:      2,
		FlowNoisePercent:          5,
		LevelNoisePercent:         1,
	}
}

// Validate checks every field range and reports all violations at once.
func (c Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.GenerationIntervalMinutes < 0.1 || c.GenerationIntervalMinutes > 1440 {
		bad("generation_interval_minutes %v outside [0.1, 1440]", c.GenerationIntervalMinutes)
	}
	if c.DataLossMean < 0 || c.DataLossMean > 1 {
		bad("data_loss_mean %v outside [0, 1]", c.DataLossMean)
	}
	if c.DataLossVariance < 0 || c.DataLossVariance > 0.5 {
		bad("data_loss_variance %v outside [0, 0.5]", c.DataLossVariance)
	}
	if c.DelayMeanMinutes < 0 {
		bad("delay_mean_minutes %v is negative", c.DelayMeanMinutes)
	}
	if c.DelayStdMinutes < 0 {
		bad("delay_std_minutes %v is negative", c.DelayStdMinutes)
	}
	if c.DelayMaxMinutes < 0 {
		bad("delay_max_minutes %v is negative", c.DelayMaxMinutes)
	}
	if c.DelayMeanMinutes >= c.DelayMaxMinutes {
		bad("delay_mean_minutes %v must be below delay_max_minutes %v",
			c.DelayMeanMinutes, c.DelayMaxMinutes)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"pressure_noise_percent", c.PressureNoisePercent},
		{"flow_noise_percent", c.FlowNoisePercent},
		{"level_noise_percent", c.LevelNoisePercent},
	} {
		if p.value < 0 || p.value > 50 {
			bad("%s %v outside [0, 50]", p.name, p.value)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
