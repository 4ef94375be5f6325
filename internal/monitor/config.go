package monitor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/waterline-io/waterline/internal/model"
)

// ErrInvalidConfig wraps all config validation failures.
var ErrInvalidConfig = errors.New("monitor: invalid config")

// Config tunes the anomaly detection loop.
type Config struct {
	MonitoringIntervalMinutes float64 `json:"monitoring_interval_minutes"`

	// TimeWindowMinutes bounds how far back a cycle looks for readings
	// that arrived while the monitor was not watching.
	TimeWindowMinutes float64 `json:"time_window_minutes"`

	// Detection thresholds per sensor kind, as deviation percentages.
	PressureThresholdPercent float64 `json:"pressure_threshold_percent"`
	FlowThresholdPercent     float64 `json:"flow_threshold_percent"`
	LevelThresholdPercent    float64 `json:"level_threshold_percent"`

	// EnableTankFeedback forwards observed tank levels into the engine so
	// the next solve tracks the measured state.
	EnableTankFeedback bool `json:"enable_tank_feedback"`
}

// DefaultConfig returns the monitor defaults.
func DefaultConfig() Config {
	return Config{
		MonitoringIntervalMinutes: 1,
		TimeWindowMinutes:         5,
		PressureThresholdPercent:  10,
		FlowThresholdPercent:      15,
		LevelThresholdPercent:     10,
		EnableTankFeedback:        true,
	}
}

// Validate checks every field range and reports all violations at once.
func (c Config) Validate() error {
	var problems []string
	bad := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.MonitoringIntervalMinutes < 0.1 || c.MonitoringIntervalMinutes > 1440 {
		bad("monitoring_interval_minutes %v outside [0.1, 1440]", c.MonitoringIntervalMinutes)
	}
	if c.TimeWindowMinutes < 0.1 || c.TimeWindowMinutes > 60 {
		bad("time_window_minutes %v outside [0.1, 60]", c.TimeWindowMinutes)
	}
	for _, p := range []struct {
		name  string
		value float64
	}{
		{"pressure_threshold_percent", c.PressureThresholdPercent},
		{"flow_threshold_percent", c.FlowThresholdPercent},
		{"level_threshold_percent", c.LevelThresholdPercent},
	} {
		if p.value < 0 || p.value > 100 {
			bad("%s %v outside [0, 100]", p.name, p.value)
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) threshold(sensor model.SensorKind) float64 {
	switch sensor {
	case model.SensorPressure:
		return c.PressureThresholdPercent
	case model.SensorFlow:
		return c.FlowThresholdPercent
	case model.SensorLevel:
		return c.LevelThresholdPercent
	default:
		return 0
	}
}
