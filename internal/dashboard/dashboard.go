// Package dashboard derives the operator-facing network summary: demand and
// pressure deviation over a recent window, sensor coverage, anomaly rate,
// and a composite health score.
package dashboard

import (
	"fmt"
	"time"

	"github.com/maypok86/otter"

	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/randutil"
	"github.com/waterline-io/waterline/internal/simclock"
	"github.com/waterline-io/waterline/internal/store"
)

// Health score weights and normalization slopes. Tuning is out of scope;
// the slopes map a 50% anomaly rate, 20% pressure deviation and 30% demand
// deviation to a zero sub-score.
const (
	anomalySlope  = 2
	pressureSlope = 5
	demandSlope   = 3.33

	anomalyWeight  = 0.4
	pressureWeight = 0.3
	demandWeight   = 0.2
	coverageWeight = 0.1
)

// Metrics is one dashboard snapshot.
type Metrics struct {
	NetworkID     string  `json:"network_id"`
	WindowMinutes float64 `json:"window_minutes"`
	GeneratedAtNs int64   `json:"generated_at_ns"`

	TotalDemandSCADA         float64 `json:"total_demand_scada"`
	TotalDemandExpected      float64 `json:"total_demand_expected"`
	DemandDeviationPercent   float64 `json:"demand_deviation_percent"`
	AvgPressureSCADA         float64 `json:"avg_pressure_scada"`
	AvgPressureExpected      float64 `json:"avg_pressure_expected"`
	PressureDeviationPercent float64 `json:"pressure_deviation_percent"`

	SensorCoveragePercent float64 `json:"sensor_coverage_percent"`
	ReadingCount          int     `json:"reading_count"`
	AnomalyCount          int     `json:"anomaly_count"`
	AnomalyRatePercent    float64 `json:"anomaly_rate_percent"`

	HealthScore  float64 `json:"health_score"`
	HealthStatus string  `json:"health_status"`
}

// Compute aggregates one window of readings, expected values and anomalies
// into dashboard metrics. Pure: same inputs, same output.
func Compute(readings []model.SCADAReading, expected []model.ExpectedValue, anomalyCount, itemCount int) Metrics {
	var m Metrics
	m.ReadingCount = len(readings)
	m.AnomalyCount = anomalyCount

	var pressureSum float64
	var pressureN int
	for _, r := range readings {
		switch r.SensorKind {
		case model.SensorFlow:
			m.TotalDemandSCADA += r.Value
		case model.SensorPressure:
			pressureSum += r.Value
			pressureN++
		}
	}
	if pressureN > 0 {
		m.AvgPressureSCADA = pressureSum / float64(pressureN)
	}

	var expPressureSum float64
	var expPressureN int
	for _, v := range expected {
		switch v.SensorKind {
		case model.SensorFlow:
			m.TotalDemandExpected += v.ExpectedValue
		case model.SensorPressure:
			expPressureSum += v.ExpectedValue
			expPressureN++
		}
	}
	if expPressureN > 0 {
		m.AvgPressureExpected = expPressureSum / float64(expPressureN)
	}

	if m.TotalDemandExpected > 0 {
		m.DemandDeviationPercent = (m.TotalDemandSCADA - m.TotalDemandExpected) / m.TotalDemandExpected * 100
	}
	if m.AvgPressureExpected > 0 {
		m.PressureDeviationPercent = (m.AvgPressureSCADA - m.AvgPressureExpected) / m.AvgPressureExpected * 100
	}

	if itemCount > 0 {
		seen := make(map[string]struct{}, len(readings))
		for _, r := range readings {
			seen[r.LocationID] = struct{}{}
		}
		m.SensorCoveragePercent = float64(len(seen)) / float64(itemCount) * 100
	}

	if len(readings) > 0 {
		m.AnomalyRatePercent = float64(anomalyCount) / float64(len(readings)) * 100
	}

	m.HealthScore, m.HealthStatus = healthScore(m)
	return m
}

func healthScore(m Metrics) (float64, string) {
	anomalyScore := randutil.Clamp(100-anomalySlope*m.AnomalyRatePercent, 0, 100)
	pressureScore := randutil.Clamp(100-pressureSlope*abs(m.PressureDeviationPercent), 0, 100)
	demandScore := randutil.Clamp(100-demandSlope*abs(m.DemandDeviationPercent), 0, 100)

	health := randutil.Clamp(
		anomalyWeight*anomalyScore+
			pressureWeight*pressureScore+
			demandWeight*demandScore+
			coverageWeight*m.SensorCoveragePercent,
		0, 100)

	switch {
	case health >= 80:
		return health, "excellent"
	case health >= 60:
		return health, "good"
	case health >= 40:
		return health, "fair"
	default:
		return health, "poor"
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// Aggregator serves dashboard metrics from the store with a short-TTL cache
// so a busy dashboard does not hammer SQLite.
type Aggregator struct {
	store *store.Store
	clock simclock.Clock
	cache otter.CacheWithVariableTTL[string, Metrics]
	ttl   time.Duration
}

// NewAggregator builds an aggregator caching up to capacity snapshots for
// ttl each. A nil clock means the system clock.
func NewAggregator(s *store.Store, clock simclock.Clock, ttl time.Duration, capacity int) (*Aggregator, error) {
	if clock == nil {
		clock = simclock.System{}
	}
	if capacity <= 0 {
		capacity = 64
	}
	if ttl <= 0 {
		ttl = 5 * time.Second
	}
	cache, err := otter.MustBuilder[string, Metrics](capacity).
		Cost(func(string, Metrics) uint32 { return 1 }).
		WithVariableTTL().
		Build()
	if err != nil {
		return nil, fmt.Errorf("dashboard cache: %w", err)
	}
	return &Aggregator{store: s, clock: clock, cache: cache, ttl: ttl}, nil
}

// Metrics computes (or serves from cache) the dashboard snapshot for one
// network over the trailing window.
func (a *Aggregator) Metrics(networkID string, windowMinutes float64) (Metrics, error) {
	key := fmt.Sprintf("%s|%g", networkID, windowMinutes)
	if m, ok := a.cache.Get(key); ok {
		return m, nil
	}

	if _, err := a.store.GetNetwork(networkID); err != nil {
		return Metrics{}, err
	}

	now := a.clock.Now()
	nowNs := now.UnixNano()
	afterNs := now.Add(-time.Duration(windowMinutes * float64(time.Minute))).UnixNano()

	readings, err := a.store.QueryReadings(networkID, afterNs, nowNs)
	if err != nil {
		return Metrics{}, err
	}
	expected, err := a.store.QueryExpectedValues(networkID, afterNs, nowNs)
	if err != nil {
		return Metrics{}, err
	}
	anomalies, err := a.store.CountAnomalies(networkID, afterNs, nowNs)
	if err != nil {
		return Metrics{}, err
	}
	items, err := a.store.NetworkItems(networkID)
	if err != nil {
		return Metrics{}, err
	}

	m := Compute(readings, expected, anomalies, len(items))
	m.NetworkID = networkID
	m.WindowMinutes = windowMinutes
	m.GeneratedAtNs = nowNs

	a.cache.Set(key, m, a.ttl)
	return m, nil
}

// Invalidate drops all cached snapshots for a network.
func (a *Aggregator) Invalidate(networkID string) {
	a.cache.DeleteByFunc(func(key string, _ Metrics) bool {
		return len(key) > len(networkID) && key[:len(networkID)] == networkID && key[len(networkID)] == '|'
	})
}

// Close releases the cache's background resources.
func (a *Aggregator) Close() {
	a.cache.Close()
}
