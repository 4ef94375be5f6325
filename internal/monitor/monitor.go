// Package monitor runs the anomaly detection loop: each cycle it solves the
// network's hydraulic model, compares new SCADA readings against the model's
// expectations, and persists anomalies and expected values. Anomalies are
// the system of record; expected values are advisory history.
package monitor

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/waterline-io/waterline/internal/baseline"
	"github.com/waterline-io/waterline/internal/hydraulic"
	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/scanloop"
	"github.com/waterline-io/waterline/internal/simclock"
	"github.com/waterline-io/waterline/internal/store"
)

var (
	ErrAlreadyRunning = errors.New("monitor: already running")
	ErrNotRunning     = errors.New("monitor: not running")
)

// State is the monitor lifecycle state.
type State string

const (
	StateStopped  State = "stopped"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateError    State = "error"
)

// maxConsecutiveCycleFailures is the point where store failures stop being
// treated as transient: the loop parks in the error state and exits.
const maxConsecutiveCycleFailures = 5

// Status is a point-in-time snapshot of the monitor.
type Status struct {
	State             State  `json:"state"`
	NetworkID         string `json:"network_id"`
	CyclesCompleted   int64  `json:"cycles_completed"`
	CyclesFailed      int64  `json:"cycles_failed"`
	ReadingsProcessed int64  `json:"readings_processed"`
	AnomaliesDetected int64  `json:"anomalies_detected"`
	LastCycleAtNs     int64  `json:"last_cycle_at_ns"`
	WatermarkNs       int64  `json:"watermark_ns"`
	LastError         string `json:"last_error,omitempty"`
	Config            Config `json:"config"`
}

// Monitor runs the detection loop for one network at a time. It exclusively
// owns its hydraulic engine between Start and Stop.
type Monitor struct {
	store    *store.Store
	registry *baseline.Registry
	loader   hydraulic.Loader
	clock    simclock.Clock

	// newID mints anomaly ids; swapped for a counter in tests.
	newID func() string

	mu       sync.Mutex
	status   Status
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// watermark survives Stop/Start for the same network so restarts do
	// not re-flag already-processed readings.
	watermarkNs   int64
	lastNetworkID string

	// per-run state, owned by the loop goroutine after Start
	cfg                 Config
	networkID           string
	items               []model.NetworkItem
	engine              hydraulic.Engine
	consecutiveFailures int
}

// New returns a stopped monitor. A nil clock means the system clock.
func New(s *store.Store, reg *baseline.Registry, loader hydraulic.Loader, clock simclock.Clock) *Monitor {
	if clock == nil {
		clock = simclock.System{}
	}
	return &Monitor{
		store:    s,
		registry: reg,
		loader:   loader,
		clock:    clock,
		newID:    uuid.NewString,
		status:   Status{State: StateStopped},
	}
}

// Start validates the config and the network's baseline, loads a fresh
// engine, runs the initial solve, and launches the detection loop.
func (m *Monitor) Start(networkID string, cfg Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.status.State == StateStarting || m.status.State == StateRunning {
		return ErrAlreadyRunning
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.status = Status{State: StateStarting, NetworkID: networkID, Config: cfg}

	network, err := m.store.GetNetwork(networkID)
	if err != nil {
		m.status = Status{State: StateStopped}
		return err
	}
	items, err := m.registry.Items(networkID)
	if err != nil {
		m.status = Status{State: StateStopped}
		return err
	}

	engine, err := m.loader([]byte(network.Definition))
	if err != nil {
		m.status = Status{State: StateStopped}
		return fmt.Errorf("monitor load engine: %w", err)
	}
	if err := engine.SolveComplete(); err != nil {
		engine.Close() //nolint:errcheck
		m.status = Status{State: StateStopped}
		return fmt.Errorf("monitor initial solve: %w", err)
	}

	if networkID != m.lastNetworkID {
		m.watermarkNs = 0
		m.lastNetworkID = networkID
	}

	m.cfg = cfg
	m.networkID = networkID
	m.items = items
	m.engine = engine
	m.consecutiveFailures = 0

	m.stopCh = make(chan struct{})
	m.stopOnce = sync.Once{}
	m.status.State = StateRunning
	m.status.WatermarkNs = m.watermarkNs
	interval := time.Duration(cfg.MonitoringIntervalMinutes * float64(time.Minute))

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		scanloop.Run(m.stopCh, interval, m.cycle)
	}()

	log.Printf("[monitor] started network=%s interval=%s watermark_ns=%d",
		networkID, interval, m.watermarkNs)
	return nil
}

// Stop shuts the loop down, waits for the in-flight cycle, and closes the
// engine. The watermark is kept for a later restart on the same network.
func (m *Monitor) Stop() error {
	m.mu.Lock()
	if m.status.State != StateStarting && m.status.State != StateRunning {
		m.mu.Unlock()
		return ErrNotRunning
	}
	m.stopOnce.Do(func() { close(m.stopCh) })
	m.mu.Unlock()

	m.wg.Wait()

	m.mu.Lock()
	if err := m.engine.Close(); err != nil {
		log.Printf("[monitor] warning: close engine: %v", err)
	}
	m.engine = nil
	m.status.State = StateStopped
	m.mu.Unlock()
	log.Printf("[monitor] stopped network=%s", m.networkID)
	return nil
}

// Status returns a snapshot of the monitor's state and counters.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// cycle processes readings newer than the watermark (bounded by the time
// window), flags deviations, and records the model's expected values.
func (m *Monitor) cycle() {
	cycleStart := m.clock.Now()
	cycleStartNs := cycleStart.UnixNano()
	hour := simclock.HourOfDay(cycleStart)

	afterNs := cycleStart.Add(-time.Duration(m.cfg.TimeWindowMinutes * float64(time.Minute))).UnixNano()
	if m.watermarkNs > afterNs {
		afterNs = m.watermarkNs
	}

	readings, err := m.store.QueryReadings(m.networkID, afterNs, cycleStartNs)
	if err != nil {
		m.failCycle(cycleStartNs, fmt.Errorf("query readings: %w", err))
		return
	}

	if err := m.engine.SolveComplete(); err != nil {
		m.failCycle(cycleStartNs, fmt.Errorf("solve: %w", err))
		return
	}
	pressures := m.engine.Pressures()
	flows := m.engine.Flows()
	levels := m.engine.TankLevels()

	var anomalies []model.Anomaly
	for _, r := range readings {
		expected, ok := m.expectedFor(r.SensorKind, r.LocationID, pressures, flows, levels)
		if !ok {
			continue
		}
		deviation := DeviationPercent(r.Value, expected)
		threshold := m.cfg.threshold(r.SensorKind)
		if deviation <= threshold {
			continue
		}
		anomalies = append(anomalies, model.Anomaly{
			ID:               m.newID(),
			NetworkID:        m.networkID,
			TsNs:             cycleStartNs,
			SensorID:         r.SensorID,
			SensorKind:       r.SensorKind,
			LocationID:       r.LocationID,
			Actual:           r.Value,
			Expected:         expected,
			DeviationPercent: deviation,
			ThresholdPercent: threshold,
			Severity:         Classify(deviation, threshold),
		})
	}

	// Anomalies are the system of record: a failed write loses the cycle so
	// the readings are re-examined next time.
	if err := m.store.InsertAnomalies(anomalies); err != nil {
		m.failCycle(cycleStartNs, fmt.Errorf("persist anomalies: %w", err))
		return
	}

	if err := m.store.InsertExpectedValues(m.expectedRows(cycleStartNs, hour, pressures, flows, levels)); err != nil {
		// Advisory history only; the watermark still advances.
		log.Printf("[monitor] warning: persist expected values network=%s: %v", m.networkID, err)
	}

	if m.cfg.EnableTankFeedback {
		m.feedTankLevels(readings)
	}

	watermark := cycleStartNs
	if n := len(readings); n > 0 {
		watermark = readings[n-1].TsNs
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.consecutiveFailures = 0
	m.watermarkNs = watermark
	m.status.WatermarkNs = watermark
	m.status.LastCycleAtNs = cycleStartNs
	m.status.CyclesCompleted++
	m.status.ReadingsProcessed += int64(len(readings))
	m.status.AnomaliesDetected += int64(len(anomalies))
	m.status.LastError = ""
}

func (m *Monitor) failCycle(cycleStartNs int64, err error) {
	log.Printf("[monitor] warning: cycle network=%s: %v", m.networkID, err)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status.LastCycleAtNs = cycleStartNs
	m.status.CyclesFailed++
	m.status.LastError = err.Error()
	m.consecutiveFailures++
	if m.consecutiveFailures >= maxConsecutiveCycleFailures {
		log.Printf("[monitor] error: %d consecutive cycle failures network=%s, exiting loop",
			m.consecutiveFailures, m.networkID)
		m.status.State = StateError
		m.stopOnce.Do(func() { close(m.stopCh) })
		if err := m.engine.Close(); err != nil {
			log.Printf("[monitor] warning: close engine: %v", err)
		}
		m.engine = nil
	}
}

func (m *Monitor) expectedFor(kind model.SensorKind, locationID string,
	pressures, flows, levels map[string]float64) (float64, bool) {
	switch kind {
	case model.SensorPressure:
		v, ok := pressures[locationID]
		return v, ok
	case model.SensorFlow:
		v, ok := flows[locationID]
		return v, ok
	case model.SensorLevel:
		v, ok := levels[locationID]
		return v, ok
	default:
		return 0, false
	}
}

// expectedRows snapshots the model's expectation for every network item.
func (m *Monitor) expectedRows(tsNs int64, hour float64,
	pressures, flows, levels map[string]float64) []model.ExpectedValue {
	var rows []model.ExpectedValue
	add := func(locationID string, sensor model.SensorKind, value float64, ok bool) {
		if !ok {
			return
		}
		rows = append(rows, model.ExpectedValue{
			NetworkID:     m.networkID,
			TsNs:          tsNs,
			LocationID:    locationID,
			SensorKind:    sensor,
			ExpectedValue: value,
			EPSHour:       hour,
		})
	}

	for _, it := range m.items {
		switch it.Kind {
		case model.ItemJunction:
			v, ok := pressures[it.ItemID]
			add(it.ItemID, model.SensorPressure, v, ok)
		case model.ItemPipe:
			v, ok := flows[it.ItemID]
			add(it.ItemID, model.SensorFlow, v, ok)
		case model.ItemTank:
			p, ok := pressures[it.ItemID]
			add(it.ItemID, model.SensorPressure, p, ok)
			lv, ok := levels[it.ItemID]
			add(it.ItemID, model.SensorLevel, lv, ok)
		}
	}
	return rows
}

// feedTankLevels forwards observed tank levels into the engine so the next
// cycle's solve tracks the measured state. Per-tank failures are logged and
// do not affect the cycle.
func (m *Monitor) feedTankLevels(readings []model.SCADAReading) {
	for _, r := range readings {
		if r.SensorKind != model.SensorLevel {
			continue
		}
		if err := m.engine.SetTankLevel(r.LocationID, r.Value); err != nil {
			log.Printf("[monitor] warning: tank feedback %s: %v", r.LocationID, err)
		}
	}
}
