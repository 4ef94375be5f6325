// Package simulator synthesizes SCADA telemetry for one network: per cycle
// it scales every baseline by the diurnal demand curve, adds sensor noise,
// drops a random fraction of each item group, and backdates each reading by
// a transmission delay.
package simulator

import (
	"errors"
	"log"
	"math"
	"sync"
	"time"

	"github.com/waterline-io/waterline/internal/baseline"
	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/pattern"
	"github.com/waterline-io/waterline/internal/randutil"
	"github.com/waterline-io/waterline/internal/scanloop"
	"github.com/waterline-io/waterline/internal/simclock"
	"github.com/waterline-io/waterline/internal/store"
)

var (
	ErrAlreadyRunning = errors.New("simulator: already running")
	ErrNotRunning     = errors.New("simulator: not running")
)

// State is the simulator lifecycle state.
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

// Status is a point-in-time snapshot of the simulator.
type Status struct {
	State             State  `json:"state"`
	NetworkID         string `json:"network_id"`
	CyclesCompleted   int64  `json:"cycles_completed"`
	CyclesFailed      int64  `json:"cycles_failed"`
	ReadingsGenerated int64  `json:"readings_generated"`
	LastCycleAtNs     int64  `json:"last_cycle_at_ns"`
	LastError         string `json:"last_error,omitempty"`
	Config            Config `json:"config"`
}

// Simulator runs the telemetry generation loop for one network at a time.
type Simulator struct {
	store    *store.Store
	registry *baseline.Registry
	clock    simclock.Clock

	// newRNG seeds each run; swapped for a deterministic source in tests.
	newRNG func() *randutil.Source

	mu       sync.Mutex
	status   Status
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	// per-run state, set by Start and read only by the loop goroutine
	cfg                 Config
	networkID           string
	junctions           []string
	pipes               []string
	tanks               []string
	baselines           map[baseline.Key]float64
	rng                 *randutil.Source
	consecutiveFailures int
}

// New returns a stopped simulator. A nil clock means the system clock.
func New(s *store.Store, reg *baseline.Registry, clock simclock.Clock) *Simulator {
	if clock == nil {
		clock = simclock.System{}
	}
	return &Simulator{
		store:    s,
		registry: reg,
		clock:    clock,
		newRNG:   randutil.NewRandom,
		status:   Status{State: StateStopped},
	}
}

// Start validates the config and the network's baseline, then launches the
// generation loop. Only one run may be active at a time.
func (s *Simulator) Start(networkID string, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.State == StateStarting || s.status.State == StateRunning {
		return ErrAlreadyRunning
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.status = Status{State: StateStarting, NetworkID: networkID, Config: cfg}

	baselines, err := s.registry.BaselineMap(networkID)
	if err != nil {
		s.status = Status{State: StateStopped}
		return err
	}
	items, err := s.registry.Items(networkID)
	if err != nil {
		s.status = Status{State: StateStopped}
		return err
	}

	s.cfg = cfg
	s.networkID = networkID
	s.baselines = baselines
	s.junctions = s.junctions[:0]
	s.pipes = s.pipes[:0]
	s.tanks = s.tanks[:0]
	for _, it := range items {
		switch it.Kind {
		case model.ItemJunction:
			s.junctions = append(s.junctions, it.ItemID)
		case model.ItemPipe:
			s.pipes = append(s.pipes, it.ItemID)
		case model.ItemTank:
			s.tanks = append(s.tanks, it.ItemID)
		}
	}
	s.rng = s.newRNG()
	s.consecutiveFailures = 0

	s.stopCh = make(chan struct{})
	s.stopOnce = sync.Once{}
	s.status.State = StateRunning
	interval := time.Duration(cfg.GenerationIntervalMinutes * float64(time.Minute))

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		scanloop.Run(s.stopCh, interval, s.cycle)
	}()

	log.Printf("[simulator] started network=%s interval=%s items=%d",
		networkID, interval, len(items))
	return nil
}

// Stop shuts the loop down and waits for the in-flight cycle to finish.
func (s *Simulator) Stop() error {
	s.mu.Lock()
	if s.status.State != StateStarting && s.status.State != StateRunning {
		s.mu.Unlock()
		return ErrNotRunning
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.status.State = StateStopped
	s.mu.Unlock()
	log.Printf("[simulator] stopped network=%s", s.networkID)
	return nil
}

// Status returns a snapshot of the simulator's state and counters.
func (s *Simulator) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// cycle generates and persists one batch of readings.
func (s *Simulator) cycle() {
	cycleStart := s.clock.Now()
	mult := pattern.Multiplier(simclock.HourOfDay(cycleStart))

	var readings []model.SCADAReading
	genLog := model.GenerationLog{
		NetworkID:     s.networkID,
		GeneratedAtNs: cycleStart.UnixNano(),
	}

	groups := []struct {
		kind     model.ItemKind
		ids      []string
		selected *int
	}{
		{model.ItemJunction, s.junctions, &genLog.JunctionsSelected},
		{model.ItemPipe, s.pipes, &genLog.PipesSelected},
		{model.ItemTank, s.tanks, &genLog.TanksSelected},
	}

	for _, g := range groups {
		if len(g.ids) == 0 {
			continue
		}
		loss := randutil.Clamp(s.rng.Gaussian(s.cfg.DataLossMean, s.cfg.DataLossVariance), 0, 1)
		keep := int(math.Floor(float64(len(g.ids)) * (1 - loss)))
		if keep < 1 {
			keep = 1
		}
		*g.selected = keep

		for _, idx := range s.rng.SampleWithoutReplacement(len(g.ids), keep) {
			if r, ok := s.itemReading(g.kind, g.ids[idx], mult, cycleStart); ok {
				readings = append(readings, r)
			}
		}
	}
	genLog.ReadingsGenerated = len(readings)

	err := s.store.InsertReadingsWithLog(readings, genLog)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastCycleAtNs = cycleStart.UnixNano()
	if err != nil {
		log.Printf("[simulator] warning: persist cycle network=%s: %v", s.networkID, err)
		s.status.CyclesFailed++
		s.status.LastError = err.Error()
		s.consecutiveFailures++
		if s.consecutiveFailures >= maxConsecutiveCycleFailures {
			log.Printf("[simulator] error: %d consecutive cycle failures network=%s, exiting loop",
				s.consecutiveFailures, s.networkID)
			s.status.State = StateError
			s.stopOnce.Do(func() { close(s.stopCh) })
		}
		return
	}
	s.consecutiveFailures = 0
	s.status.CyclesCompleted++
	s.status.ReadingsGenerated += int64(len(readings))
	s.status.LastError = ""
}

// itemReading builds the reading for one selected item. Each item carries
// one telemetry sensor (junction pressure, pipe flow, tank level); items
// with no baseline row are skipped.
func (s *Simulator) itemReading(kind model.ItemKind, itemID string, mult float64, cycleStart time.Time) (model.SCADAReading, bool) {
	sensor := telemetrySensor(kind)
	base, ok := s.baselines[baseline.Key{LocationID: itemID, Sensor: sensor}]
	if !ok {
		return model.SCADAReading{}, false
	}

	noise := s.noisePercent(sensor) / 100
	value := base * mult * (1 + s.rng.Uniform(-noise, noise))

	delayMin := s.rng.TruncatedNormal(s.cfg.DelayMeanMinutes, s.cfg.DelayStdMinutes,
		0, s.cfg.DelayMaxMinutes)
	ts := cycleStart.Add(-time.Duration(delayMin * float64(time.Minute)))

	return model.SCADAReading{
		NetworkID:  s.networkID,
		SensorID:   model.SensorID(sensor, itemID),
		SensorKind: sensor,
		LocationID: itemID,
		Value:      value,
		TsNs:       ts.UnixNano(),
	}, true
}

// telemetrySensor maps an item kind to the sensor its SCADA feed reports.
func telemetrySensor(kind model.ItemKind) model.SensorKind {
	switch kind {
	case model.ItemPipe:
		return model.SensorFlow
	case model.ItemTank:
		return model.SensorLevel
	default:
		return model.SensorPressure
	}
}

func (s *Simulator) noisePercent(sensor model.SensorKind) float64 {
	switch sensor {
	case model.SensorPressure:
		return s.cfg.PressureNoisePercent
	case model.SensorFlow:
		return s.cfg.FlowNoisePercent
	case model.SensorLevel:
		return s.cfg.LevelNoisePercent
	default:
		return 0
	}
}
