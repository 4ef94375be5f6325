// Package baseline computes and serves per-network baseline values: the
// steady-state expected reading for every (location, sensor) pair under
// nominal demand. Baselines are the anchor both loops scale from, so they
// are persisted once and cached for lookup.
package baseline

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/puzpuzpuz/xsync/v4"

	"github.com/waterline-io/waterline/internal/hydraulic"
	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/store"
)

var (
	// ErrAlreadyComputed means the network's baseline marker is set and
	// recompute was not requested.
	ErrAlreadyComputed = errors.New("baseline: already computed")
	// ErrBaselineMissing means a lookup ran against a network whose
	// baseline was never computed.
	ErrBaselineMissing = errors.New("baseline: not computed")
)

// Key identifies one baseline entry within a network.
type Key struct {
	LocationID string
	Sensor     model.SensorKind
}

// Registry computes baselines with a hydraulic solve and serves cached
// lookups to the simulator and monitor.
type Registry struct {
	store  *store.Store
	loader hydraulic.Loader
	nowNs  func() int64

	cache *xsync.Map[string, map[Key]float64]
}

// NewRegistry returns a registry backed by the given store and engine loader.
// nowNs stamps the baseline marker; pass nil for wall-clock time.
func NewRegistry(s *store.Store, loader hydraulic.Loader, nowNs func() int64) *Registry {
	if nowNs == nil {
		nowNs = func() int64 { return time.Now().UnixNano() }
	}
	return &Registry{
		store:  s,
		loader: loader,
		nowNs:  nowNs,
		cache:  xsync.NewMap[string, map[Key]float64](),
	}
}

// Compute runs one hydraulic solve for the network and replaces its stored
// items and baseline rows. When the network already has a baseline and
// recompute is false, it returns ErrAlreadyComputed without touching the
// engine.
func (r *Registry) Compute(networkID string, recompute bool) error {
	network, err := r.store.GetNetwork(networkID)
	if err != nil {
		return err
	}
	if network.BaselineComputedAtNs != 0 && !recompute {
		return ErrAlreadyComputed
	}

	engine, err := r.loader([]byte(network.Definition))
	if err != nil {
		return fmt.Errorf("baseline load engine: %w", err)
	}
	defer engine.Close() //nolint:errcheck

	if err := engine.SolveComplete(); err != nil {
		return fmt.Errorf("baseline solve: %w", err)
	}

	items, baselines := collect(networkID, engine)
	if err := r.store.ReplaceBaseline(networkID, items, baselines, r.nowNs()); err != nil {
		return err
	}

	r.cache.Delete(networkID)
	log.Printf("[baseline] computed network=%s items=%d baselines=%d",
		networkID, len(items), len(baselines))
	return nil
}

// collect enumerates the solved engine into item and baseline rows.
func collect(networkID string, engine hydraulic.Engine) ([]model.NetworkItem, []model.Baseline) {
	pressures := engine.Pressures()
	flows := engine.Flows()
	levels := engine.TankLevels()
	elevations := engine.Elevations()

	var items []model.NetworkItem
	var baselines []model.Baseline

	addItem := func(kind model.ItemKind, id string) {
		items = append(items, model.NetworkItem{NetworkID: networkID, Kind: kind, ItemID: id})
	}
	addRow := func(kind model.ItemKind, id string, sensor model.SensorKind, value float64) {
		baselines = append(baselines, model.Baseline{
			NetworkID:     networkID,
			LocationID:    id,
			LocationKind:  kind,
			SensorKind:    sensor,
			BaselineValue: value,
		})
	}

	for _, id := range engine.Junctions() {
		addItem(model.ItemJunction, id)
		if p, ok := pressures[id]; ok {
			addRow(model.ItemJunction, id, model.SensorPressure, p)
		}
	}
	for _, id := range engine.Pipes() {
		addItem(model.ItemPipe, id)
		if f, ok := flows[id]; ok {
			addRow(model.ItemPipe, id, model.SensorFlow, f)
		}
	}
	for _, id := range engine.Tanks() {
		addItem(model.ItemTank, id)
		if p, ok := pressures[id]; ok {
			addRow(model.ItemTank, id, model.SensorPressure, p)
		}
		// Level falls back to elevation, then pressure, when the engine
		// has no level for the tank.
		if lv, ok := levels[id]; ok {
			addRow(model.ItemTank, id, model.SensorLevel, lv)
		} else if el, ok := elevations[id]; ok {
			addRow(model.ItemTank, id, model.SensorLevel, el)
		} else if p, ok := pressures[id]; ok {
			addRow(model.ItemTank, id, model.SensorLevel, p)
		}
	}
	return items, baselines
}

// BaselineMap returns the network's baseline values keyed by location and
// sensor. The map is cached per network; callers must not mutate it.
func (r *Registry) BaselineMap(networkID string) (map[Key]float64, error) {
	if m, ok := r.cache.Load(networkID); ok {
		return m, nil
	}

	network, err := r.store.GetNetwork(networkID)
	if err != nil {
		return nil, err
	}
	if network.BaselineComputedAtNs == 0 {
		return nil, ErrBaselineMissing
	}

	rows, err := r.store.Baselines(networkID)
	if err != nil {
		return nil, err
	}
	m := make(map[Key]float64, len(rows))
	for _, b := range rows {
		m[Key{LocationID: b.LocationID, Sensor: b.SensorKind}] = b.BaselineValue
	}
	r.cache.Store(networkID, m)
	return m, nil
}

// Items returns the network's stored items, or ErrBaselineMissing when the
// baseline was never computed.
func (r *Registry) Items(networkID string) ([]model.NetworkItem, error) {
	network, err := r.store.GetNetwork(networkID)
	if err != nil {
		return nil, err
	}
	if network.BaselineComputedAtNs == 0 {
		return nil, ErrBaselineMissing
	}
	return r.store.NetworkItems(networkID)
}

// Invalidate drops the cached baseline map for a network.
func (r *Registry) Invalidate(networkID string) {
	r.cache.Delete(networkID)
}
