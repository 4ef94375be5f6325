// Package service holds the control plane the API handlers call into.
// Business logic and error-code mapping live here, not in handlers.
package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/xxh3"

	"github.com/waterline-io/waterline/internal/baseline"
	"github.com/waterline-io/waterline/internal/buildinfo"
	"github.com/waterline-io/waterline/internal/dashboard"
	"github.com/waterline-io/waterline/internal/hydraulic"
	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/monitor"
	"github.com/waterline-io/waterline/internal/simclock"
	"github.com/waterline-io/waterline/internal/simulator"
	"github.com/waterline-io/waterline/internal/store"
)

// maxDefinitionBytes bounds uploaded network definitions.
const maxDefinitionBytes = 4 << 20

// SystemInfo contains version and runtime information.
type SystemInfo struct {
	Version   string    `json:"version"`
	GitCommit string    `json:"git_commit"`
	BuildTime string    `json:"build_time"`
	StartedAt time.Time `json:"started_at"`
}

// BaselineSummary reports one baseline computation.
type BaselineSummary struct {
	NetworkID    string `json:"network_id"`
	Items        int    `json:"items"`
	Baselines    int    `json:"baselines"`
	ComputedAtNs int64  `json:"computed_at_ns"`
	Recomputed   bool   `json:"recomputed"`
}

// AnomalyPage is one page of anomalies plus the unpaged total.
type AnomalyPage struct {
	Items  []model.Anomaly
	Total  int
	Limit  int
	Offset int
}

// ControlPlane wires the store, registry, loops and aggregator behind a
// single surface for the API layer.
type ControlPlane struct {
	Store      *store.Store
	Registry   *baseline.Registry
	Simulator  *simulator.Simulator
	Monitor    *monitor.Monitor
	Aggregator *dashboard.Aggregator
	Loader     hydraulic.Loader
	Clock      simclock.Clock

	startedAt time.Time
}

// New builds the control plane. A nil clock means the system clock.
func New(s *store.Store, reg *baseline.Registry, sim *simulator.Simulator,
	mon *monitor.Monitor, agg *dashboard.Aggregator, loader hydraulic.Loader,
	clock simclock.Clock) *ControlPlane {
	if clock == nil {
		clock = simclock.System{}
	}
	return &ControlPlane{
		Store:      s,
		Registry:   reg,
		Simulator:  sim,
		Monitor:    mon,
		Aggregator: agg,
		Loader:     loader,
		Clock:      clock,
		startedAt:  clock.Now(),
	}
}

// ------------------------------------------------------------------
// Networks
// ------------------------------------------------------------------

// CreateNetwork registers an uploaded network definition. The definition
// must load in the hydraulic engine before it is accepted.
func (cp *ControlPlane) CreateNetwork(displayName string, definition []byte) (*model.Network, error) {
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		return nil, invalidArg("display_name is required", nil)
	}
	if len(definition) == 0 {
		return nil, invalidArg("definition is required", nil)
	}
	if len(definition) > maxDefinitionBytes {
		return nil, invalidArg(fmt.Sprintf("definition exceeds %d bytes", maxDefinitionBytes), nil)
	}

	engine, err := cp.Loader(definition)
	if err != nil {
		return nil, engineLoad("definition does not load: "+err.Error(), err)
	}
	engine.Close() //nolint:errcheck

	n := model.Network{
		ID:             uuid.NewString(),
		DisplayName:    displayName,
		Definition:     string(definition),
		DefinitionHash: fmt.Sprintf("%016x", xxh3.Hash(definition)),
		CreatedAtNs:    cp.Clock.Now().UnixNano(),
	}
	if err := cp.Store.UpsertNetwork(n); err != nil {
		return nil, internal("persist network", err)
	}
	return &n, nil
}

// ListNetworks returns all registered networks.
func (cp *ControlPlane) ListNetworks() ([]model.Network, error) {
	networks, err := cp.Store.ListNetworks()
	if err != nil {
		return nil, internal("list networks", err)
	}
	return networks, nil
}

// GetNetwork returns one network by id.
func (cp *ControlPlane) GetNetwork(id string) (*model.Network, error) {
	n, err := cp.Store.GetNetwork(id)
	if errors.Is(err, store.ErrNetworkNotFound) {
		return nil, notFound("network "+id+" not found", err)
	}
	if err != nil {
		return nil, internal("get network", err)
	}
	return n, nil
}

// ------------------------------------------------------------------
// Baseline
// ------------------------------------------------------------------

// ComputeBaseline runs (or re-runs) the baseline computation for a network.
func (cp *ControlPlane) ComputeBaseline(networkID string, recompute bool) (*BaselineSummary, error) {
	err := cp.Registry.Compute(networkID, recompute)
	switch {
	case errors.Is(err, store.ErrNetworkNotFound):
		return nil, notFound("network "+networkID+" not found", err)
	case errors.Is(err, baseline.ErrAlreadyComputed):
		return nil, conflict("baseline already computed; pass recompute=true to replace it", err)
	case errors.Is(err, hydraulic.ErrLoad):
		return nil, engineLoad("definition does not load: "+err.Error(), err)
	case err != nil:
		return nil, internal("compute baseline", err)
	}

	n, err := cp.Store.GetNetwork(networkID)
	if err != nil {
		return nil, internal("read baseline marker", err)
	}
	items, err := cp.Store.NetworkItems(networkID)
	if err != nil {
		return nil, internal("read network items", err)
	}
	rows, err := cp.Store.Baselines(networkID)
	if err != nil {
		return nil, internal("read baselines", err)
	}

	if cp.Aggregator != nil {
		cp.Aggregator.Invalidate(networkID)
	}
	return &BaselineSummary{
		NetworkID:    networkID,
		Items:        len(items),
		Baselines:    len(rows),
		ComputedAtNs: n.BaselineComputedAtNs,
		Recomputed:   recompute,
	}, nil
}

// ------------------------------------------------------------------
// Simulator
// ------------------------------------------------------------------

// StartSimulator starts the telemetry loop on a network.
func (cp *ControlPlane) StartSimulator(networkID string, cfg simulator.Config) (simulator.Status, error) {
	err := cp.Simulator.Start(networkID, cfg)
	switch {
	case errors.Is(err, simulator.ErrAlreadyRunning):
		return cp.Simulator.Status(), conflict("simulator already running", err)
	case errors.Is(err, simulator.ErrInvalidConfig):
		return cp.Simulator.Status(), invalidArg(err.Error(), err)
	case errors.Is(err, store.ErrNetworkNotFound):
		return cp.Simulator.Status(), notFound("network "+networkID+" not found", err)
	case errors.Is(err, baseline.ErrBaselineMissing):
		return cp.Simulator.Status(), conflict("baseline not computed for network "+networkID, err)
	case err != nil:
		return cp.Simulator.Status(), internal("start simulator", err)
	}
	return cp.Simulator.Status(), nil
}

// StopSimulator stops the telemetry loop.
func (cp *ControlPlane) StopSimulator() (simulator.Status, error) {
	err := cp.Simulator.Stop()
	if errors.Is(err, simulator.ErrNotRunning) {
		return cp.Simulator.Status(), conflict("simulator not running", err)
	}
	if err != nil {
		return cp.Simulator.Status(), internal("stop simulator", err)
	}
	return cp.Simulator.Status(), nil
}

// SimulatorStatus returns the simulator snapshot.
func (cp *ControlPlane) SimulatorStatus() simulator.Status {
	return cp.Simulator.Status()
}

// ------------------------------------------------------------------
// Monitor
// ------------------------------------------------------------------

// StartMonitor starts the anomaly detection loop on a network.
func (cp *ControlPlane) StartMonitor(networkID string, cfg monitor.Config) (monitor.Status, error) {
	err := cp.Monitor.Start(networkID, cfg)
	switch {
	case errors.Is(err, monitor.ErrAlreadyRunning):
		return cp.Monitor.Status(), conflict("monitor already running", err)
	case errors.Is(err, monitor.ErrInvalidConfig):
		return cp.Monitor.Status(), invalidArg(err.Error(), err)
	case errors.Is(err, store.ErrNetworkNotFound):
		return cp.Monitor.Status(), notFound("network "+networkID+" not found", err)
	case errors.Is(err, baseline.ErrBaselineMissing):
		return cp.Monitor.Status(), conflict("baseline not computed for network "+networkID, err)
	case errors.Is(err, hydraulic.ErrLoad):
		return cp.Monitor.Status(), engineLoad("definition does not load: "+err.Error(), err)
	case err != nil:
		return cp.Monitor.Status(), internal("start monitor", err)
	}
	return cp.Monitor.Status(), nil
}

// StopMonitor stops the anomaly detection loop.
func (cp *ControlPlane) StopMonitor() (monitor.Status, error) {
	err := cp.Monitor.Stop()
	if errors.Is(err, monitor.ErrNotRunning) {
		return cp.Monitor.Status(), conflict("monitor not running", err)
	}
	if err != nil {
		return cp.Monitor.Status(), internal("stop monitor", err)
	}
	return cp.Monitor.Status(), nil
}

// MonitorStatus returns the monitor snapshot.
func (cp *ControlPlane) MonitorStatus() monitor.Status {
	return cp.Monitor.Status()
}

// ------------------------------------------------------------------
// Anomalies and dashboard
// ------------------------------------------------------------------

// Anomalies returns one filtered page of a network's anomalies.
func (cp *ControlPlane) Anomalies(networkID string, f store.AnomalyFilter) (*AnomalyPage, error) {
	if _, err := cp.GetNetwork(networkID); err != nil {
		return nil, err
	}
	if f.Severity != "" && model.SeverityRank(f.Severity) == 0 {
		return nil, invalidArg("unknown severity "+string(f.Severity), nil)
	}
	if f.Offset < 0 {
		return nil, invalidArg("offset must be >= 0", nil)
	}

	items, err := cp.Store.QueryAnomalies(networkID, f)
	if err != nil {
		return nil, internal("query anomalies", err)
	}
	total, err := cp.Store.CountAnomaliesMatching(networkID, f)
	if err != nil {
		return nil, internal("count anomalies", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	return &AnomalyPage{Items: items, Total: total, Limit: limit, Offset: f.Offset}, nil
}

// DashboardMetrics returns the aggregated dashboard view of a network.
func (cp *ControlPlane) DashboardMetrics(networkID string, windowMinutes float64) (dashboard.Metrics, error) {
	if windowMinutes <= 0 || windowMinutes > 1440 {
		return dashboard.Metrics{}, invalidArg("window_minutes must be in (0, 1440]", nil)
	}
	m, err := cp.Aggregator.Metrics(networkID, windowMinutes)
	if errors.Is(err, store.ErrNetworkNotFound) {
		return dashboard.Metrics{}, notFound("network "+networkID+" not found", err)
	}
	if err != nil {
		return dashboard.Metrics{}, internal("dashboard metrics", err)
	}
	return m, nil
}

// GetSystemInfo returns build metadata and process start time.
func (cp *ControlPlane) GetSystemInfo() SystemInfo {
	return SystemInfo{
		Version:   buildinfo.Version,
		GitCommit: buildinfo.GitCommit,
		BuildTime: buildinfo.BuildTime,
		StartedAt: cp.startedAt,
	}
}
