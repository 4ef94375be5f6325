package baseline

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/waterline-io/waterline/internal/hydraulic"
	"github.com/waterline-io/waterline/internal/model"
	"github.com/waterline-io/waterline/internal/store"
)

const testDef = `
name: reg-test
junctions:
  - id: J1
    elevation: 100
    pressure: 50
  - id: J2
    pressure: 45
pipes:
  - id: P1
    from: J1
    to: J2
    flow: 12
tanks:
  - id: T1
    elevation: 120
    initial_level: 5
    pressure: 30
    min_level: 1
    max_level: 10
`

func newTestRegistry(t *testing.T) (*Registry, *store.Store) {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "waterline.db"))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	var ns int64
	r := NewRegistry(s, hydraulic.Load, func() int64 { ns++; return ns })
	return r, s
}

func seedNetwork(t *testing.T, s *store.Store, id, definition string) {
	t.Helper()
	if err := s.UpsertNetwork(model.Network{
		ID:          id,
		DisplayName: id,
		Definition:  definition,
		CreatedAtNs: 1,
	}); err != nil {
		t.Fatalf("UpsertNetwork: %v", err)
	}
}

func TestComputeWritesItemsAndBaselines(t *testing.T) {
	r, s := newTestRegistry(t)
	seedNetwork(t, s, "n1", testDef)

	if err := r.Compute("n1", false); err != nil {
		t.Fatalf("Compute: %v", err)
	}

	n, _ := s.GetNetwork("n1")
	if n.BaselineComputedAtNs == 0 {
		t.Fatal("baseline marker not set")
	}

	items, err := r.Items("n1")
	if err != nil {
		t.Fatalf("Items: %v", err)
	}
	if len(items) != 4 {
		t.Fatalf("expected 4 items, got %d: %+v", len(items), items)
	}

	m, err := r.BaselineMap("n1")
	if err != nil {
		t.Fatalf("BaselineMap: %v", err)
	}
	want := map[Key]float64{
		{LocationID: "J1", Sensor: model.SensorPressure}: 50,
		{LocationID: "J2", Sensor: model.SensorPressure}: 45,
		{LocationID: "P1", Sensor: model.SensorFlow}:     12,
		{LocationID: "T1", Sensor: model.SensorPressure}: 30,
		{LocationID: "T1", Sensor: model.SensorLevel}:    5,
	}
	if len(m) != len(want) {
		t.Fatalf("baseline map size = %d, want %d: %v", len(m), len(want), m)
	}
	for k, v := range want {
		if got := m[k]; got != v {
			t.Fatalf("baseline %v = %v, want %v", k, got, v)
		}
	}
}

func TestComputeRejectsSecondRunWithoutRecompute(t *testing.T) {
	r, s := newTestRegistry(t)
	seedNetwork(t, s, "n1", testDef)

	if err := r.Compute("n1", false); err != nil {
		t.Fatalf("first Compute: %v", err)
	}
	if err := r.Compute("n1", false); !errors.Is(err, ErrAlreadyComputed) {
		t.Fatalf("expected ErrAlreadyComputed, got %v", err)
	}
	if err := r.Compute("n1", true); err != nil {
		t.Fatalf("recompute: %v", err)
	}
}

func TestComputeErrors(t *testing.T) {
	r, s := newTestRegistry(t)

	if err := r.Compute("missing", false); !errors.Is(err, store.ErrNetworkNotFound) {
		t.Fatalf("expected ErrNetworkNotFound, got %v", err)
	}

	seedNetwork(t, s, "bad", "junctions: [")
	if err := r.Compute("bad", false); !errors.Is(err, hydraulic.ErrLoad) {
		t.Fatalf("expected ErrLoad, got %v", err)
	}
}

func TestLookupsRequireComputedBaseline(t *testing.T) {
	r, s := newTestRegistry(t)
	seedNetwork(t, s, "n1", testDef)

	if _, err := r.BaselineMap("n1"); !errors.Is(err, ErrBaselineMissing) {
		t.Fatalf("BaselineMap: expected ErrBaselineMissing, got %v", err)
	}
	if _, err := r.Items("n1"); !errors.Is(err, ErrBaselineMissing) {
		t.Fatalf("Items: expected ErrBaselineMissing, got %v", err)
	}
	if _, err := r.BaselineMap("missing"); !errors.Is(err, store.ErrNetworkNotFound) {
		t.Fatalf("expected ErrNetworkNotFound, got %v", err)
	}
}

// fakeEngine exercises the tank level fallback chain and records Close calls.
type fakeEngine struct {
	junctions, pipes, tanks []string
	pressures, flows        map[string]float64
	levels, elevations      map[string]float64
	solveErr                error
	closed                  int
}

func (f *fakeEngine) SolveComplete() error              { return f.solveErr }
func (f *fakeEngine) Pressures() map[string]float64     { return f.pressures }
func (f *fakeEngine) Flows() map[string]float64         { return f.flows }
func (f *fakeEngine) TankLevels() map[string]float64    { return f.levels }
func (f *fakeEngine) Elevations() map[string]float64    { return f.elevations }
func (f *fakeEngine) Junctions() []string               { return f.junctions }
func (f *fakeEngine) Pipes() []string                   { return f.pipes }
func (f *fakeEngine) Tanks() []string                   { return f.tanks }
func (f *fakeEngine) SetTankLevel(string, float64) error { return nil }
func (f *fakeEngine) Close() error                      { f.closed++; return nil }

func TestTankLevelFallbackChain(t *testing.T) {
	r, s := newTestRegistry(t)
	seedNetwork(t, s, "n1", "unused")

	fake := &fakeEngine{
		tanks: []string{"T_LEVEL", "T_ELEV", "T_PRESS"},
		pressures: map[string]float64{
			"T_LEVEL": 10, "T_ELEV": 20, "T_PRESS": 30,
		},
		levels:     map[string]float64{"T_LEVEL": 4},
		elevations: map[string]float64{"T_ELEV": 150},
	}
	r.loader = func([]byte) (hydraulic.Engine, error) { return fake, nil }

	if err := r.Compute("n1", false); err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if fake.closed != 1 {
		t.Fatalf("engine closed %d times, want 1", fake.closed)
	}

	m, err := r.BaselineMap("n1")
	if err != nil {
		t.Fatalf("BaselineMap: %v", err)
	}
	checks := map[Key]float64{
		{LocationID: "T_LEVEL", Sensor: model.SensorLevel}: 4,   // engine level
		{LocationID: "T_ELEV", Sensor: model.SensorLevel}:  150, // elevation fallback
		{LocationID: "T_PRESS", Sensor: model.SensorLevel}: 30,  // pressure fallback
	}
	for k, v := range checks {
		if got := m[k]; got != v {
			t.Fatalf("level baseline %v = %v, want %v", k, got, v)
		}
	}
}

func TestEngineClosedOnSolveError(t *testing.T) {
	r, s := newTestRegistry(t)
	seedNetwork(t, s, "n1", "unused")

	fake := &fakeEngine{solveErr: errors.New("boom")}
	r.loader = func([]byte) (hydraulic.Engine, error) { return fake, nil }

	if err := r.Compute("n1", false); err == nil {
		t.Fatal("expected solve error")
	}
	if fake.closed != 1 {
		t.Fatalf("engine closed %d times, want 1", fake.closed)
	}
}

func TestRecomputeInvalidatesCache(t *testing.T) {
	r, s := newTestRegistry(t)
	seedNetwork(t, s, "n1", testDef)

	if err := r.Compute("n1", false); err != nil {
		t.Fatal(err)
	}
	if _, err := r.BaselineMap("n1"); err != nil {
		t.Fatal(err)
	}

	fake := &fakeEngine{
		junctions: []string{"J9"},
		pressures: map[string]float64{"J9": 99},
	}
	r.loader = func([]byte) (hydraulic.Engine, error) { return fake, nil }
	if err := r.Compute("n1", true); err != nil {
		t.Fatal(err)
	}

	m, err := r.BaselineMap("n1")
	if err != nil {
		t.Fatal(err)
	}
	if got := m[Key{LocationID: "J9", Sensor: model.SensorPressure}]; got != 99 {
		t.Fatalf("stale cache: J9 pressure = %v, want 99", got)
	}
	if len(m) != 1 {
		t.Fatalf("stale cache: map = %v", m)
	}
}
