package hydraulic

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// networkDef is the YAML document describing a network.
type networkDef struct {
	Name         string        `yaml:"name"`
	HorizonHours float64       `yaml:"horizon_hours"`
	Junctions    []junctionDef `yaml:"junctions"`
	Pipes        []pipeDef     `yaml:"pipes"`
	Tanks        []tankDef     `yaml:"tanks"`
}

type junctionDef struct {
	ID        string   `yaml:"id"`
	Elevation *float64 `yaml:"elevation"`
	Pressure  float64  `yaml:"pressure"`
}

type pipeDef struct {
	ID   string  `yaml:"id"`
	From string  `yaml:"from"`
	To   string  `yaml:"to"`
	Flow float64 `yaml:"flow"`
}

type tankDef struct {
	ID           string   `yaml:"id"`
	Elevation    *float64 `yaml:"elevation"`
	InitialLevel *float64 `yaml:"initial_level"`
	Pressure     *float64 `yaml:"pressure"`
	MinLevel     float64  `yaml:"min_level"`
	MaxLevel     float64  `yaml:"max_level"`
}

// SteadyState is the built-in engine: each SolveComplete recomputes a
// steady-state solution from the definition's nominal values plus any tank
// level overrides applied since the last solve.
type SteadyState struct {
	def networkDef

	// levels holds the effective tank levels: initial levels at load time,
	// replaced by SetTankLevel overrides. Tanks without a known level are
	// absent.
	levels map[string]float64

	pressures  map[string]float64
	flows      map[string]float64
	elevations map[string]float64

	solved bool
	closed bool
}

// Load parses and validates a YAML network definition and returns an
// unsolved SteadyState engine. All failures wrap ErrLoad.
func Load(definition []byte) (Engine, error) {
	if len(definition) == 0 {
		return nil, loadErrorf("empty definition")
	}

	var def networkDef
	if err := yaml.Unmarshal(definition, &def); err != nil {
		return nil, fmt.Errorf("%w: parse yaml: %w", ErrLoad, err)
	}
	if def.HorizonHours <= 0 {
		def.HorizonHours = 24
	}
	if len(def.Junctions)+len(def.Tanks) == 0 {
		return nil, loadErrorf("definition has no junctions or tanks")
	}

	seen := make(map[string]string, len(def.Junctions)+len(def.Pipes)+len(def.Tanks))
	claim := func(id, kind string) error {
		if id == "" {
			return loadErrorf("%s with empty id", kind)
		}
		if prev, ok := seen[id]; ok {
			return loadErrorf("duplicate id %q (%s and %s)", id, prev, kind)
		}
		seen[id] = kind
		return nil
	}

	for _, j := range def.Junctions {
		if err := claim(j.ID, "junction"); err != nil {
			return nil, err
		}
	}
	for _, tk := range def.Tanks {
		if err := claim(tk.ID, "tank"); err != nil {
			return nil, err
		}
		if tk.InitialLevel != nil && tk.MaxLevel > 0 {
			if *tk.InitialLevel < tk.MinLevel || *tk.InitialLevel > tk.MaxLevel {
				return nil, loadErrorf("tank %q initial level %v outside [%v, %v]",
					tk.ID, *tk.InitialLevel, tk.MinLevel, tk.MaxLevel)
			}
		}
	}
	for _, p := range def.Pipes {
		if err := claim(p.ID, "pipe"); err != nil {
			return nil, err
		}
		for _, end := range []string{p.From, p.To} {
			if end == "" {
				continue // open endpoint (reservoir/source)
			}
			if kind, ok := seen[end]; !ok || kind == "pipe" {
				return nil, loadErrorf("pipe %q endpoint %q is not a junction or tank", p.ID, end)
			}
		}
	}

	e := &SteadyState{
		def:    def,
		levels: make(map[string]float64, len(def.Tanks)),
	}
	for _, tk := range def.Tanks {
		if tk.InitialLevel != nil {
			e.levels[tk.ID] = *tk.InitialLevel
		}
	}
	return e, nil
}

var errClosed = errors.New("hydraulic: engine closed")

// SolveComplete recomputes pressures, flows and elevations from the nominal
// definition and the current tank levels.
func (e *SteadyState) SolveComplete() error {
	if e.closed {
		return errClosed
	}

	pressures := make(map[string]float64, len(e.def.Junctions)+len(e.def.Tanks))
	elevations := make(map[string]float64)

	for _, j := range e.def.Junctions {
		pressures[j.ID] = j.Pressure
		if j.Elevation != nil {
			elevations[j.ID] = *j.Elevation
		}
	}

	for _, tk := range e.def.Tanks {
		if tk.Elevation != nil {
			elevations[tk.ID] = *tk.Elevation
		}
		level, hasLevel := e.levels[tk.ID]
		switch {
		case tk.Pressure != nil:
			// Nominal pressure, shifted by how far the level has moved
			// from the definition's initial level.
			p := *tk.Pressure
			if hasLevel && tk.InitialLevel != nil {
				p += level - *tk.InitialLevel
			}
			pressures[tk.ID] = p
		case hasLevel:
			// No nominal pressure: treat the water column as head.
			pressures[tk.ID] = level
		case tk.Elevation != nil:
			pressures[tk.ID] = *tk.Elevation
		}
	}

	flows := make(map[string]float64, len(e.def.Pipes))
	for _, p := range e.def.Pipes {
		flows[p.ID] = p.Flow
	}

	e.pressures = pressures
	e.flows = flows
	e.elevations = elevations
	e.solved = true
	return nil
}

func (e *SteadyState) Pressures() map[string]float64  { return copyMap(e.pressures) }
func (e *SteadyState) Flows() map[string]float64      { return copyMap(e.flows) }
func (e *SteadyState) Elevations() map[string]float64 { return copyMap(e.elevations) }

// TankLevels returns the effective level per tank, including overrides
// applied since the last solve.
func (e *SteadyState) TankLevels() map[string]float64 { return copyMap(e.levels) }

func (e *SteadyState) Junctions() []string {
	ids := make([]string, 0, len(e.def.Junctions))
	for _, j := range e.def.Junctions {
		ids = append(ids, j.ID)
	}
	return ids
}

func (e *SteadyState) Pipes() []string {
	ids := make([]string, 0, len(e.def.Pipes))
	for _, p := range e.def.Pipes {
		ids = append(ids, p.ID)
	}
	return ids
}

func (e *SteadyState) Tanks() []string {
	ids := make([]string, 0, len(e.def.Tanks))
	for _, tk := range e.def.Tanks {
		ids = append(ids, tk.ID)
	}
	return ids
}

// SetTankLevel overrides a tank's level for subsequent solves.
func (e *SteadyState) SetTankLevel(locationID string, level float64) error {
	if e.closed {
		return errClosed
	}
	for _, tk := range e.def.Tanks {
		if tk.ID != locationID {
			continue
		}
		if tk.MaxLevel > 0 && (level < tk.MinLevel || level > tk.MaxLevel) {
			return fmt.Errorf("hydraulic: tank %q level %v outside [%v, %v]",
				locationID, level, tk.MinLevel, tk.MaxLevel)
		}
		e.levels[locationID] = level
		return nil
	}
	return fmt.Errorf("hydraulic: unknown tank %q", locationID)
}

// Close marks the engine released. Safe to call more than once.
func (e *SteadyState) Close() error {
	e.closed = true
	return nil
}

func copyMap(m map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
