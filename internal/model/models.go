// Package model defines domain structs shared across the persistence layer
// and the simulator/monitor loops.
package model

import "strings"

// ItemKind identifies the type of a network element.
type ItemKind string

const (
	ItemJunction ItemKind = "junction"
	ItemPipe     ItemKind = "pipe"
	ItemTank     ItemKind = "tank"
)

// SensorKind identifies the physical quantity a sensor measures.
type SensorKind string

const (
	SensorPressure SensorKind = "pressure"
	SensorFlow     SensorKind = "flow"
	SensorLevel    SensorKind = "level"
)

// Severity classifies an anomaly by deviation-to-threshold ratio.
type Severity string

const (
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// SeverityRank returns the ordering rank of a severity (medium < high < critical).
// Unknown severities rank below medium.
func SeverityRank(s Severity) int {
	switch s {
	case SeverityMedium:
		return 1
	case SeverityHigh:
		return 2
	case SeverityCritical:
		return 3
	default:
		return 0
	}
}

// SensorID derives the canonical sensor identifier for a (kind, location) pair.
// Equal inputs always produce equal IDs.
func SensorID(kind SensorKind, locationID string) string {
	return strings.ToUpper(string(kind)) + "_" + locationID
}

// ApplicableSensors returns the sensor kinds a given item kind carries.
func ApplicableSensors(kind ItemKind) []SensorKind {
	switch kind {
	case ItemJunction:
		return []SensorKind{SensorPressure}
	case ItemPipe:
		return []SensorKind{SensorFlow}
	case ItemTank:
		return []SensorKind{SensorPressure, SensorLevel}
	default:
		return nil
	}
}

// Network is a monitored water-distribution network.
type Network struct {
	ID                   string `json:"id"`
	DisplayName          string `json:"display_name"`
	Definition           string `json:"-"`
	DefinitionHash       string `json:"definition_hash"`
	BaselineComputedAtNs int64  `json:"baseline_computed_at_ns"`
	CreatedAtNs          int64  `json:"created_at_ns"`
}

// NetworkItem is one element of a network; the ground truth of which
// sensors may exist.
type NetworkItem struct {
	NetworkID string   `json:"network_id"`
	Kind      ItemKind `json:"kind"`
	ItemID    string   `json:"item_id"`
}

// Baseline is the steady-state expected value for one (location, sensor) pair
// under nominal demand.
type Baseline struct {
	NetworkID     string     `json:"network_id"`
	LocationID    string     `json:"location_id"`
	LocationKind  ItemKind   `json:"location_kind"`
	SensorKind    SensorKind `json:"sensor_kind"`
	BaselineValue float64    `json:"baseline_value"`
}

// SCADAReading is a synthesized sensor observation. TsNs is the simulated
// observation time, which may lie in the past relative to insertion.
type SCADAReading struct {
	NetworkID  string     `json:"network_id"`
	SensorID   string     `json:"sensor_id"`
	SensorKind SensorKind `json:"sensor_kind"`
	LocationID string     `json:"location_id"`
	Value      float64    `json:"value"`
	TsNs       int64      `json:"ts_ns"`
}

// GenerationLog records one simulator cycle.
type GenerationLog struct {
	NetworkID         string `json:"network_id"`
	GeneratedAtNs     int64  `json:"generated_at_ns"`
	ReadingsGenerated int    `json:"readings_generated"`
	JunctionsSelected int    `json:"junctions_selected"`
	PipesSelected     int    `json:"pipes_selected"`
	TanksSelected     int    `json:"tanks_selected"`
}

// ExpectedValue is one model-predicted value emitted per monitor cycle.
type ExpectedValue struct {
	NetworkID     string     `json:"network_id"`
	TsNs          int64      `json:"ts_ns"`
	LocationID    string     `json:"location_id"`
	SensorKind    SensorKind `json:"sensor_kind"`
	ExpectedValue float64    `json:"expected_value"`
	EPSHour       float64    `json:"eps_hour"`
}

// Anomaly records one observed-vs-expected deviation above threshold.
// TsNs is the detection instant, not the reading's observation time.
type Anomaly struct {
	ID               string     `json:"id"`
	NetworkID        string     `json:"network_id"`
	TsNs             int64      `json:"ts_ns"`
	SensorID         string     `json:"sensor_id"`
	SensorKind       SensorKind `json:"sensor_kind"`
	LocationID       string     `json:"location_id"`
	Actual           float64    `json:"actual"`
	Expected         float64    `json:"expected"`
	DeviationPercent float64    `json:"deviation_percent"`
	ThresholdPercent float64    `json:"threshold_percent"`
	Severity         Severity   `json:"severity"`
}
