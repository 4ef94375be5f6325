package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/waterline-io/waterline/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "waterline.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seedNetwork(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.UpsertNetwork(model.Network{
		ID:          id,
		DisplayName: "Test Network",
		Definition:  "name: test",
		CreatedAtNs: 1000,
	}); err != nil {
		t.Fatalf("UpsertNetwork: %v", err)
	}
}

func TestNetworkRoundTrip(t *testing.T) {
	s := newTestStore(t)
	seedNetwork(t, s, "n1")

	n, err := s.GetNetwork("n1")
	if err != nil {
		t.Fatalf("GetNetwork: %v", err)
	}
	if n.DisplayName != "Test Network" || n.BaselineComputedAtNs != 0 {
		t.Fatalf("unexpected network: %+v", n)
	}

	if _, err := s.GetNetwork("missing"); !errors.Is(err, ErrNetworkNotFound) {
		t.Fatalf("expected ErrNetworkNotFound, got %v", err)
	}

	list, err := s.ListNetworks()
	if err != nil || len(list) != 1 {
		t.Fatalf("ListNetworks = %v, %v", list, err)
	}
}

func TestReplaceBaseline_Atomic(t *testing.T) {
	s := newTestStore(t)
	seedNetwork(t, s, "n1")

	items := []model.NetworkItem{
		{NetworkID: "n1", Kind: model.ItemJunction, ItemID: "J1"},
		{NetworkID: "n1", Kind: model.ItemTank, ItemID: "T1"},
	}
	baselines := []model.Baseline{
		{NetworkID: "n1", LocationID: "J1", LocationKind: model.ItemJunction, SensorKind: model.SensorPressure, BaselineValue: 50},
		{NetworkID: "n1", LocationID: "T1", LocationKind: model.ItemTank, SensorKind: model.SensorPressure, BaselineValue: 30},
		{NetworkID: "n1", LocationID: "T1", LocationKind: model.ItemTank, SensorKind: model.SensorLevel, BaselineValue: 5},
	}
	if err := s.ReplaceBaseline("n1", items, baselines, 42); err != nil {
		t.Fatalf("ReplaceBaseline: %v", err)
	}

	n, _ := s.GetNetwork("n1")
	if n.BaselineComputedAtNs != 42 {
		t.Fatalf("marker not set: %d", n.BaselineComputedAtNs)
	}
	gotItems, err := s.NetworkItems("n1")
	if err != nil || len(gotItems) != 2 {
		t.Fatalf("NetworkItems = %v, %v", gotItems, err)
	}
	gotBaselines, err := s.Baselines("n1")
	if err != nil || len(gotBaselines) != 3 {
		t.Fatalf("Baselines = %v, %v", gotBaselines, err)
	}

	// Recompute replaces rather than duplicates.
	if err := s.ReplaceBaseline("n1", items[:1], baselines[:1], 43); err != nil {
		t.Fatalf("ReplaceBaseline again: %v", err)
	}
	gotItems, _ = s.NetworkItems("n1")
	if len(gotItems) != 1 {
		t.Fatalf("expected 1 item after replace, got %d", len(gotItems))
	}

	if err := s.ReplaceBaseline("missing", nil, nil, 1); !errors.Is(err, ErrNetworkNotFound) {
		t.Fatalf("expected ErrNetworkNotFound, got %v", err)
	}
}

func TestReadingsAndLog(t *testing.T) {
	s := newTestStore(t)
	seedNetwork(t, s, "n1")

	readings := []model.SCADAReading{
		{NetworkID: "n1", SensorID: "PRESSURE_J1", SensorKind: model.SensorPressure, LocationID: "J1", Value: 50, TsNs: 100},
		{NetworkID: "n1", SensorID: "FLOW_P1", SensorKind: model.SensorFlow, LocationID: "P1", Value: 12, TsNs: 300},
		{NetworkID: "n1", SensorID: "LEVEL_T1", SensorKind: model.SensorLevel, LocationID: "T1", Value: 5, TsNs: 200},
	}
	genLog := model.GenerationLog{NetworkID: "n1", GeneratedAtNs: 300, ReadingsGenerated: 3, JunctionsSelected: 1, PipesSelected: 1, TanksSelected: 1}
	if err := s.InsertReadingsWithLog(readings, genLog); err != nil {
		t.Fatalf("InsertReadingsWithLog: %v", err)
	}

	// Half-open interval (100, 300]: excludes the reading at ts=100.
	got, err := s.QueryReadings("n1", 100, 300)
	if err != nil {
		t.Fatalf("QueryReadings: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 readings, got %d", len(got))
	}
	if got[0].TsNs != 200 || got[1].TsNs != 300 {
		t.Fatalf("readings not ascending: %+v", got)
	}

	logs, err := s.GenerationLogs("n1", 10)
	if err != nil || len(logs) != 1 {
		t.Fatalf("GenerationLogs = %v, %v", logs, err)
	}
	if logs[0].ReadingsGenerated != 3 {
		t.Fatalf("log readings_generated = %d", logs[0].ReadingsGenerated)
	}

	if n, err := s.DeleteReadings("n1"); err != nil || n != 3 {
		t.Fatalf("DeleteReadings = %d, %v", n, err)
	}
	if n, err := s.DeleteGenerationLogs("n1"); err != nil || n != 1 {
		t.Fatalf("DeleteGenerationLogs = %d, %v", n, err)
	}
}

func TestAnomalyQueryFilters(t *testing.T) {
	s := newTestStore(t)
	seedNetwork(t, s, "n1")

	anomalies := []model.Anomaly{
		{ID: "a1", NetworkID: "n1", TsNs: 100, SensorID: "PRESSURE_J1", SensorKind: model.SensorPressure, LocationID: "J1", Actual: 111, Expected: 100, DeviationPercent: 11, ThresholdPercent: 10, Severity: model.SeverityMedium},
		{ID: "a2", NetworkID: "n1", TsNs: 200, SensorID: "PRESSURE_J1", SensorKind: model.SensorPressure, LocationID: "J1", Actual: 121, Expected: 100, DeviationPercent: 21, ThresholdPercent: 10, Severity: model.SeverityCritical},
		{ID: "a3", NetworkID: "n1", TsNs: 300, SensorID: "FLOW_P1", SensorKind: model.SensorFlow, LocationID: "P1", Actual: 16, Expected: 10, DeviationPercent: 60, ThresholdPercent: 10, Severity: model.SeverityCritical},
	}
	if err := s.InsertAnomalies(anomalies); err != nil {
		t.Fatalf("InsertAnomalies: %v", err)
	}

	all, err := s.QueryAnomalies("n1", AnomalyFilter{})
	if err != nil || len(all) != 3 {
		t.Fatalf("QueryAnomalies all = %v, %v", all, err)
	}
	if all[0].ID != "a3" {
		t.Fatalf("expected newest first, got %s", all[0].ID)
	}

	crit, err := s.QueryAnomalies("n1", AnomalyFilter{Severity: model.SeverityCritical})
	if err != nil || len(crit) != 2 {
		t.Fatalf("severity filter = %v, %v", crit, err)
	}

	ranged, err := s.QueryAnomalies("n1", AnomalyFilter{FromNs: 150, ToNs: 250})
	if err != nil || len(ranged) != 1 || ranged[0].ID != "a2" {
		t.Fatalf("range filter = %v, %v", ranged, err)
	}

	paged, err := s.QueryAnomalies("n1", AnomalyFilter{Limit: 1, Offset: 1})
	if err != nil || len(paged) != 1 || paged[0].ID != "a2" {
		t.Fatalf("paging = %v, %v", paged, err)
	}

	if n, err := s.CountAnomalies("n1", 0, 300); err != nil || n != 3 {
		t.Fatalf("CountAnomalies = %d, %v", n, err)
	}

	// Duplicate ids are ignored, not an error.
	if err := s.InsertAnomalies(anomalies[:1]); err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	if n, _ := s.CountAnomalies("n1", 0, 300); n != 3 {
		t.Fatalf("duplicate insert changed count: %d", n)
	}
}

func TestExpectedValues(t *testing.T) {
	s := newTestStore(t)
	seedNetwork(t, s, "n1")

	values := []model.ExpectedValue{
		{NetworkID: "n1", TsNs: 100, LocationID: "J1", SensorKind: model.SensorPressure, ExpectedValue: 50, EPSHour: 12},
		{NetworkID: "n1", TsNs: 200, LocationID: "T1", SensorKind: model.SensorLevel, ExpectedValue: 5, EPSHour: 12},
	}
	if err := s.InsertExpectedValues(values); err != nil {
		t.Fatalf("InsertExpectedValues: %v", err)
	}

	got, err := s.QueryExpectedValues("n1", 0, 300)
	if err != nil || len(got) != 2 {
		t.Fatalf("QueryExpectedValues = %v, %v", got, err)
	}
	if got[0].TsNs != 100 {
		t.Fatalf("expected ascending order, got %+v", got)
	}

	if n, err := s.DeleteExpectedValuesBefore(150); err != nil || n != 1 {
		t.Fatalf("DeleteExpectedValuesBefore = %d, %v", n, err)
	}
}

func TestRetentionDeletes(t *testing.T) {
	s := newTestStore(t)
	seedNetwork(t, s, "n1")

	readings := []model.SCADAReading{
		{NetworkID: "n1", SensorID: "PRESSURE_J1", SensorKind: model.SensorPressure, LocationID: "J1", Value: 1, TsNs: 100},
		{NetworkID: "n1", SensorID: "PRESSURE_J1", SensorKind: model.SensorPressure, LocationID: "J1", Value: 2, TsNs: 900},
	}
	if err := s.InsertReadingsWithLog(readings, model.GenerationLog{NetworkID: "n1", GeneratedAtNs: 900, ReadingsGenerated: 2}); err != nil {
		t.Fatal(err)
	}

	if n, err := s.DeleteReadingsBefore(500); err != nil || n != 1 {
		t.Fatalf("DeleteReadingsBefore = %d, %v", n, err)
	}
	if n, err := s.DeleteGenerationLogsBefore(500); err != nil || n != 0 {
		t.Fatalf("DeleteGenerationLogsBefore = %d, %v", n, err)
	}
}
