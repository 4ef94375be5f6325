package store

import (
	"fmt"

	"github.com/waterline-io/waterline/internal/model"
)

// InsertReadingsWithLog persists one simulator cycle: all readings plus the
// matching generation log row in a single transaction, so no partial cycle
// is ever observable.
func (s *Store) InsertReadingsWithLog(readings []model.SCADAReading, genLog model.GenerationLog) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store readings begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert, err := tx.Prepare(`INSERT INTO scada_readings
		(network_id, sensor_id, sensor_kind, location_id, value, ts_ns) VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store readings prepare: %w", err)
	}
	defer insert.Close()

	for i := range readings {
		r := &readings[i]
		if _, err := insert.Exec(r.NetworkID, r.SensorID, string(r.SensorKind),
			r.LocationID, r.Value, r.TsNs); err != nil {
			return fmt.Errorf("store insert reading %s: %w", r.SensorID, err)
		}
	}

	if _, err := tx.Exec(`INSERT INTO scada_generation_logs
		(network_id, generated_at_ns, readings_generated, junctions_selected, pipes_selected, tanks_selected)
		VALUES (?,?,?,?,?,?)`,
		genLog.NetworkID, genLog.GeneratedAtNs, genLog.ReadingsGenerated,
		genLog.JunctionsSelected, genLog.PipesSelected, genLog.TanksSelected); err != nil {
		return fmt.Errorf("store insert generation log: %w", err)
	}

	return tx.Commit()
}

// QueryReadings returns readings with ts_ns in the half-open interval
// (afterNs, untilNs], ordered by ts_ns ascending.
func (s *Store) QueryReadings(networkID string, afterNs, untilNs int64) ([]model.SCADAReading, error) {
	rows, err := s.db.Query(`SELECT network_id, sensor_id, sensor_kind, location_id, value, ts_ns
		FROM scada_readings WHERE network_id = ? AND ts_ns > ? AND ts_ns <= ?
		ORDER BY ts_ns ASC`, networkID, afterNs, untilNs)
	if err != nil {
		return nil, fmt.Errorf("store query readings: %w", err)
	}
	defer rows.Close()

	var result []model.SCADAReading
	for rows.Next() {
		var r model.SCADAReading
		var kind string
		if err := rows.Scan(&r.NetworkID, &r.SensorID, &kind, &r.LocationID, &r.Value, &r.TsNs); err != nil {
			return nil, fmt.Errorf("store scan reading: %w", err)
		}
		r.SensorKind = model.SensorKind(kind)
		result = append(result, r)
	}
	return result, rows.Err()
}

// GenerationLogs returns a network's generation logs, newest first, capped
// at limit.
func (s *Store) GenerationLogs(networkID string, limit int) ([]model.GenerationLog, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`SELECT network_id, generated_at_ns, readings_generated,
		junctions_selected, pipes_selected, tanks_selected
		FROM scada_generation_logs WHERE network_id = ?
		ORDER BY generated_at_ns DESC LIMIT ?`, networkID, limit)
	if err != nil {
		return nil, fmt.Errorf("store generation logs: %w", err)
	}
	defer rows.Close()

	var result []model.GenerationLog
	for rows.Next() {
		var g model.GenerationLog
		if err := rows.Scan(&g.NetworkID, &g.GeneratedAtNs, &g.ReadingsGenerated,
			&g.JunctionsSelected, &g.PipesSelected, &g.TanksSelected); err != nil {
			return nil, fmt.Errorf("store scan generation log: %w", err)
		}
		result = append(result, g)
	}
	return result, rows.Err()
}

// DeleteReadings removes all readings of a network. Returns rows deleted.
func (s *Store) DeleteReadings(networkID string) (int64, error) {
	return s.deleteRows(`DELETE FROM scada_readings WHERE network_id = ?`, networkID)
}

// DeleteGenerationLogs removes all generation logs of a network.
func (s *Store) DeleteGenerationLogs(networkID string) (int64, error) {
	return s.deleteRows(`DELETE FROM scada_generation_logs WHERE network_id = ?`, networkID)
}

// DeleteReadingsBefore removes readings older than cutoffNs across all networks.
func (s *Store) DeleteReadingsBefore(cutoffNs int64) (int64, error) {
	return s.deleteRows(`DELETE FROM scada_readings WHERE ts_ns < ?`, cutoffNs)
}

// DeleteGenerationLogsBefore removes generation logs older than cutoffNs.
func (s *Store) DeleteGenerationLogsBefore(cutoffNs int64) (int64, error) {
	return s.deleteRows(`DELETE FROM scada_generation_logs WHERE generated_at_ns < ?`, cutoffNs)
}

func (s *Store) deleteRows(query string, args ...any) (int64, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("store delete: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, nil //nolint:nilerr // count is advisory
	}
	return n, nil
}
