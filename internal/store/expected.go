package store

import (
	"fmt"

	"github.com/waterline-io/waterline/internal/model"
)

// InsertExpectedValues persists a batch of expected values in one transaction.
func (s *Store) InsertExpectedValues(values []model.ExpectedValue) error {
	if len(values) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store expected begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert, err := tx.Prepare(`INSERT INTO expected_values
		(network_id, ts_ns, location_id, sensor_kind, expected_value, eps_hour)
		VALUES (?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store expected prepare: %w", err)
	}
	defer insert.Close()

	for i := range values {
		v := &values[i]
		if _, err := insert.Exec(v.NetworkID, v.TsNs, v.LocationID, string(v.SensorKind),
			v.ExpectedValue, v.EPSHour); err != nil {
			return fmt.Errorf("store insert expected %s/%s: %w", v.LocationID, v.SensorKind, err)
		}
	}

	return tx.Commit()
}

// QueryExpectedValues returns expected values with ts_ns in (afterNs, untilNs],
// ordered by ts_ns ascending.
func (s *Store) QueryExpectedValues(networkID string, afterNs, untilNs int64) ([]model.ExpectedValue, error) {
	rows, err := s.db.Query(`SELECT network_id, ts_ns, location_id, sensor_kind, expected_value, eps_hour
		FROM expected_values WHERE network_id = ? AND ts_ns > ? AND ts_ns <= ?
		ORDER BY ts_ns ASC`, networkID, afterNs, untilNs)
	if err != nil {
		return nil, fmt.Errorf("store query expected: %w", err)
	}
	defer rows.Close()

	var result []model.ExpectedValue
	for rows.Next() {
		var v model.ExpectedValue
		var kind string
		if err := rows.Scan(&v.NetworkID, &v.TsNs, &v.LocationID, &kind, &v.ExpectedValue, &v.EPSHour); err != nil {
			return nil, fmt.Errorf("store scan expected: %w", err)
		}
		v.SensorKind = model.SensorKind(kind)
		result = append(result, v)
	}
	return result, rows.Err()
}

// DeleteExpectedValuesBefore removes expected values older than cutoffNs.
func (s *Store) DeleteExpectedValuesBefore(cutoffNs int64) (int64, error) {
	return s.deleteRows(`DELETE FROM expected_values WHERE ts_ns < ?`, cutoffNs)
}
