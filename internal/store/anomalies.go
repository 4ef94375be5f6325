package store

import (
	"fmt"
	"strings"

	"github.com/waterline-io/waterline/internal/model"
)

// AnomalyFilter specifies query filters for listing anomalies.
type AnomalyFilter struct {
	Severity model.Severity // empty means all severities
	FromNs   int64          // ts_ns >= FromNs (0 means no lower bound)
	ToNs     int64          // ts_ns <= ToNs (0 means no upper bound)
	Limit    int            // capped at maxAnomalyPageLimit
	Offset   int
}

const (
	defaultAnomalyPageLimit = 100
	maxAnomalyPageLimit     = 1000
)

// InsertAnomalies persists a batch of anomalies in one transaction.
func (s *Store) InsertAnomalies(anomalies []model.Anomaly) error {
	if len(anomalies) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store anomalies begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	insert, err := tx.Prepare(`INSERT OR IGNORE INTO anomalies
		(id, network_id, ts_ns, sensor_id, sensor_kind, location_id,
		 actual, expected, deviation_percent, threshold_percent, severity)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store anomalies prepare: %w", err)
	}
	defer insert.Close()

	for i := range anomalies {
		a := &anomalies[i]
		if _, err := insert.Exec(a.ID, a.NetworkID, a.TsNs, a.SensorID, string(a.SensorKind),
			a.LocationID, a.Actual, a.Expected, a.DeviationPercent, a.ThresholdPercent,
			string(a.Severity)); err != nil {
			return fmt.Errorf("store insert anomaly %s: %w", a.ID, err)
		}
	}

	return tx.Commit()
}

// QueryAnomalies returns anomalies matching the filter, newest first.
func (s *Store) QueryAnomalies(networkID string, f AnomalyFilter) ([]model.Anomaly, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultAnomalyPageLimit
	}
	if limit > maxAnomalyPageLimit {
		limit = maxAnomalyPageLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	where := []string{"network_id = ?"}
	args := []any{networkID}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if f.FromNs > 0 {
		where = append(where, "ts_ns >= ?")
		args = append(args, f.FromNs)
	}
	if f.ToNs > 0 {
		where = append(where, "ts_ns <= ?")
		args = append(args, f.ToNs)
	}

	q := `SELECT id, network_id, ts_ns, sensor_id, sensor_kind, location_id,
		actual, expected, deviation_percent, threshold_percent, severity
		FROM anomalies WHERE ` + strings.Join(where, " AND ") +
		` ORDER BY ts_ns DESC, id ASC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("store query anomalies: %w", err)
	}
	defer rows.Close()

	var result []model.Anomaly
	for rows.Next() {
		var a model.Anomaly
		var sk, sev string
		if err := rows.Scan(&a.ID, &a.NetworkID, &a.TsNs, &a.SensorID, &sk, &a.LocationID,
			&a.Actual, &a.Expected, &a.DeviationPercent, &a.ThresholdPercent, &sev); err != nil {
			return nil, fmt.Errorf("store scan anomaly: %w", err)
		}
		a.SensorKind = model.SensorKind(sk)
		a.Severity = model.Severity(sev)
		result = append(result, a)
	}
	return result, rows.Err()
}

// CountAnomaliesMatching returns how many anomalies match the filter,
// ignoring its limit and offset. Used for page totals.
func (s *Store) CountAnomaliesMatching(networkID string, f AnomalyFilter) (int, error) {
	where := []string{"network_id = ?"}
	args := []any{networkID}
	if f.Severity != "" {
		where = append(where, "severity = ?")
		args = append(args, string(f.Severity))
	}
	if f.FromNs > 0 {
		where = append(where, "ts_ns >= ?")
		args = append(args, f.FromNs)
	}
	if f.ToNs > 0 {
		where = append(where, "ts_ns <= ?")
		args = append(args, f.ToNs)
	}

	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM anomalies WHERE `+strings.Join(where, " AND "), args...).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store count anomalies: %w", err)
	}
	return n, nil
}

// CountAnomalies returns how many anomalies a network has in (afterNs, untilNs].
func (s *Store) CountAnomalies(networkID string, afterNs, untilNs int64) (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM anomalies
		WHERE network_id = ? AND ts_ns > ? AND ts_ns <= ?`,
		networkID, afterNs, untilNs).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("store count anomalies: %w", err)
	}
	return n, nil
}

// DeleteAnomaliesBefore removes anomalies older than cutoffNs.
func (s *Store) DeleteAnomaliesBefore(cutoffNs int64) (int64, error) {
	return s.deleteRows(`DELETE FROM anomalies WHERE ts_ns < ?`, cutoffNs)
}
