package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/waterline-io/waterline/internal/model"
)

// UpsertNetwork inserts or replaces a network row.
func (s *Store) UpsertNetwork(n model.Network) error {
	_, err := s.db.Exec(`INSERT INTO networks
		(id, display_name, definition, definition_hash, baseline_computed_at_ns, created_at_ns)
		VALUES (?,?,?,?,?,?)
		ON CONFLICT(id) DO UPDATE SET
			display_name = excluded.display_name,
			definition = excluded.definition,
			definition_hash = excluded.definition_hash,
			baseline_computed_at_ns = excluded.baseline_computed_at_ns`,
		n.ID, n.DisplayName, n.Definition, n.DefinitionHash, n.BaselineComputedAtNs, n.CreatedAtNs)
	if err != nil {
		return fmt.Errorf("store upsert network %s: %w", n.ID, err)
	}
	return nil
}

// GetNetwork returns one network by id, or ErrNetworkNotFound.
func (s *Store) GetNetwork(id string) (*model.Network, error) {
	row := s.db.QueryRow(`SELECT id, display_name, definition, definition_hash,
		baseline_computed_at_ns, created_at_ns FROM networks WHERE id = ?`, id)

	var n model.Network
	err := row.Scan(&n.ID, &n.DisplayName, &n.Definition, &n.DefinitionHash,
		&n.BaselineComputedAtNs, &n.CreatedAtNs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNetworkNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store get network %s: %w", id, err)
	}
	return &n, nil
}

// ListNetworks returns all networks ordered by creation time.
func (s *Store) ListNetworks() ([]model.Network, error) {
	rows, err := s.db.Query(`SELECT id, display_name, definition, definition_hash,
		baseline_computed_at_ns, created_at_ns FROM networks ORDER BY created_at_ns`)
	if err != nil {
		return nil, fmt.Errorf("store list networks: %w", err)
	}
	defer rows.Close()

	var result []model.Network
	for rows.Next() {
		var n model.Network
		if err := rows.Scan(&n.ID, &n.DisplayName, &n.Definition, &n.DefinitionHash,
			&n.BaselineComputedAtNs, &n.CreatedAtNs); err != nil {
			return nil, fmt.Errorf("store scan network: %w", err)
		}
		result = append(result, n)
	}
	return result, rows.Err()
}

// ReplaceBaseline replaces a network's items and baseline rows and stamps
// baseline_computed_at_ns, all in one transaction.
func (s *Store) ReplaceBaseline(networkID string, items []model.NetworkItem, baselines []model.Baseline, computedAtNs int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("store baseline begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	res, err := tx.Exec(`UPDATE networks SET baseline_computed_at_ns = ? WHERE id = ?`,
		computedAtNs, networkID)
	if err != nil {
		return fmt.Errorf("store baseline mark: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNetworkNotFound
	}

	if _, err := tx.Exec(`DELETE FROM network_items WHERE network_id = ?`, networkID); err != nil {
		return fmt.Errorf("store baseline clear items: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM baseline_data WHERE network_id = ?`, networkID); err != nil {
		return fmt.Errorf("store baseline clear rows: %w", err)
	}

	insertItem, err := tx.Prepare(`INSERT INTO network_items (network_id, kind, item_id) VALUES (?,?,?)`)
	if err != nil {
		return fmt.Errorf("store baseline prepare item: %w", err)
	}
	defer insertItem.Close()
	for _, it := range items {
		if _, err := insertItem.Exec(networkID, string(it.Kind), it.ItemID); err != nil {
			return fmt.Errorf("store baseline insert item %s: %w", it.ItemID, err)
		}
	}

	insertRow, err := tx.Prepare(`INSERT INTO baseline_data
		(network_id, location_id, location_kind, sensor_kind, baseline_value) VALUES (?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("store baseline prepare row: %w", err)
	}
	defer insertRow.Close()
	for _, b := range baselines {
		if _, err := insertRow.Exec(networkID, b.LocationID, string(b.LocationKind),
			string(b.SensorKind), b.BaselineValue); err != nil {
			return fmt.Errorf("store baseline insert %s/%s: %w", b.LocationID, b.SensorKind, err)
		}
	}

	return tx.Commit()
}

// NetworkItems returns all items of a network ordered by item id.
func (s *Store) NetworkItems(networkID string) ([]model.NetworkItem, error) {
	rows, err := s.db.Query(`SELECT network_id, kind, item_id FROM network_items
		WHERE network_id = ? ORDER BY item_id`, networkID)
	if err != nil {
		return nil, fmt.Errorf("store network items: %w", err)
	}
	defer rows.Close()

	var result []model.NetworkItem
	for rows.Next() {
		var it model.NetworkItem
		var kind string
		if err := rows.Scan(&it.NetworkID, &kind, &it.ItemID); err != nil {
			return nil, fmt.Errorf("store scan item: %w", err)
		}
		it.Kind = model.ItemKind(kind)
		result = append(result, it)
	}
	return result, rows.Err()
}

// Baselines returns all baseline rows of a network.
func (s *Store) Baselines(networkID string) ([]model.Baseline, error) {
	rows, err := s.db.Query(`SELECT network_id, location_id, location_kind, sensor_kind, baseline_value
		FROM baseline_data WHERE network_id = ? ORDER BY location_id, sensor_kind`, networkID)
	if err != nil {
		return nil, fmt.Errorf("store baselines: %w", err)
	}
	defer rows.Close()

	var result []model.Baseline
	for rows.Next() {
		var b model.Baseline
		var lk, sk string
		if err := rows.Scan(&b.NetworkID, &b.LocationID, &lk, &sk, &b.BaselineValue); err != nil {
			return nil, fmt.Errorf("store scan baseline: %w", err)
		}
		b.LocationKind = model.ItemKind(lk)
		b.SensorKind = model.SensorKind(sk)
		result = append(result, b)
	}
	return result, rows.Err()
}
