package history

import (
	"database/sql"
	"fmt"
	"time"
)

// Alert history operations

// RecordAlert persists a triggered alert and sets rec.ID
func (db *DB) RecordAlert(rec *AlertRecord) error {
	return db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO alerts (
				alert_id, character, rule_key, label, score,
				pipeline_key, triggered_at
			) VALUES (?, ?, ?, ?, ?, ?, ?)
		`, rec.AlertID, rec.Character, rec.RuleKey, rec.Label,
			rec.Score, rec.PipelineKey, rec.TriggeredAt)

		if err != nil {
			return fmt.Errorf("failed to insert alert: %w", err)
		}

		rec.ID, err = result.LastInsertId()
		return err
	})
}

// RecentAlerts returns the most recent alerts, newest first
func (db *DB) RecentAlerts(limit int) ([]*AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(`
		SELECT
			id, alert_id, character, rule_key, label,
			score, pipeline_key, triggered_at
		FROM alerts
		ORDER BY triggered_at DESC, id DESC
		LIMIT ?
	`, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	return scanAlerts(rows)
}

// RecentAlertsForCharacter returns recent alerts for one character,
// newest first
func (db *DB) RecentAlertsForCharacter(character string, limit int) ([]*AlertRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := db.conn.Query(`
		SELECT
			id, alert_id, character, rule_key, label,
			score, pipeline_key, triggered_at
		FROM alerts
		WHERE character = ?
		ORDER BY triggered_at DESC, id DESC
		LIMIT ?
	`, character, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}

	return scanAlerts(rows)
}

// CountSince returns the number of alerts triggered at or after since
func (db *DB) CountSince(since time.Time) (int, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM alerts WHERE triggered_at >= ?
	`, since).Scan(&count)

	if err != nil {
		return 0, fmt.Errorf("failed to count alerts: %w", err)
	}

	return count, nil
}

// PurgeOlderThan deletes alerts triggered before cutoff and returns
// how many rows were removed
func (db *DB) PurgeOlderThan(cutoff time.Time) (int64, error) {
	result, err := db.conn.Exec(`
		DELETE FROM alerts WHERE triggered_at < ?
	`, cutoff)

	if err != nil {
		return 0, fmt.Errorf("failed to purge alerts: %w", err)
	}

	return result.RowsAffected()
}

// scanAlerts reads alert rows into records
func scanAlerts(rows *sql.Rows) ([]*AlertRecord, error) {
	defer rows.Close()

	var alerts []*AlertRecord
	for rows.Next() {
		rec := &AlertRecord{}
		err := rows.Scan(
			&rec.ID, &rec.AlertID, &rec.Character, &rec.RuleKey, &rec.Label,
			&rec.Score, &rec.PipelineKey, &rec.TriggeredAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, rec)
	}

	return alerts, rows.Err()
}
