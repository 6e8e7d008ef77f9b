package history

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/giapdang/autocapcut/internal/export"
)

// Run is one recorded export attempt for an item.
type Run struct {
	ID              int64
	ItemID          string
	ProjectPath     string
	Status          string
	Reason          string
	Error           string
	StartedAt       time.Time
	CompletedAt     sql.NullTime
	DurationSeconds int
}

// StartRun inserts a running record for the item and returns its ID.
func (db *DB) StartRun(itemID, projectPath string) (int64, error) {
	var runID int64
	err := db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			INSERT INTO export_runs (item_id, project_path, status, started_at)
			VALUES (?, ?, 'running', ?)
		`, itemID, projectPath, time.Now())
		if err != nil {
			return fmt.Errorf("failed to insert export run: %w", err)
		}

		runID, err = result.LastInsertId()
		return err
	})
	if err != nil {
		return 0, err
	}
	return runID, nil
}

// FinishRun records the terminal outcome of a run.
func (db *DB) FinishRun(runID int64, res export.Result) error {
	errText := ""
	if res.Err != nil {
		errText = res.Err.Error()
	}
	duration := int(res.Finished.Sub(res.Started).Seconds())

	return db.ExecTx(func(tx *sql.Tx) error {
		result, err := tx.Exec(`
			UPDATE export_runs
			SET status = ?, reason = ?, error = ?, completed_at = ?, duration_seconds = ?
			WHERE id = ?
		`, res.State.String(), string(res.Reason), errText, res.Finished, duration, runID)
		if err != nil {
			return fmt.Errorf("failed to update export run: %w", err)
		}

		rows, err := result.RowsAffected()
		if err != nil {
			return err
		}
		if rows == 0 {
			return fmt.Errorf("export run %d not found", runID)
		}
		return nil
	})
}

// RecentRuns returns up to limit runs, newest first.
func (db *DB) RecentRuns(limit int) ([]Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, item_id, project_path, status, reason, error,
			started_at, completed_at, duration_seconds
		FROM export_runs
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ItemID, &r.ProjectPath, &r.Status, &r.Reason,
			&r.Error, &r.StartedAt, &r.CompletedAt, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunsForItem returns all runs recorded for one item, newest first.
func (db *DB) RunsForItem(itemID string) ([]Run, error) {
	rows, err := db.conn.Query(`
		SELECT id, item_id, project_path, status, reason, error,
			started_at, completed_at, duration_seconds
		FROM export_runs
		WHERE item_id = ?
		ORDER BY started_at DESC
	`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query export runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.ItemID, &r.ProjectPath, &r.Status, &r.Reason,
			&r.Error, &r.StartedAt, &r.CompletedAt, &r.DurationSeconds); err != nil {
			return nil, fmt.Errorf("failed to scan export run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
