package database

import (
	"database/sql"
	"fmt"
	"time"
)

// Today returns the local date as YYYY-MM-DD.
func Today() string {
	return time.Now().Format("2006-01-02")
}

// InsertRun stores a run and its entries in one transaction.
func (db *DB) InsertRun(run *Run) (int64, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	aborted := 0
	if run.Aborted {
		aborted = 1
	}
	result, err := tx.Exec(
		`INSERT INTO runs (run_date, started_at, aborted, abort_reason) VALUES (?, ?, ?, ?)`,
		run.RunDate, run.StartedAt, aborted, run.AbortReason,
	)
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	runID, err := result.LastInsertId()
	if err != nil {
		return 0, err
	}

	for _, e := range run.Entries {
		if _, err := tx.Exec(
			`INSERT INTO run_entries (run_id, position, work_id, display_name, outcome, reason, samples)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, e.Position, e.WorkID, e.DisplayName, e.Outcome, e.Reason, e.Samples,
		); err != nil {
			return 0, fmt.Errorf("inserting entry %d: %w", e.Position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	run.ID = runID
	return runID, nil
}

// GetLastRun returns the most recent run with its entries, or nil if none.
func (db *DB) GetLastRun() (*Run, error) {
	row := db.conn.QueryRow(
		`SELECT id, run_date, started_at, aborted, abort_reason
		FROM runs ORDER BY id DESC LIMIT 1`,
	)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	run.Entries, err = db.GetRunEntries(run.ID)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// GetLastUpdateDate returns the run date of the most recent run that was not
// aborted, or "" if there is none.
func (db *DB) GetLastUpdateDate() (string, error) {
	var date sql.NullString
	err := db.conn.QueryRow(
		`SELECT MAX(run_date) FROM runs WHERE aborted = 0`,
	).Scan(&date)
	if err != nil {
		return "", err
	}
	return date.String, nil
}

// GetRunEntries returns the entries of a run in registry order.
func (db *DB) GetRunEntries(runID int64) ([]RunEntry, error) {
	rows, err := db.conn.Query(
		`SELECT position, work_id, display_name, outcome, reason, samples
		FROM run_entries WHERE run_id = ? ORDER BY position`, runID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		if err := rows.Scan(&e.Position, &e.WorkID, &e.DisplayName, &e.Outcome, &e.Reason, &e.Samples); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// GetStats returns aggregate ledger statistics.
func (db *DB) GetStats() (*Stats, error) {
	s := &Stats{}
	err := db.conn.QueryRow(
		`SELECT COUNT(*), COALESCE(SUM(aborted), 0), COUNT(DISTINCT run_date) FROM runs`,
	).Scan(&s.TotalRuns, &s.AbortedRuns, &s.DaysWithRuns)
	if err != nil {
		return nil, err
	}

	err = db.conn.QueryRow(
		`SELECT
			COALESCE(SUM(CASE WHEN outcome = 'updated' THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN outcome = 'failed' THEN 1 ELSE 0 END), 0)
		FROM run_entries`,
	).Scan(&s.UpdatedEntries, &s.FailedEntries)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func scanRun(row *sql.Row) (*Run, error) {
	var r Run
	var aborted int
	if err := row.Scan(&r.ID, &r.RunDate, &r.StartedAt, &aborted, &r.AbortReason); err != nil {
		return nil, err
	}
	r.Aborted = aborted != 0
	return &r, nil
}
