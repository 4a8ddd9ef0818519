package db

import (
	"database/sql"
	"fmt"
)

// EnsureSyncState lazily creates the singleton sync_metadata row.
func (db *DB) EnsureSyncState() error {
	_, err := db.conn.Exec(
		"INSERT OR IGNORE INTO sync_metadata (id, sync_status) VALUES (1, 'idle')")
	if err != nil {
		return fmt.Errorf("failed to ensure sync state: %w", err)
	}
	return nil
}

// GetSyncState reads the singleton row. Returns an idle zero state when the
// row has never been created.
func (db *DB) GetSyncState() (*SyncState, error) {
	var s SyncState
	err := db.conn.QueryRow(
		`SELECT last_export_at, last_import_at, sync_status, last_sync_error,
			last_sync_duration_ms, sync_pid
		FROM sync_metadata WHERE id = 1`).Scan(
		&s.LastExportAt, &s.LastImportAt, &s.SyncStatus, &s.LastSyncError,
		&s.LastSyncDurationMS, &s.SyncPID,
	)
	if err == sql.ErrNoRows {
		return &SyncState{SyncStatus: "idle"}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read sync state: %w", err)
	}
	return &s, nil
}

// TryAcquireSyncLock flips the row from idle to syncing in a single
// conditional UPDATE. SQLite serializes the statement, so of two racing
// processes exactly one sees rowcount 1.
func (db *DB) TryAcquireSyncLock(pid int) (bool, error) {
	if err := db.EnsureSyncState(); err != nil {
		return false, err
	}

	res, err := db.conn.Exec(
		"UPDATE sync_metadata SET sync_status = 'syncing', sync_pid = ? WHERE id = 1 AND sync_status = 'idle'",
		pid)
	if err != nil {
		return false, fmt.Errorf("failed to acquire sync lock: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read lock result: %w", err)
	}
	return n == 1, nil
}

// ReleaseSyncLock unconditionally resets the lock to idle.
func (db *DB) ReleaseSyncLock() error {
	_, err := db.conn.Exec(
		"UPDATE sync_metadata SET sync_status = 'idle', sync_pid = NULL WHERE id = 1")
	if err != nil {
		return fmt.Errorf("failed to release sync lock: %w", err)
	}
	return nil
}

// SetSyncError records the failure text of the last cycle. It persists
// until the next clean cycle overwrites it.
func (db *DB) SetSyncError(msg string) error {
	if err := db.EnsureSyncState(); err != nil {
		return err
	}
	_, err := db.conn.Exec(
		"UPDATE sync_metadata SET last_sync_error = ? WHERE id = 1", msg)
	if err != nil {
		return fmt.Errorf("failed to record sync error: %w", err)
	}
	return nil
}

// AdvanceExportWatermark records a clean export cycle: new watermark,
// duration, and a cleared error.
func (db *DB) AdvanceExportWatermark(ts string, durationMS int64) error {
	if err := db.EnsureSyncState(); err != nil {
		return err
	}
	_, err := db.conn.Exec(
		`UPDATE sync_metadata
		SET last_export_at = ?, last_sync_duration_ms = ?, last_sync_error = NULL
		WHERE id = 1`,
		ts, durationMS)
	if err != nil {
		return fmt.Errorf("failed to advance export watermark: %w", err)
	}
	return nil
}

// AdvanceImportWatermark records a completed import, even one that found
// zero new records.
func (db *DB) AdvanceImportWatermark(ts string) error {
	if err := db.EnsureSyncState(); err != nil {
		return err
	}
	_, err := db.conn.Exec(
		"UPDATE sync_metadata SET last_import_at = ? WHERE id = 1", ts)
	if err != nil {
		return fmt.Errorf("failed to advance import watermark: %w", err)
	}
	return nil
}
