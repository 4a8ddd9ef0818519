// Package sync implements the export/import engine for the shadow branch
// and the cross-process lock that serializes cycles per repository.
//
// Mutual exclusion is pure SQL: a single conditional UPDATE on the
// sync_metadata singleton row acts as compare-and-swap, so there are no
// lock files and no read-then-write window between racing processes.
package sync

import (
	"errors"
	"os"
	"time"

	"github.com/teslamint/entirecontext/internal/config"
	"github.com/teslamint/entirecontext/internal/db"
)

// ErrLocked is the normal "skip this cycle" outcome when another process
// holds the sync lock.
var ErrLocked = errors.New("sync already in progress")

// ShouldExport reports whether an export cycle is due: never exported,
// cooldown elapsed, or the lock is held by a dead process.
func ShouldExport(state *db.SyncState, cooldown time.Duration) bool {
	if state.SyncStatus == "syncing" {
		return lockIsStale(state)
	}
	if state.LastExportAt == nil {
		return true
	}
	last, err := db.ParseISO(*state.LastExportAt)
	if err != nil {
		return true
	}
	return time.Since(last) >= cooldown
}

// ShouldImport reports whether imported data is stale enough to warrant a
// pull before a federated read.
func ShouldImport(state *db.SyncState, staleness time.Duration) bool {
	if state.LastImportAt == nil {
		return true
	}
	last, err := db.ParseISO(*state.LastImportAt)
	if err != nil {
		return true
	}
	return time.Since(last) >= staleness
}

// Cooldown returns the configured export cooldown.
func Cooldown(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Sync.CooldownSeconds) * time.Second
}

// Staleness returns the configured import staleness threshold.
func Staleness(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Sync.PullStalenessSeconds) * time.Second
}

// lockIsStale reports whether a held lock belongs to a process that no
// longer exists.
func lockIsStale(state *db.SyncState) bool {
	if state.SyncPID == nil {
		return true
	}
	return !processAlive(*state.SyncPID)
}

// IsLockStale reads the current lock holder and probes its liveness.
func IsLockStale(d *db.DB) (bool, error) {
	state, err := d.GetSyncState()
	if err != nil {
		return false, err
	}
	if state.SyncStatus != "syncing" {
		return false, nil
	}
	return lockIsStale(state), nil
}

// AcquireLock attempts the CAS acquisition, reclaiming a stale lock
// transparently. Returns false only when a live process holds the lock.
func AcquireLock(d *db.DB) (bool, error) {
	ok, err := d.TryAcquireSyncLock(os.Getpid())
	if err != nil || ok {
		return ok, err
	}

	stale, err := IsLockStale(d)
	if err != nil {
		return false, err
	}
	if !stale {
		return false, nil
	}

	// Holder crashed without releasing. Reset and retry once; a racing
	// reclaimer may still beat us to the second CAS, which is fine.
	if err := d.ReleaseSyncLock(); err != nil {
		return false, err
	}
	return d.TryAcquireSyncLock(os.Getpid())
}

// ReleaseLock unconditionally resets the lock. Callers run it deferred so
// a panicking cycle still releases.
func ReleaseLock(d *db.DB) {
	_ = d.ReleaseSyncLock()
}
