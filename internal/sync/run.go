package sync

import (
	"github.com/teslamint/entirecontext/internal/config"
	"github.com/teslamint/entirecontext/internal/db"
)

// RunSync is the orchestration entry point for one export cycle. It opens
// its own database connection, takes the lock, exports, and releases the
// lock in a deferred cleanup. Suitable both as a synchronous CLI target
// and as the body of a detached background process.
func RunSync(repoPath string) (*ExportResult, error) {
	d, err := db.OpenRepo(repoPath)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if err := d.InitSchema(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(repoPath)
	if err != nil {
		return nil, err
	}

	ok, err := AcquireLock(d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	defer ReleaseLock(d)

	return PerformExport(d, repoPath, cfg)
}

// RunPull is the orchestration entry point for one import cycle.
func RunPull(repoPath string) (*ImportResult, error) {
	d, err := db.OpenRepo(repoPath)
	if err != nil {
		return nil, err
	}
	defer d.Close()

	if err := d.InitSchema(); err != nil {
		return nil, err
	}

	cfg, err := config.Load(repoPath)
	if err != nil {
		return nil, err
	}

	ok, err := AcquireLock(d)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrLocked
	}
	defer ReleaseLock(d)

	return PerformImport(d, repoPath, cfg)
}
