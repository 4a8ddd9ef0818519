// Package daemon implements the auto-sync watcher.
//
// The daemon:
// 1. Watches the .entirecontext directory for database activity
// 2. Debounces bursts of writes into a single pending flag
// 3. Runs an export cycle when the cooldown allows one
// 4. Handles graceful shutdown
//
// It is the body of the detached background process the worker package
// launches, but can also run in the foreground for debugging.
package daemon

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/teslamint/entirecontext/internal/config"
	"github.com/teslamint/entirecontext/internal/db"
	ecsync "github.com/teslamint/entirecontext/internal/sync"
)

// Config holds configuration for the daemon.
type Config struct {
	// DebounceInterval is how long to wait after the last database write
	// before considering a sync. This batches rapid updates together.
	DebounceInterval time.Duration

	// CheckInterval is how often the pending flag and cooldown are
	// re-evaluated.
	CheckInterval time.Duration

	// Logger for daemon activity.
	Logger *log.Logger
}

// DefaultConfig returns sensible defaults, logging to a rolling file under
// the repository's .entirecontext/logs directory.
func DefaultConfig(repoPath string) *Config {
	return &Config{
		DebounceInterval: 2 * time.Second,
		CheckInterval:    5 * time.Second,
		Logger:           NewRollingLogger(repoPath),
	}
}

// NewRollingLogger returns a logger writing to
// <repo>/.entirecontext/logs/daemon.log with size-based rotation. The
// daemon is long-lived and detached from any terminal, so its output has
// to go somewhere bounded.
func NewRollingLogger(repoPath string) *log.Logger {
	return log.New(&lumberjack.Logger{
		Filename:   filepath.Join(repoPath, ".entirecontext", "logs", "daemon.log"),
		MaxSize:    5, // megabytes
		MaxBackups: 2,
		MaxAge:     14, // days
	}, "[daemon] ", log.LstdFlags)
}

// NewStderrLogger returns a logger for foreground runs.
func NewStderrLogger() *log.Logger {
	return log.New(os.Stderr, "[daemon] ", log.LstdFlags)
}

// Daemon watches one repository's database and triggers sync cycles.
type Daemon struct {
	repoPath string
	config   *Config

	watcher *fsnotify.Watcher

	pendingMu sync.Mutex
	pendingAt time.Time // zero when nothing is pending

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a daemon for the repository at repoPath.
//
// Use Start() to begin watching and syncing.
func New(repoPath string) (*Daemon, error) {
	return NewWithConfig(repoPath, DefaultConfig(repoPath))
}

// NewWithConfig creates a daemon with custom configuration.
func NewWithConfig(repoPath string, cfg *Config) (*Daemon, error) {
	if repoPath == "" {
		return nil, fmt.Errorf("repoPath cannot be empty")
	}
	if cfg == nil {
		cfg = DefaultConfig(repoPath)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Daemon{
		repoPath: repoPath,
		config:   cfg,
		watcher:  watcher,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins the daemon's operation.
//
// The daemon will:
// 1. Run one sync attempt immediately so a backlog is flushed on startup
// 2. Watch the .entirecontext directory for database writes
// 3. Debounce bursts and sync when the cooldown allows
//
// This blocks until ctx is cancelled or an error occurs.
func (d *Daemon) Start(ctx context.Context) error {
	d.config.Logger.Println("Starting daemon")

	dir := filepath.Join(d.repoPath, ".entirecontext")
	if err := d.watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	d.config.Logger.Printf("Watching: %s", dir)

	d.markPending()

	d.wg.Add(2)
	go d.watchFileEvents()
	go d.processPending()

	select {
	case <-ctx.Done():
		d.config.Logger.Println("Shutdown signal received")
		return d.Stop()
	case <-d.ctx.Done():
		return nil
	}
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop() error {
	d.config.Logger.Println("Stopping daemon")

	d.cancel()

	if err := d.watcher.Close(); err != nil {
		d.config.Logger.Printf("Error closing watcher: %v", err)
	}

	d.wg.Wait()

	d.config.Logger.Println("Daemon stopped")
	return nil
}

// watchFileEvents monitors filesystem events and marks the sync pending.
func (d *Daemon) watchFileEvents() {
	defer d.wg.Done()

	for {
		select {
		case <-d.ctx.Done():
			return

		case event, ok := <-d.watcher.Events:
			if !ok {
				return
			}

			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if !isDatabaseFile(event.Name) {
				continue
			}

			d.markPending()

		case err, ok := <-d.watcher.Errors:
			if !ok {
				return
			}
			d.config.Logger.Printf("Watcher error: %v", err)
		}
	}
}

// isDatabaseFile reports whether a watched path is the context database or
// one of SQLite's sidecar files.
func isDatabaseFile(path string) bool {
	base := filepath.Base(path)
	return base == "context.db" || strings.HasPrefix(base, "context.db-")
}

func (d *Daemon) markPending() {
	d.pendingMu.Lock()
	d.pendingAt = time.Now()
	d.pendingMu.Unlock()
}

// takePendingIfQuiet consumes the pending flag once the debounce window
// has passed with no further writes.
func (d *Daemon) takePendingIfQuiet() bool {
	d.pendingMu.Lock()
	defer d.pendingMu.Unlock()

	if d.pendingAt.IsZero() {
		return false
	}
	if time.Since(d.pendingAt) < d.config.DebounceInterval {
		return false
	}
	d.pendingAt = time.Time{}
	return true
}

// processPending periodically evaluates the pending flag against the
// cooldown and runs a sync cycle when one is due.
func (d *Daemon) processPending() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return

		case <-ticker.C:
			if !d.takePendingIfQuiet() {
				continue
			}
			d.maybeSync()
		}
	}
}

// maybeSync runs one export cycle if the cooldown allows it. A cycle
// skipped for cooldown re-arms the pending flag so the change is not lost.
func (d *Daemon) maybeSync() {
	due, err := d.syncDue()
	if err != nil {
		d.config.Logger.Printf("Error checking sync state: %v", err)
		return
	}
	if !due {
		d.markPending()
		return
	}

	result, err := ecsync.RunSync(d.repoPath)
	switch {
	case err == ecsync.ErrLocked:
		d.config.Logger.Println("Sync already in progress, will retry")
		d.markPending()
	case err != nil:
		d.config.Logger.Printf("Sync failed: %v", err)
	case result.Committed:
		d.config.Logger.Printf("Synced %d sessions, %d checkpoints (pushed=%v)",
			result.ExportedSessions, result.ExportedCheckpoints, result.Pushed)
	}
}

func (d *Daemon) syncDue() (bool, error) {
	conn, err := db.OpenRepo(d.repoPath)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	if err := conn.InitSchema(); err != nil {
		return false, err
	}

	cfg, err := config.Load(d.repoPath)
	if err != nil {
		return false, err
	}

	state, err := conn.GetSyncState()
	if err != nil {
		return false, err
	}
	return ecsync.ShouldExport(state, ecsync.Cooldown(cfg)), nil
}
