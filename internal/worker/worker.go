// Package worker launches and tracks detached background processes.
//
// Hook invocations run under tight timeouts, so anything slow (a sync
// cycle, an LLM-backed assessment) is handed to a fully detached child
// process. The child's PID lives in <repo>/.entirecontext/worker.pid; that
// sentinel file is the only state the supervisor keeps.
package worker

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

// StopOutcome describes what Stop found.
type StopOutcome string

const (
	// StopNone means there was no PID file, nothing to do.
	StopNone StopOutcome = "none"

	// StopKilled means a termination signal was delivered.
	StopKilled StopOutcome = "killed"

	// StopStale means the PID file existed but the process was already
	// gone.
	StopStale StopOutcome = "stale"
)

// Status describes the tracked worker.
type Status struct {
	Running bool
	PID     int
	Stale   bool
}

// PIDFile returns the sentinel path for a repository.
func PIDFile(repoPath string) string {
	return filepath.Join(repoPath, ".entirecontext", "worker.pid")
}

// ReadPID reads the tracked PID. Returns 0 when no valid sentinel exists.
func ReadPID(repoPath string) int {
	data, err := os.ReadFile(PIDFile(repoPath))
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0
	}
	return pid
}

// Launch starts cmd as a detached process (own session, stdio discarded),
// records its PID in the sentinel file, and returns immediately.
func Launch(repoPath string, cmd []string) (int, error) {
	if len(cmd) == 0 {
		return 0, fmt.Errorf("worker command is empty")
	}

	pidPath := PIDFile(repoPath)
	if err := os.MkdirAll(filepath.Dir(pidPath), 0755); err != nil {
		return 0, fmt.Errorf("failed to create sentinel directory: %w", err)
	}

	c := exec.Command(cmd[0], cmd[1:]...)
	c.Dir = repoPath
	c.Stdin = nil
	c.Stdout = nil
	c.Stderr = nil
	c.SysProcAttr = detachAttr()

	if err := c.Start(); err != nil {
		return 0, fmt.Errorf("failed to launch worker: %w", err)
	}
	pid := c.Process.Pid

	// Detach the parent's bookkeeping so the child survives us.
	_ = c.Process.Release()

	if err := os.WriteFile(pidPath, []byte(fmt.Sprintf("%d\n", pid)), 0644); err != nil {
		return pid, fmt.Errorf("worker launched but sentinel write failed: %w", err)
	}
	return pid, nil
}

// GetStatus reports the tracked worker's state. A dead PID is reported as
// stale; the sentinel is not deleted here, that is Stop's job.
func GetStatus(repoPath string) Status {
	pid := ReadPID(repoPath)
	if pid == 0 {
		return Status{}
	}
	if processAlive(pid) {
		return Status{Running: true, PID: pid}
	}
	return Status{PID: pid, Stale: true}
}

// Stop terminates the tracked worker. A permission error delivering the
// signal means a foreign process owns the PID; it is propagated and the
// sentinel is kept so the state stays inspectable. In the killed and stale
// cases the sentinel is removed.
func Stop(repoPath string) (StopOutcome, error) {
	pid := ReadPID(repoPath)
	if pid == 0 {
		return StopNone, nil
	}

	outcome := StopKilled
	switch err := terminate(pid); {
	case err == nil:
	case isNoSuchProcess(err):
		outcome = StopStale
	default:
		return "", fmt.Errorf("failed to stop worker %d: %w", pid, err)
	}

	_ = os.Remove(PIDFile(repoPath))
	return outcome, nil
}
