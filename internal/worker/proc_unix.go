//go:build unix

package worker

import (
	"errors"
	"syscall"

	"golang.org/x/sys/unix"
)

// detachAttr puts the child in its own session so it survives the parent
// and its terminal.
func detachAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setsid: true}
}

// processAlive probes a PID with signal 0. EPERM still means alive.
func processAlive(pid int) bool {
	err := unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return errors.Is(err, unix.EPERM)
}

func terminate(pid int) error {
	return unix.Kill(pid, unix.SIGTERM)
}

func isNoSuchProcess(err error) bool {
	return errors.Is(err, unix.ESRCH)
}
