//go:build !unix

package worker

import (
	"os"
	"syscall"
)

func detachAttr() *syscall.SysProcAttr {
	return nil
}

// processAlive falls back to os.FindProcess + Kill where no signal-0 probe
// exists. FindProcess only fails for dead PIDs on these platforms.
func processAlive(pid int) bool {
	p, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return p.Signal(syscall.Signal(0)) == nil
}

func terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Kill()
}

func isNoSuchProcess(err error) bool {
	return os.IsNotExist(err)
}
