//go:build unix

package process

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

// sysProcAttr puts the child in its own process group so the whole tree can
// be signalled on shutdown.
func sysProcAttr() *syscall.SysProcAttr {
	return &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the child's process group.
func terminate(p *os.Process) error {
	return signalGroup(p, unix.SIGTERM)
}

// kill sends SIGKILL to the child's process group.
func kill(p *os.Process) error {
	return signalGroup(p, unix.SIGKILL)
}

// signalGroup signals the process group led by p. ESRCH only says the group
// is gone; the leader may have moved to another group, so it is signalled
// directly before reporting os.ErrProcessDone.
func signalGroup(p *os.Process, sig syscall.Signal) error {
	// Negative PID addresses the process group created via Setpgid.
	err := unix.Kill(-p.Pid, sig)
	if !errors.Is(err, unix.ESRCH) {
		return err
	}
	return p.Signal(sig)
}
