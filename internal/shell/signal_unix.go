//go:build unix

package shell

import (
	"os"

	"golang.org/x/sys/unix"
)

// interrupt asks the GUI to quit the way a desktop session would.
func interrupt(p *os.Process) error {
	return p.Signal(unix.SIGTERM)
}
