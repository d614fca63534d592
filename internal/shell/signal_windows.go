//go:build windows

package shell

import "os"

// interrupt has no console-less graceful form on windows.
func interrupt(p *os.Process) error {
	return p.Kill()
}
