package launcher

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/nerrad567/sim8085-launcher/internal/process"
)

// Variables exported into the launcher's own environment for the GUI shell.
const (
	EnvBackendPort  = process.EnvBackendPort
	EnvControlURL   = "SIM8085_CONTROL_URL"
	EnvControlToken = "SIM8085_CONTROL_TOKEN"
)

// ExportBackendPort publishes port to the launcher's environment so the GUI
// shell, which inherits it, can find the backend.
func ExportBackendPort(port uint16) error {
	if port == 0 {
		return fmt.Errorf("%w: 0", ErrInvalidPort)
	}
	if err := os.Setenv(EnvBackendPort, strconv.Itoa(int(port))); err != nil {
		return fmt.Errorf("exporting %s: %w", EnvBackendPort, err)
	}
	return nil
}

// BackendPortFromEnv reads BACKEND_PORT back.
func BackendPortFromEnv() (uint16, error) {
	raw, ok := os.LookupEnv(EnvBackendPort)
	if !ok || strings.TrimSpace(raw) == "" {
		return 0, ErrPortNotSet
	}

	port, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 16)
	if err != nil || port == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidPort, raw)
	}
	return uint16(port), nil
}

// BackendURLFromEnv returns http://127.0.0.1:<BACKEND_PORT>.
func BackendURLFromEnv() (string, error) {
	port, err := BackendPortFromEnv()
	if err != nil {
		return "", err
	}
	return BackendURL(port), nil
}

// BackendURL is the base URL of a backend listening on port.
func BackendURL(port uint16) string {
	return "http://" + net.JoinHostPort(process.BackendHost, strconv.Itoa(int(port)))
}

// ExportControl publishes the control API address and the shell's bearer
// token.
func ExportControl(url, token string) error {
	if err := os.Setenv(EnvControlURL, url); err != nil {
		return fmt.Errorf("exporting %s: %w", EnvControlURL, err)
	}
	if err := os.Setenv(EnvControlToken, token); err != nil {
		return fmt.Errorf("exporting %s: %w", EnvControlToken, err)
	}
	return nil
}
