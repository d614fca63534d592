//go:build unix

package process

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/sys/unix"
)

// leaveGroupEnv makes the test binary act as a backend that moves itself
// out of the process group the supervisor created.
const leaveGroupEnv = "SIM8085_PROCESS_TEST_LEAVE_GROUP"

func TestMain(m *testing.M) {
	if ready := os.Getenv(leaveGroupEnv); ready != "" {
		runLeaveGroupBackend(ready)
		return
	}
	os.Exit(m.Run())
}

func runLeaveGroupBackend(ready string) {
	pgid, err := unix.Getpgid(os.Getppid())
	if err != nil {
		os.Exit(2)
	}
	if err := unix.Setpgid(0, pgid); err != nil {
		os.Exit(3)
	}
	if err := os.WriteFile(ready, []byte("up"), 0o600); err != nil {
		os.Exit(4)
	}
	time.Sleep(time.Minute)
	os.Exit(0)
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755); err != nil {
		t.Fatalf("write script: %v", err)
	}
	return path
}

func waitForFile(t *testing.T, path string) []byte {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil && len(data) > 0 {
			return data
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("%s never appeared", path)
	return nil
}

func waitExit(t *testing.T, s *Supervisor) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("child did not exit")
	}
}

func TestExec_ImmediateExitReportedAsAlreadyExited(t *testing.T) {
	s := NewSupervisor(Config{Name: "exit3"})

	if _, err := s.Start(context.Background(), writeScript(t, "exit 3"), 9000); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExit(t, s)

	res := s.Shutdown()
	if res.Outcome != OutcomeAlreadyExited {
		t.Errorf("Outcome = %q, want already_exited", res.Outcome)
	}
	if res.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", res.ExitCode)
	}
}

func TestExec_LongRunningChildTerminated(t *testing.T) {
	s := NewSupervisor(Config{Name: "sleeper", GracefulTimeout: 3 * time.Second})

	info, err := s.Start(context.Background(), writeScript(t, "exec sleep 60"), 9000)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	res := s.Shutdown()
	if res.Outcome != OutcomeTerminated {
		t.Fatalf("Outcome = %q, want terminated", res.Outcome)
	}
	if res.Duration >= 3*time.Second {
		t.Errorf("Duration = %v, SIGTERM should stop sleep promptly", res.Duration)
	}

	if err := unix.Kill(info.PID, 0); !errors.Is(err, unix.ESRCH) {
		t.Errorf("process %d still exists after Shutdown (kill 0: %v)", info.PID, err)
	}
}

func TestExec_IgnoredTermEscalatesToKill(t *testing.T) {
	ready := filepath.Join(t.TempDir(), "ready")
	script := writeScript(t, `trap '' TERM
echo up > "$READY"
while :; do sleep 1; done`)

	s := NewSupervisor(Config{
		Name:            "stubborn",
		Env:             []string{"READY=" + ready},
		GracefulTimeout: 200 * time.Millisecond,
		KillTimeout:     3 * time.Second,
	})

	if _, err := s.Start(context.Background(), script, 9000); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForFile(t, ready)

	res := s.Shutdown()
	if res.Outcome != OutcomeKilled {
		t.Errorf("Outcome = %q, want killed", res.Outcome)
	}
}

func TestExec_ChildOutsideGroupIsStillStopped(t *testing.T) {
	self, err := os.Executable()
	if err != nil {
		t.Fatalf("os.Executable() error = %v", err)
	}
	ready := filepath.Join(t.TempDir(), "ready")

	s := NewSupervisor(Config{
		Name:            "wanderer",
		Env:             []string{leaveGroupEnv + "=" + ready},
		GracefulTimeout: 2 * time.Second,
		KillTimeout:     2 * time.Second,
	})

	info, err := s.Start(context.Background(), self, 9000)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitForFile(t, ready)

	if pgid, err := unix.Getpgid(info.PID); err != nil || pgid == info.PID {
		t.Fatalf("backend still leads its own group (pgid %d, err %v)", pgid, err)
	}

	res := s.Shutdown()
	if res.Outcome != OutcomeTerminated {
		t.Errorf("Outcome = %q, want terminated (err %v)", res.Outcome, res.Err)
	}
	if err := unix.Kill(info.PID, 0); !errors.Is(err, unix.ESRCH) {
		t.Errorf("process %d still exists after Shutdown (kill 0: %v)", info.PID, err)
	}
}

func TestExec_EnvironmentReachesChild(t *testing.T) {
	out := filepath.Join(t.TempDir(), "env.txt")
	script := writeScript(t, `printf '%s %s %s' "$BACKEND_PORT" "$BACKEND_HOST" "$BACKEND_SUPERVISED" > "$OUT"`)

	s := NewSupervisor(Config{Env: []string{"OUT=" + out}})
	if _, err := s.Start(context.Background(), script, 8321); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExit(t, s)
	s.Shutdown()

	got := strings.TrimSpace(string(waitForFile(t, out)))
	if got != "8321 127.0.0.1 1" {
		t.Errorf("child saw %q, want %q", got, "8321 127.0.0.1 1")
	}
}

func TestExec_OutputForwardedToLogger(t *testing.T) {
	rec := &recordingLogger{}
	s := NewSupervisor(Config{})
	s.SetLogger(rec)

	if _, err := s.Start(context.Background(), writeScript(t, "echo hello from backend; echo oops >&2"), 9000); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitExit(t, s)
	s.Shutdown()

	got := strings.Join(rec.outputs(), "|")
	if !strings.Contains(got, "hello from backend") || !strings.Contains(got, "oops") {
		t.Errorf("logged output = %q", got)
	}
}

func TestExec_MissingBinaryIsSpawnError(t *testing.T) {
	s := NewSupervisor(Config{})

	_, err := s.Start(context.Background(), filepath.Join(t.TempDir(), "nope"), 9000)

	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("Start() error = %v, want *SpawnError", err)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("error = %v, want fs.ErrNotExist in chain", err)
	}
	if s.Running() {
		t.Error("Running() = true after failed spawn")
	}
}
