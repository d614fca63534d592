//go:build unix

package shell

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"
)

func shExec(script string) (*Exec, *bytes.Buffer) {
	var out bytes.Buffer
	return &Exec{
		Command: "/bin/sh",
		Args:    []string{"-c", script},
		Stdin:   strings.NewReader(""),
		Stdout:  &out,
		Stderr:  &out,
	}, &out
}

func TestExec_CleanExit(t *testing.T) {
	e, out := shExec("echo hello")

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if strings.TrimSpace(out.String()) != "hello" {
		t.Errorf("output = %q", out.String())
	}
}

func TestExec_FailureExit(t *testing.T) {
	e, _ := shExec("exit 4")

	err := e.Run(context.Background())
	if !errors.Is(err, ErrExited) {
		t.Fatalf("Run() = %v, want ErrExited", err)
	}

	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) || exitErr.ExitCode() != 4 {
		t.Errorf("exit error = %v, want code 4", err)
	}
}

func TestExec_InheritsEnvironment(t *testing.T) {
	t.Setenv("BACKEND_PORT", "8099")
	e, out := shExec(`echo "$BACKEND_PORT $EXTRA"`)
	e.Env = []string{"EXTRA=yes"}

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if got := strings.TrimSpace(out.String()); got != "8099 yes" {
		t.Errorf("child saw %q, want %q", got, "8099 yes")
	}
}

func TestExec_StopsOnCancel(t *testing.T) {
	e, _ := shExec("exec sleep 30")
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil after cancel", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("shell not stopped after cancel")
	}
}

func TestExec_KilledAfterStopTimeout(t *testing.T) {
	e, _ := shExec(`trap "" TERM; while :; do sleep 0.05; done`)
	e.StopTimeout = 200 * time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	start := time.Now()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() = %v, want nil", err)
		}
		if elapsed := time.Since(start); elapsed < 150*time.Millisecond {
			t.Errorf("returned after %v, before the stop timeout", elapsed)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("shell ignoring SIGTERM was not killed")
	}
}
