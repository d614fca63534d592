package health

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"
)

func listenLoopback(t *testing.T) (net.Listener, uint16) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln, uint16(ln.Addr().(*net.TCPAddr).Port)
}

// closedPort returns a port with nothing listening on it.
func closedPort(t *testing.T) uint16 {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	port := uint16(ln.Addr().(*net.TCPAddr).Port)
	ln.Close()
	return port
}

func serverPort(t *testing.T, srv *httptest.Server) uint16 {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse url: %v", err)
	}
	p, err := strconv.Atoi(u.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}
	return uint16(p)
}

func TestNewChecker_Defaults(t *testing.T) {
	c := NewChecker(Config{})
	cfg := c.Config()

	if cfg.MaxAttempts != 5 {
		t.Errorf("MaxAttempts = %d, want 5", cfg.MaxAttempts)
	}
	if cfg.Interval != 300*time.Millisecond {
		t.Errorf("Interval = %v, want 300ms", cfg.Interval)
	}
	if cfg.ConnectTimeout != 500*time.Millisecond {
		t.Errorf("ConnectTimeout = %v, want 500ms", cfg.ConnectTimeout)
	}
	if _, ok := c.probe.(TCPProbe); !ok {
		t.Errorf("default probe = %T, want TCPProbe", c.probe)
	}

	c = NewChecker(Config{HTTPPath: "/health"})
	if _, ok := c.probe.(HTTPProbe); !ok {
		t.Errorf("probe with HTTPPath = %T, want HTTPProbe", c.probe)
	}
}

func TestWait_ListeningPortHealthyOnFirstAttempt(t *testing.T) {
	_, port := listenLoopback(t)

	c := NewChecker(Config{Interval: time.Second})
	res := c.Wait(context.Background(), port)

	if !res.Healthy {
		t.Fatalf("Healthy = false, LastErr = %v", res.LastErr)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
	if res.Elapsed >= time.Second {
		t.Errorf("Elapsed = %v, should not have slept", res.Elapsed)
	}
}

func TestWait_ClosedPortExhaustsAttempts(t *testing.T) {
	port := closedPort(t)

	c := NewChecker(Config{
		MaxAttempts:    3,
		Interval:       50 * time.Millisecond,
		ConnectTimeout: 100 * time.Millisecond,
	})

	res := c.Wait(context.Background(), port)
	if res.Healthy {
		t.Fatal("Healthy = true on a closed port")
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if res.LastErr == nil {
		t.Error("LastErr = nil, want dial error")
	}
	// Two sleeps between three attempts; no sleep after the last. Each dial
	// is bounded by ConnectTimeout.
	if res.Elapsed < 100*time.Millisecond {
		t.Errorf("Elapsed = %v, want >= 100ms", res.Elapsed)
	}
	if limit := 2*50*time.Millisecond + 3*100*time.Millisecond + 100*time.Millisecond; res.Elapsed > limit {
		t.Errorf("Elapsed = %v, want <= %v", res.Elapsed, limit)
	}
}

func TestWait_ElapsedTracksIntervals(t *testing.T) {
	const (
		attempts = 3
		interval = 200 * time.Millisecond
		slack    = 150 * time.Millisecond
	)

	c := NewChecker(Config{MaxAttempts: attempts, Interval: interval})
	c.SetProbe(ProbeFunc(func(context.Context, uint16) error {
		return errors.New("connection refused")
	}))

	res := c.Wait(context.Background(), 8085)
	if res.Healthy || res.Attempts != attempts {
		t.Fatalf("Wait() = %+v, want %d failed attempts", res, attempts)
	}

	// A sleep after the final attempt would push Elapsed past the bound.
	lower := (attempts - 1) * interval
	if res.Elapsed < lower || res.Elapsed > lower+slack {
		t.Errorf("Elapsed = %v, want within [%v, %v]", res.Elapsed, lower, lower+slack)
	}
}

func TestWait_SucceedsOnLaterAttempt(t *testing.T) {
	calls := 0
	c := NewChecker(Config{MaxAttempts: 5, Interval: time.Millisecond})
	c.SetProbe(ProbeFunc(func(context.Context, uint16) error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}))

	res := c.Wait(context.Background(), 9999)
	if !res.Healthy {
		t.Fatal("Healthy = false, want true")
	}
	if res.Attempts != 3 || calls != 3 {
		t.Errorf("Attempts = %d, calls = %d, want 3", res.Attempts, calls)
	}
	if res.LastErr != nil {
		t.Errorf("LastErr = %v, want nil after success", res.LastErr)
	}
}

func TestWait_ContextCancelStopsEarly(t *testing.T) {
	calls := 0
	c := NewChecker(Config{MaxAttempts: 10, Interval: time.Hour})
	c.SetProbe(ProbeFunc(func(context.Context, uint16) error {
		calls++
		return errors.New("down")
	}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	done := make(chan Result, 1)
	go func() { done <- c.Wait(ctx, 9999) }()

	select {
	case res := <-done:
		if res.Healthy {
			t.Error("Healthy = true after cancel")
		}
		if calls != 1 {
			t.Errorf("calls = %d, want 1", calls)
		}
		if !errors.Is(res.LastErr, context.Canceled) {
			t.Errorf("LastErr = %v, want context.Canceled", res.LastErr)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Wait did not return after cancel")
	}
}

func TestWaitUntilHealthy(t *testing.T) {
	_, port := listenLoopback(t)
	c := NewChecker(Config{MaxAttempts: 1})

	if !c.WaitUntilHealthy(context.Background(), port) {
		t.Error("WaitUntilHealthy() = false on a listening port")
	}
	if c.WaitUntilHealthy(context.Background(), closedPort(t)) {
		t.Error("WaitUntilHealthy() = true on a closed port")
	}
}

func TestHTTPProbe(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr bool
	}{
		{"ok", http.StatusOK, false},
		{"no content", http.StatusNoContent, false},
		{"unavailable", http.StatusServiceUnavailable, true},
		{"not found", http.StatusNotFound, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath string
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath = r.URL.Path
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			p := HTTPProbe{Path: "/health", Timeout: time.Second}
			err := p.Probe(context.Background(), serverPort(t, srv))

			if (err != nil) != tt.wantErr {
				t.Fatalf("Probe() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrUnhealthy) {
				t.Errorf("error = %v, want ErrUnhealthy", err)
			}
			if gotPath != "/health" {
				t.Errorf("path = %q, want /health", gotPath)
			}
		})
	}
}

func TestProbes_RejectPortZero(t *testing.T) {
	if err := (TCPProbe{}).Probe(context.Background(), 0); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("TCPProbe error = %v, want ErrInvalidPort", err)
	}
	if err := (HTTPProbe{}).Probe(context.Background(), 0); !errors.Is(err, ErrInvalidPort) {
		t.Errorf("HTTPProbe error = %v, want ErrInvalidPort", err)
	}
}
