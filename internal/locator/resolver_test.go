package locator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
)

func fixedExe(path string) func() (string, error) {
	return func() (string, error) { return path, nil }
}

func fixedWd(path string) func() (string, error) {
	return func() (string, error) { return path, nil }
}

func profilePtr(goos string) *Profile {
	p := ProfileFor(goos)
	return &p
}

func equalPaths(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d candidates %v, want %d %v", len(got), got, len(want), want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("candidate[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", ModeDevelopment, false},
		{"development", ModeDevelopment, false},
		{"DEV", ModeDevelopment, false},
		{"production", ModeProduction, false},
		{" prod ", ModeProduction, false},
		{"staging", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseMode(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidMode) {
				t.Errorf("error = %v, want ErrInvalidMode", err)
			}
			if got != tt.want {
				t.Errorf("ParseMode(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestCandidates_Order(t *testing.T) {
	const (
		exe = "/opt/app/bin/sim8085"
		wd  = "/home/user/work"
	)

	tests := []struct {
		name string
		goos string
		mode Mode
		want []string
	}{
		{
			name: "development linux",
			goos: "linux",
			mode: ModeDevelopment,
			want: []string{
				"/opt/resources/backend/server",
				"/home/user/work/resources/backend/server",
			},
		},
		{
			name: "production linux",
			goos: "linux",
			mode: ModeProduction,
			want: []string{
				"/opt/usr/lib/8085 Simulator/resources/backend/server",
				"/opt/app/bin/resources/backend/server",
				"/usr/lib/8085 Simulator/resources/backend/server",
				"/usr/lib/8085-Simulator/resources/backend/server",
				"/usr/lib/8085_simulator/resources/backend/server",
			},
		},
		{
			name: "production darwin",
			goos: "darwin",
			mode: ModeProduction,
			want: []string{
				"/opt/usr/lib/8085 Simulator/resources/backend/server",
				"/opt/app/bin/resources/backend/server",
				"/opt/app/Resources/backend/server",
			},
		},
		{
			name: "production windows",
			goos: "windows",
			mode: ModeProduction,
			want: []string{
				"/opt/usr/lib/8085 Simulator/resources/backend/server.exe",
				"/opt/app/bin/resources/backend/server.exe",
			},
		},
		{
			name: "development windows",
			goos: "windows",
			mode: ModeDevelopment,
			want: []string{
				"/opt/resources/backend/server.exe",
				"/home/user/work/resources/backend/server.exe",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(Options{
				Mode:       tt.mode,
				Profile:    profilePtr(tt.goos),
				Executable: fixedExe(exe),
				Getwd:      fixedWd(wd),
			})
			equalPaths(t, r.Candidates(), tt.want)
		})
	}
}

func TestCandidates_ExplicitPathFirst(t *testing.T) {
	r := NewResolver(Options{
		Mode:         ModeDevelopment,
		Profile:      profilePtr("linux"),
		ExplicitPath: "/srv/backend/server",
		Executable:   fixedExe("/opt/app/bin/sim8085"),
		Getwd:        fixedWd("/tmp"),
	})

	got := r.Candidates()
	if len(got) != 3 || got[0] != "/srv/backend/server" {
		t.Fatalf("Candidates() = %v, want explicit path first", got)
	}
}

func TestCandidates_DuplicateVariantsCollapse(t *testing.T) {
	r := NewResolver(Options{
		Mode:       ModeProduction,
		Profile:    profilePtr("linux"),
		Product:    "sim",
		Executable: fixedExe("/opt/app/bin/sim8085"),
		Getwd:      fixedWd("/tmp"),
	})

	equalPaths(t, r.Candidates(), []string{
		"/opt/usr/lib/sim/resources/backend/server",
		"/opt/app/bin/resources/backend/server",
		"/usr/lib/sim/resources/backend/server",
	})
}

func TestCandidates_UnknownExecutableSkipsExeRules(t *testing.T) {
	r := NewResolver(Options{
		Mode:       ModeDevelopment,
		Profile:    profilePtr("linux"),
		Executable: func() (string, error) { return "", errors.New("no proc") },
		Getwd:      fixedWd("/work"),
	})

	equalPaths(t, r.Candidates(), []string{"/work/resources/backend/server"})
}

func TestProductVariants(t *testing.T) {
	got := ProductVariants("8085 Simulator")
	want := []string{"8085 Simulator", "8085-Simulator", "8085_simulator"}
	equalPaths(t, got, want)
}

func TestProfile_BinaryName(t *testing.T) {
	if got := ProfileFor("windows").BinaryName("server"); got != "server.exe" {
		t.Errorf("windows BinaryName = %q, want server.exe", got)
	}
	for _, goos := range []string{"linux", "darwin", "freebsd"} {
		if got := ProfileFor(goos).BinaryName("server"); got != "server" {
			t.Errorf("%s BinaryName = %q, want server", goos, got)
		}
	}
}

// layout creates exe and work dirs under a temp root.
func layout(t *testing.T) (root, exe, wd string) {
	t.Helper()
	root = t.TempDir()
	exe = filepath.Join(root, "app", "bin", "sim8085")
	wd = filepath.Join(root, "work")
	for _, d := range []string{filepath.Dir(exe), wd} {
		if err := os.MkdirAll(d, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	return root, exe, wd
}

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestResolve_PicksFirstExisting(t *testing.T) {
	root, exe, wd := layout(t)
	profile := Profile{
		GOOS: "test",
		Production: []Builder{
			relocatableBundle,
			besideExecutable,
			appBundleResources,
		},
	}

	// Only the third candidate exists.
	third := filepath.Join(root, "app", "Resources", "backend", "server")
	touch(t, third)

	r := NewResolver(Options{
		Mode:       ModeProduction,
		Profile:    &profile,
		Executable: fixedExe(exe),
		Getwd:      fixedWd(wd),
	})

	got, err := r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != third {
		t.Errorf("Resolve() = %q, want %q", got, third)
	}

	// Once an earlier candidate appears it takes priority.
	second := filepath.Join(root, "app", "bin", "resources", "backend", "server")
	touch(t, second)

	got, err = r.Resolve()
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got != second {
		t.Errorf("Resolve() = %q, want %q", got, second)
	}
}

func TestResolve_NotFoundListsEveryCandidate(t *testing.T) {
	_, exe, wd := layout(t)

	r := NewResolver(Options{
		Mode:       ModeDevelopment,
		Profile:    profilePtr("linux"),
		Executable: fixedExe(exe),
		Getwd:      fixedWd(wd),
	})

	_, err := r.Resolve()
	if !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrBackendNotFound", err)
	}

	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("Resolve() error is %T, want *NotFoundError", err)
	}
	if len(nf.Candidates) != 2 {
		t.Fatalf("checked %d candidates, want 2", len(nf.Candidates))
	}
	for _, c := range nf.Candidates {
		if c.Exists {
			t.Errorf("candidate %q reported as existing", c.Path)
		}
	}
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, args []any) {
	l.entries = append(l.entries, logEntry{level: level, msg: msg, args: args})
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.add("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.add("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.add("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.add("error", msg, args) }

func argValue(args []any, key string) (any, bool) {
	for i := 0; i+1 < len(args); i += 2 {
		if args[i] == key {
			return args[i+1], true
		}
	}
	return nil, false
}

func TestResolve_LogsEveryCandidateAtInfo(t *testing.T) {
	_, exe, wd := layout(t)
	touch(t, filepath.Join(wd, "resources", "backend", "server"))

	r := NewResolver(Options{
		Mode:       ModeDevelopment,
		Profile:    profilePtr("linux"),
		Executable: fixedExe(exe),
		Getwd:      fixedWd(wd),
	})
	rec := &recordingLogger{}
	r.SetLogger(rec)

	want := r.Candidates()
	if _, err := r.Resolve(); err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	var seen []string
	var missing int
	for _, e := range rec.entries {
		if e.msg != "backend candidate" {
			continue
		}
		if e.level != "info" {
			t.Errorf("candidate logged at %s, want info", e.level)
		}
		exists, ok := argValue(e.args, "exists")
		if !ok {
			t.Errorf("candidate entry %v has no exists field", e.args)
		}
		if exists == false {
			missing++
		}
		path, _ := argValue(e.args, "path")
		seen = append(seen, path.(string))
	}
	equalPaths(t, seen, want)
	if missing != 1 {
		t.Errorf("%d candidates logged as missing, want 1", missing)
	}
}

func TestResolve_NotFoundLogsExistence(t *testing.T) {
	_, exe, wd := layout(t)

	r := NewResolver(Options{
		Mode:       ModeDevelopment,
		Profile:    profilePtr("linux"),
		Executable: fixedExe(exe),
		Getwd:      fixedWd(wd),
	})
	rec := &recordingLogger{}
	r.SetLogger(rec)

	if _, err := r.Resolve(); err == nil {
		t.Fatal("Resolve() succeeded with no backend present")
	}

	last := rec.entries[len(rec.entries)-1]
	if last.level != "error" || last.msg != "backend executable not found" {
		t.Fatalf("last entry = %s %q, want the not-found error", last.level, last.msg)
	}
	v, ok := argValue(last.args, "checked")
	if !ok {
		t.Fatalf("not-found entry %v has no checked field", last.args)
	}
	checked, ok := v.([]Candidate)
	if !ok || len(checked) != 2 {
		t.Fatalf("checked = %#v, want 2 candidates", v)
	}
	for _, c := range checked {
		if c.Exists {
			t.Errorf("candidate %q reported as existing", c.Path)
		}
	}
}

func TestResolve_DirectoryIsNotABinary(t *testing.T) {
	_, exe, wd := layout(t)

	dir := filepath.Join(wd, "resources", "backend", "server")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	r := NewResolver(Options{
		Mode:       ModeDevelopment,
		Profile:    profilePtr("linux"),
		Executable: fixedExe(exe),
		Getwd:      fixedWd(wd),
	})

	if _, err := r.Resolve(); !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrBackendNotFound", err)
	}
}

func TestResolve_StatErrorTreatedAsMissing(t *testing.T) {
	r := NewResolver(Options{
		Mode:       ModeDevelopment,
		Profile:    profilePtr("linux"),
		Executable: fixedExe("/x/y/z"),
		Getwd:      fixedWd("/w"),
		Stat: func(string) (fs.FileInfo, error) {
			return nil, fs.ErrPermission
		},
	})

	if _, err := r.Resolve(); !errors.Is(err, ErrBackendNotFound) {
		t.Fatalf("Resolve() error = %v, want ErrBackendNotFound", err)
	}
}
