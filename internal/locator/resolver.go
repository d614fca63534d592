package locator

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
)

const (
	// DefaultProduct is the installed product name.
	DefaultProduct = "8085 Simulator"

	// DefaultBinaryBase is the backend executable name without suffix.
	DefaultBinaryBase = "server"
)

// Candidate is one checked location.
type Candidate struct {
	Path   string `json:"path"`
	Exists bool   `json:"exists"`
}

// Options configures a Resolver. Zero values fall back to the running
// process and runtime.GOOS.
type Options struct {
	Mode    Mode
	Profile *Profile

	Product    string
	BinaryBase string

	// ExplicitPath, if set, is checked before any generated candidate.
	ExplicitPath string

	Executable func() (string, error)
	Getwd      func() (string, error)
	Stat       func(string) (fs.FileInfo, error)
}

// Logger defines the logging interface for the resolver.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Resolver builds and checks backend candidate paths.
type Resolver struct {
	opts    Options
	profile Profile
	logger  Logger
}

// NewResolver creates a Resolver, filling unset options with defaults.
func NewResolver(opts Options) *Resolver {
	if opts.Mode == "" {
		opts.Mode = ModeDevelopment
	}
	if opts.Product == "" {
		opts.Product = DefaultProduct
	}
	if opts.BinaryBase == "" {
		opts.BinaryBase = DefaultBinaryBase
	}
	if opts.Executable == nil {
		opts.Executable = os.Executable
	}
	if opts.Getwd == nil {
		opts.Getwd = os.Getwd
	}
	if opts.Stat == nil {
		opts.Stat = os.Stat
	}

	profile := ProfileFor(runtime.GOOS)
	if opts.Profile != nil {
		profile = *opts.Profile
	}

	return &Resolver{
		opts:    opts,
		profile: profile,
		logger:  noopLogger{},
	}
}

// SetLogger sets the logger for the resolver.
func (r *Resolver) SetLogger(logger Logger) {
	r.logger = logger
}

// Mode returns the mode candidates are generated for.
func (r *Resolver) Mode() Mode {
	return r.opts.Mode
}

// BinaryName returns the platform binary name being searched for.
func (r *Resolver) BinaryName() string {
	return r.profile.BinaryName(r.opts.BinaryBase)
}

// Candidates returns the ordered, de-duplicated candidate list without
// touching the filesystem beyond locating the executable and working
// directory.
func (r *Resolver) Candidates() []string {
	env := r.env()

	var raw []string
	if r.opts.ExplicitPath != "" {
		raw = append(raw, r.opts.ExplicitPath)
	}
	for _, build := range r.profile.Builders(r.opts.Mode) {
		raw = append(raw, build(env)...)
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// Check stats every candidate in order and logs each result.
func (r *Resolver) Check() []Candidate {
	paths := r.Candidates()
	checked := make([]Candidate, 0, len(paths))

	for i, p := range paths {
		c := Candidate{Path: p, Exists: r.isFile(p)}
		checked = append(checked, c)
		r.logger.Info("backend candidate",
			"index", i,
			"path", p,
			"exists", c.Exists,
		)
	}

	return checked
}

// Resolve returns the first existing candidate. When none exist it returns a
// *NotFoundError listing every checked path.
func (r *Resolver) Resolve() (string, error) {
	checked := r.Check()

	for _, c := range checked {
		if c.Exists {
			r.logger.Info("backend executable resolved",
				"path", c.Path,
				"mode", r.opts.Mode,
			)
			return c.Path, nil
		}
	}

	r.logger.Error("backend executable not found",
		"mode", r.opts.Mode,
		"binary", r.BinaryName(),
		"checked", checked,
	)

	return "", &NotFoundError{Candidates: checked}
}

func (r *Resolver) env() Env {
	env := Env{
		Product: r.opts.Product,
		Binary:  r.BinaryName(),
	}

	if exe, err := r.opts.Executable(); err != nil {
		r.logger.Warn("cannot determine executable path", "error", err)
	} else {
		env.ExeDir = filepath.Dir(exe)
	}

	if wd, err := r.opts.Getwd(); err != nil {
		r.logger.Warn("cannot determine working directory", "error", err)
	} else {
		env.WorkDir = wd
	}

	return env
}

// isFile reports whether p exists and is not a directory.
func (r *Resolver) isFile(p string) bool {
	info, err := r.opts.Stat(p)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.logger.Debug("backend candidate unreadable", "path", p, "error", err)
		}
		return false
	}
	return !info.IsDir()
}
