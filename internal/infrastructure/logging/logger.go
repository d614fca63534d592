package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/config"
)

// serviceName is attached to every record.
const serviceName = "sim8085-launcher"

const (
	logDirPermissions  = 0o750
	logFilePermissions = 0o600
)

// Logger wraps slog.Logger with launcher defaults.
//
// Safe for concurrent use.
type Logger struct {
	*slog.Logger
	file *os.File
}

// New creates a Logger from configuration.
//
// When logging.file.path is set the same records are appended to that file.
// If the file cannot be opened, the returned Logger still writes to the
// console and the error describes the file problem.
func New(cfg config.LoggingConfig, version string) (*Logger, error) {
	console := consoleWriter(cfg.Output)

	var (
		file    *os.File
		fileErr error
	)
	if cfg.File.Path != "" {
		file, fileErr = openLogFile(cfg.File.Path)
	}

	output := console
	if file != nil {
		output = io.MultiWriter(console, file)
	}

	opts := &slog.HandlerOptions{
		Level: parseLevel(cfg.Level),
	}

	var handler slog.Handler
	switch strings.ToLower(cfg.Format) {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}

	handler = handler.WithAttrs([]slog.Attr{
		slog.String("service", serviceName),
		slog.String("version", version),
	})

	return &Logger{Logger: slog.New(handler), file: file}, fileErr
}

func consoleWriter(output string) io.Writer {
	switch strings.ToLower(output) {
	case "stdout":
		return os.Stdout
	case "none", "discard":
		return io.Discard
	default:
		return os.Stderr
	}
}

func openLogFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), logDirPermissions); err != nil {
		return nil, fmt.Errorf("creating log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermissions) //nolint:gosec // path from config
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

// parseLevel converts a string log level to slog.Level.
// Defaults to info if unrecognised.
func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a new Logger with additional default attributes. The log file,
// if any, stays owned by the parent.
//
//	supLogger := logger.With("component", "process")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{
		Logger: l.Logger.With(args...),
	}
}

// Close closes the log file, if one was opened.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// Default creates a console logger for use before configuration is loaded.
func Default() *Logger {
	l, _ := New(config.LoggingConfig{ //nolint:errcheck // no file, cannot fail
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}, "dev")
	return l
}
