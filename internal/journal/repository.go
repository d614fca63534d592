package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/sim8085-launcher/internal/events"
)

const (
	// writeTimeout bounds each event write.
	writeTimeout = 2 * time.Second

	defaultLimit = 20
	maxLimit     = 200
)

// Launch is one recorded launcher run.
type Launch struct {
	Session        string     `json:"session"`
	StartedAt      time.Time  `json:"started_at"`
	Mode           string     `json:"mode,omitempty"`
	Port           *int       `json:"port,omitempty"`
	PortFallback   bool       `json:"port_fallback"`
	BackendPath    string     `json:"backend_path,omitempty"`
	PID            *int       `json:"pid,omitempty"`
	Healthy        *bool      `json:"healthy,omitempty"`
	HealthAttempts *int       `json:"health_attempts,omitempty"`
	StartupMS      *int64     `json:"startup_ms,omitempty"`
	Error          string     `json:"error,omitempty"`
	StoppedAt      *time.Time `json:"stopped_at,omitempty"`
	Outcome        string     `json:"outcome,omitempty"`
	ExitCode       *int       `json:"exit_code,omitempty"`
	ShutdownMS     *int64     `json:"shutdown_ms,omitempty"`
}

// Repository defines the launch journal operations.
type Repository interface {
	Record(ctx context.Context, e events.Event) error
	Recent(ctx context.Context, limit int) ([]Launch, error)
	Get(ctx context.Context, session string) (*Launch, error)
	Prune(ctx context.Context, keep int) (int64, error)
}

// Logger defines the logging interface for the journal.
type Logger interface {
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...any) {}

// SQLiteRepository stores launches in SQLite.
type SQLiteRepository struct {
	db     *sql.DB
	mode   string
	logger Logger
}

// NewSQLiteRepository creates a journal that tags new rows with mode.
func NewSQLiteRepository(db *sql.DB, mode string) *SQLiteRepository {
	return &SQLiteRepository{db: db, mode: mode, logger: noopLogger{}}
}

// SetLogger sets the logger for write failures seen by OnEvent.
func (r *SQLiteRepository) SetLogger(logger Logger) {
	r.logger = logger
}

// OnEvent implements events.Observer.
func (r *SQLiteRepository) OnEvent(e events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.Record(ctx, e); err != nil {
		r.logger.Warn("journal write failed", "type", e.Type, "session", e.Session, "error", err)
	}
}

// Record applies one event to its session's row, creating the row on first
// sight of the session.
func (r *SQLiteRepository) Record(ctx context.Context, e events.Event) error {
	if e.Session == "" {
		return fmt.Errorf("recording %s: empty session", e.Type)
	}
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	if _, err := r.db.ExecContext(ctx,
		`INSERT INTO launches (session, started_at, mode) VALUES (?, ?, ?)
		 ON CONFLICT(session) DO NOTHING`,
		e.Session, formatTime(e.Time), r.mode,
	); err != nil {
		return fmt.Errorf("creating launch row: %w", err)
	}

	query, args := updateFor(e)
	if query == "" {
		return nil
	}

	if _, err := r.db.ExecContext(ctx, query, append(args, e.Session)...); err != nil {
		return fmt.Errorf("recording %s: %w", e.Type, err)
	}
	return nil
}

// updateFor maps an event to an UPDATE whose last placeholder is the session.
func updateFor(e events.Event) (string, []any) {
	switch e.Type {
	case events.PortSelected:
		return `UPDATE launches SET port = ?, port_fallback = ? WHERE session = ?`,
			[]any{int(e.Port), boolInt(e.Fallback)}

	case events.BackendNotFound:
		return `UPDATE launches SET error = ? WHERE session = ?`,
			[]any{fmt.Sprintf("backend not found (%d candidates)", len(e.Candidates))}

	case events.BackendStarted:
		return `UPDATE launches SET backend_path = ?, pid = ? WHERE session = ?`,
			[]any{e.Path, e.PID}

	case events.SpawnFailed:
		return `UPDATE launches SET backend_path = ?, error = ? WHERE session = ?`,
			[]any{e.Path, e.Error}

	case events.HealthChecked:
		return `UPDATE launches SET healthy = ?, health_attempts = ? WHERE session = ?`,
			[]any{boolInt(e.Healthy), e.Attempts}

	case events.StartupCompleted:
		return `UPDATE launches SET startup_ms = ? WHERE session = ?`,
			[]any{e.Timings[events.PhaseTotal].Milliseconds()}

	case events.BackendExited:
		return `UPDATE launches SET exit_code = ?, error = ? WHERE session = ?`,
			[]any{nullableInt(e.ExitCode), "backend exited unexpectedly"}

	case events.BackendStopped:
		return `UPDATE launches SET stopped_at = ?, outcome = ?, exit_code = COALESCE(?, exit_code), shutdown_ms = ? WHERE session = ?`,
			[]any{formatTime(e.Time), e.Outcome, nullableInt(e.ExitCode), e.Duration.Milliseconds()}
	}
	return "", nil
}

const selectLaunch = `SELECT session, started_at, mode, port, port_fallback, backend_path, pid,
	healthy, health_attempts, startup_ms, error, stopped_at, outcome, exit_code, shutdown_ms
	FROM launches`

// Recent returns the newest launches first. limit defaults to 20, max 200.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]Launch, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}

	rows, err := r.db.QueryContext(ctx, selectLaunch+` ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying launches: %w", err)
	}
	defer rows.Close()

	launches := make([]Launch, 0, limit)
	for rows.Next() {
		l, err := scanLaunch(rows)
		if err != nil {
			return nil, err
		}
		launches = append(launches, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating launches: %w", err)
	}
	return launches, nil
}

// Get returns one launch by session id.
func (r *SQLiteRepository) Get(ctx context.Context, session string) (*Launch, error) {
	row := r.db.QueryRowContext(ctx, selectLaunch+` WHERE session = ?`, session)
	l, err := scanLaunch(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return l, err
}

// Prune deletes all but the newest keep launches and returns how many rows
// were removed. keep <= 0 disables pruning.
func (r *SQLiteRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}

	res, err := r.db.ExecContext(ctx,
		`DELETE FROM launches WHERE session NOT IN (
			SELECT session FROM launches ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("pruning launches: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("pruning launches: %w", err)
	}
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLaunch(s scanner) (*Launch, error) {
	var (
		l                                      Launch
		startedAt                              string
		port, pid, healthy, attempts, exitCode sql.NullInt64
		startupMS, shutdownMS                  sql.NullInt64
		fallback                               int64
		path, errText, stoppedAt, outcome      sql.NullString
	)

	err := s.Scan(&l.Session, &startedAt, &l.Mode, &port, &fallback, &path, &pid,
		&healthy, &attempts, &startupMS, &errText, &stoppedAt, &outcome, &exitCode, &shutdownMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning launch: %w", err)
	}

	l.StartedAt = parseTime(startedAt)
	l.PortFallback = fallback != 0
	l.BackendPath = path.String
	l.Error = errText.String
	l.Outcome = outcome.String
	l.Port = intPtr(port)
	l.PID = intPtr(pid)
	l.HealthAttempts = intPtr(attempts)
	l.ExitCode = intPtr(exitCode)
	if healthy.Valid {
		h := healthy.Int64 != 0
		l.Healthy = &h
	}
	if startupMS.Valid {
		l.StartupMS = &startupMS.Int64
	}
	if shutdownMS.Valid {
		l.ShutdownMS = &shutdownMS.Int64
	}
	if stoppedAt.Valid {
		t := parseTime(stoppedAt.String)
		l.StoppedAt = &t
	}

	return &l, nil
}

// timeFormat is fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(timeFormat, s) //nolint:errcheck // format is ours
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
