// sim8085 launcher - desktop entry point for the 8085 Simulator.
//
// The launcher picks a free loopback port, starts the bundled backend server
// on it, waits for the server to accept connections and then runs the GUI
// shell in the foreground. When the shell exits, or the launcher receives
// SIGINT/SIGTERM, the backend is stopped before the process exits.
//
// Build:
//
//	go build -ldflags "-X main.version=1.2.0 -X main.buildMode=production" ./cmd/sim8085
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"

	_ "github.com/nerrad567/sim8085-launcher/migrations"

	"github.com/nerrad567/sim8085-launcher/internal/api"
	"github.com/nerrad567/sim8085-launcher/internal/auth"
	"github.com/nerrad567/sim8085-launcher/internal/events"
	"github.com/nerrad567/sim8085-launcher/internal/health"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/config"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/database"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/influxdb"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/logging"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/metrics"
	"github.com/nerrad567/sim8085-launcher/internal/infrastructure/mqtt"
	"github.com/nerrad567/sim8085-launcher/internal/journal"
	"github.com/nerrad567/sim8085-launcher/internal/launcher"
	"github.com/nerrad567/sim8085-launcher/internal/locator"
	"github.com/nerrad567/sim8085-launcher/internal/ports"
	"github.com/nerrad567/sim8085-launcher/internal/process"
	"github.com/nerrad567/sim8085-launcher/internal/shell"
)

// Build information, set via ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	date      = "unknown"
	buildMode = "development"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the launcher and blocks until the shell is done.
//
// Only the shell's own failure is returned. Optional integrations (journal,
// MQTT, InfluxDB, control API) that fail to come up are logged and skipped.
func run(ctx context.Context) error {
	log := logging.Default()

	cfg := loadConfig(log)

	log, err := logging.New(cfg.Logging, version)
	if err != nil {
		log.Warn("log file unavailable, logging to console only", "error", err)
	}
	defer func() {
		if closeErr := log.Close(); closeErr != nil {
			fmt.Fprintf(os.Stderr, "closing log file: %v\n", closeErr)
		}
	}()

	mode := resolveMode(cfg.Backend.Mode, buildMode, log)
	session := uuid.NewString()

	log.Info("starting sim8085 launcher",
		"version", version,
		"commit", commit,
		"build_date", date,
		"mode", mode,
		"session", session,
	)

	bus := events.NewBus(session)
	bus.SetLogger(log.With("component", "events"))

	collector := metrics.NewCollector()
	bus.Subscribe("metrics", collector)

	checks := make(map[string]api.Checker)

	history, closeJournal := openJournal(ctx, cfg.Journal, mode, bus, checks, log)
	defer closeJournal()

	closeMQTT := connectMQTT(cfg.MQTT, session, bus, checks, log)
	defer closeMQTT()

	closeInflux := connectInfluxDB(ctx, cfg.InfluxDB, bus, checks, log)
	defer closeInflux()

	resolver := locator.NewResolver(locator.Options{
		Mode:         mode,
		Product:      cfg.Backend.Product,
		BinaryBase:   cfg.Backend.Binary,
		ExplicitPath: cfg.Backend.Path,
	})
	resolver.SetLogger(log.With("component", "locator"))

	checker := health.NewChecker(health.Config{
		MaxAttempts:    cfg.Health.MaxAttempts,
		Interval:       cfg.Health.Interval,
		ConnectTimeout: cfg.Health.ConnectTimeout,
		HTTPPath:       cfg.Health.HTTPPath,
	})
	checker.SetLogger(log.With("component", "health"))

	supervisor := process.NewSupervisor(process.Config{
		Name:            "backend",
		MarkerEnv:       cfg.Backend.MarkerEnv,
		Env:             cfg.Backend.Env,
		WorkDir:         cfg.Backend.WorkDir,
		GracefulTimeout: cfg.Shutdown.GracefulTimeout,
		KillTimeout:     cfg.Shutdown.KillTimeout,
	})
	supervisor.SetLogger(log.With("component", "process"))

	if cfg.API.Enabled {
		closeAPI := startAPI(ctx, cfg, apiDeps{
			session:   session,
			backend:   supervisor,
			history:   history,
			collector: collector,
			bus:       bus,
			checks:    checks,
		}, log)
		defer closeAPI()
	} else {
		log.Debug("control API disabled")
	}

	sh := shell.New(cfg.Shell)
	if ex, ok := sh.(*shell.Exec); ok {
		ex.SetLogger(log.With("component", "shell"))
	}

	l, err := launcher.New(launcher.Deps{
		Ports:        portRange(cfg.Ports),
		FallbackPort: uint16(cfg.Ports.Fallback), //nolint:gosec // validated by config
		Allocator:    ports.NewAllocator(),
		Resolver:     resolver,
		Checker:      checker,
		Supervisor:   supervisor,
		Shell:        sh,
		Events:       bus,
		Logger:       log.With("component", "launcher"),
	})
	if err != nil {
		return fmt.Errorf("creating launcher: %w", err)
	}

	err = l.Run(ctx)
	log.Info("sim8085 launcher stopped")
	if err != nil {
		return fmt.Errorf("shell: %w", err)
	}
	return nil
}

// loadConfig reads the user's config file. A broken file is reported and the
// built-in defaults are used so the simulator still starts.
func loadConfig(log *logging.Logger) *config.Config {
	path := config.DefaultPath()

	cfg, err := config.LoadOptional(path)
	if err != nil {
		log.Error("invalid configuration, using defaults", "path", path, "error", err)
		return config.Default()
	}

	log.Debug("configuration loaded", "path", path)
	return cfg
}

// resolveMode prefers the configured mode over the one baked in at build time.
func resolveMode(configured, built string, log *logging.Logger) locator.Mode {
	raw := built
	if configured != "" {
		raw = configured
	}

	mode, err := locator.ParseMode(raw)
	if err != nil {
		log.Warn("unknown build mode, assuming development", "mode", raw)
		return locator.ModeDevelopment
	}
	return mode
}

// portRange converts a validated config range to ports.Range.
func portRange(c config.PortsConfig) ports.Range {
	return ports.Range{
		Start: uint16(c.Start), //nolint:gosec // validated by config
		End:   uint16(c.End),   //nolint:gosec // validated by config
	}
}

// openJournal opens the launch journal and subscribes it to bus. It returns
// a nil journal when disabled or unavailable; the launch goes on without it.
func openJournal(ctx context.Context, cfg config.JournalConfig, mode locator.Mode, bus *events.Bus, checks map[string]api.Checker, log *logging.Logger) (*journal.SQLiteRepository, func()) {
	noop := func() {}
	if !cfg.Enabled || cfg.Path == "" {
		log.Debug("launch journal disabled")
		return nil, noop
	}

	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		log.Warn("launch journal unavailable", "path", cfg.Path, "error", err)
		return nil, noop
	}

	closeDB := func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing launch journal", "error", closeErr)
		}
	}

	if err := db.Migrate(ctx); err != nil {
		log.Warn("launch journal migration failed", "path", cfg.Path, "error", err)
		closeDB()
		return nil, noop
	}

	repo := journal.NewSQLiteRepository(db.DB, string(mode))
	repo.SetLogger(log.With("component", "journal"))

	if cfg.MaxEntries > 0 {
		if n, pruneErr := repo.Prune(ctx, cfg.MaxEntries); pruneErr != nil {
			log.Warn("pruning launch journal failed", "error", pruneErr)
		} else if n > 0 {
			log.Debug("pruned launch journal", "removed", n)
		}
	}

	unsubscribe := bus.Subscribe("journal", repo)
	checks["journal"] = db
	log.Debug("launch journal opened", "path", cfg.Path)

	return repo, func() {
		unsubscribe()
		closeDB()
	}
}

// connectMQTT subscribes an MQTT publisher to bus when enabled.
func connectMQTT(cfg config.MQTTConfig, session string, bus *events.Bus, checks map[string]api.Checker, log *logging.Logger) func() {
	client, err := mqtt.Connect(cfg, session)
	switch {
	case errors.Is(err, mqtt.ErrDisabled):
		log.Debug("MQTT disabled")
		return func() {}
	case err != nil:
		log.Warn("MQTT unavailable, lifecycle events will not be published",
			"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
			"error", err,
		)
		return func() {}
	}

	mqttLog := log.With("component", "mqtt")
	client.SetLogger(mqttLog)

	publisher := mqtt.NewPublisher(client)
	unsubscribe := bus.Subscribe("mqtt", publisher)
	checks["mqtt"] = client

	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.Broker.Host, cfg.Broker.Port),
		"client_id", cfg.Broker.ClientID,
	)

	return func() {
		unsubscribe()
		publisher.Close()
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}
}

// connectInfluxDB subscribes a timing recorder to bus when enabled.
func connectInfluxDB(ctx context.Context, cfg config.InfluxDBConfig, bus *events.Bus, checks map[string]api.Checker, log *logging.Logger) func() {
	client, err := influxdb.Connect(ctx, cfg,
		influxdb.WithDefaultTag("version", version),
		influxdb.WithDefaultTag("build_mode", buildMode),
	)
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Debug("InfluxDB disabled")
		return func() {}
	case err != nil:
		log.Warn("InfluxDB unavailable, timings will not be recorded", "url", cfg.URL, "error", err)
		return func() {}
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	unsubscribe := bus.Subscribe("influxdb", influxdb.NewRecorder(client))
	checks["influxdb"] = client

	log.Info("InfluxDB connected", "url", cfg.URL, "org", cfg.Org, "bucket", cfg.Bucket)

	return func() {
		unsubscribe()
		if closeErr := client.Close(); closeErr != nil {
			log.Error("error closing InfluxDB", "error", closeErr)
		}
	}
}

type apiDeps struct {
	session   string
	backend   api.Backend
	history   *journal.SQLiteRepository
	collector *metrics.Collector
	bus       *events.Bus
	checks    map[string]api.Checker
}

// startAPI serves the control API on a free loopback port and exports its
// URL and a shell token. Failures disable the API for this run.
func startAPI(ctx context.Context, cfg *config.Config, d apiDeps, log *logging.Logger) func() {
	noop := func() {}
	apiLog := log.With("component", "api")

	signer, err := auth.NewSigner(d.session, cfg.API.TokenTTL)
	if err != nil {
		log.Warn("control API disabled", "error", err)
		return noop
	}

	deps := api.Deps{
		Config:  cfg.API,
		Logger:  apiLog,
		Signer:  signer,
		Backend: d.backend,
		Metrics: d.collector.Handler(),
		Checks:  d.checks,
		Session: d.session,
		Version: version,
	}
	if d.history != nil {
		deps.History = d.history
	}

	srv, err := api.New(deps)
	if err != nil {
		log.Warn("control API disabled", "error", err)
		return noop
	}

	port, err := ports.NewAllocator().FindAvailablePort(portRange(cfg.API.PortRange))
	if err != nil {
		log.Warn("control API disabled, no free port", "error", err)
		return noop
	}
	if err := srv.Start(ctx, port); err != nil {
		log.Warn("control API disabled", "port", port, "error", err)
		return noop
	}
	unsubscribe := d.bus.Subscribe("api", srv.Hub())

	closeAPI := func() {
		unsubscribe()
		if closeErr := srv.Close(); closeErr != nil {
			log.Error("error closing control API", "error", closeErr)
		}
	}

	token, err := signer.IssueToken("shell", auth.RoleShell)
	if err != nil {
		log.Warn("issuing shell token failed", "error", err)
		return closeAPI
	}
	if err := launcher.ExportControl(srv.URL(), token); err != nil {
		log.Warn("exporting control API address failed", "error", err)
	}
	return closeAPI
}
