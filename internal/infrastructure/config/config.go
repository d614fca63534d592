package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvConfigPath overrides the config file location.
const EnvConfigPath = "SIM8085_CONFIG"

// appDir is the per-user directory name for config, cache and logs.
const appDir = "sim8085"

// Config is the root configuration structure for the launcher.
type Config struct {
	Backend  BackendConfig  `yaml:"backend"`
	Ports    PortsConfig    `yaml:"ports"`
	Health   HealthConfig   `yaml:"health"`
	Shutdown ShutdownConfig `yaml:"shutdown"`
	Shell    ShellConfig    `yaml:"shell"`
	Journal  JournalConfig  `yaml:"journal"`
	API      APIConfig      `yaml:"api"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BackendConfig describes the backend server executable.
type BackendConfig struct {
	// Mode overrides the build mode ("development" or "production").
	Mode string `yaml:"mode"`

	// Path pins an explicit executable, checked before generated candidates.
	Path string `yaml:"path"`

	// Product is the installed product name used in system install paths.
	Product string `yaml:"product"`

	// Binary is the executable base name without platform suffix.
	Binary string `yaml:"binary"`

	// MarkerEnv is the KEY=VALUE pair that tells the backend it is supervised.
	MarkerEnv string `yaml:"marker_env"`

	// Env are extra KEY=VALUE variables for the backend.
	Env []string `yaml:"env"`

	// WorkDir overrides the backend working directory.
	WorkDir string `yaml:"work_dir"`
}

// PortsConfig is the backend port scan range [start, end) and the fallback.
type PortsConfig struct {
	Start    int `yaml:"start"`
	End      int `yaml:"end"`
	Fallback int `yaml:"fallback"`
}

// HealthConfig tunes the readiness probe.
type HealthConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	Interval       time.Duration `yaml:"interval"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`

	// HTTPPath switches to an HTTP probe, e.g. "/health".
	HTTPPath string `yaml:"http_path"`
}

// ShutdownConfig bounds backend shutdown.
type ShutdownConfig struct {
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
	KillTimeout     time.Duration `yaml:"kill_timeout"`
}

// ShellConfig names the GUI shell command. An empty command makes the
// launcher wait for a signal instead.
type ShellConfig struct {
	Command string   `yaml:"command"`
	Args    []string `yaml:"args"`
	WorkDir string   `yaml:"work_dir"`
}

// JournalConfig contains the SQLite launch journal settings.
type JournalConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	MaxEntries  int    `yaml:"max_entries"`
}

// APIConfig contains the loopback control API settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	PortRange PortsConfig      `yaml:"port_range"`
	TokenTTL  time.Duration    `yaml:"token_ttl"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains event stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig caps the automatic reconnect backoff, in seconds.
type MQTTReconnectConfig struct {
	MaxDelay int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig enables an append-only log file.
type FileLoggingConfig struct {
	Path string `yaml:"path"`
}

// DefaultPath returns $SIM8085_CONFIG or <user config dir>/sim8085/config.yaml.
// It returns "" when neither can be determined.
func DefaultPath() string {
	if v := os.Getenv(EnvConfigPath); v != "" {
		return v
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir, "config.yaml")
}

// Load reads configuration from a YAML file and applies environment variable
// overrides. A missing file is an error.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(data)
}

// LoadOptional is Load, except that an empty path or a missing file yields
// the defaults with environment overrides applied.
func LoadOptional(path string) (*Config, error) {
	if path == "" {
		return parse(nil)
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return parse(nil)
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return parse(data)
}

// Default returns the built-in defaults with environment overrides. It is
// what the launcher falls back to when the config file is broken.
func Default() *Config {
	cfg := defaultConfig()
	applyEnvOverrides(cfg)
	return cfg
}

func parse(data []byte) (*Config, error) {
	cfg := defaultConfig()

	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	cacheDir := userDir(os.UserCacheDir)

	return &Config{
		Backend: BackendConfig{
			Product:   "8085 Simulator",
			Binary:    "server",
			MarkerEnv: "BACKEND_SUPERVISED=1",
		},
		Ports: PortsConfig{
			Start:    8085,
			End:      8185,
			Fallback: 8085,
		},
		Health: HealthConfig{
			MaxAttempts:    5,
			Interval:       300 * time.Millisecond,
			ConnectTimeout: 500 * time.Millisecond,
		},
		Shutdown: ShutdownConfig{
			GracefulTimeout: 5 * time.Second,
			KillTimeout:     2 * time.Second,
		},
		Journal: JournalConfig{
			Enabled:     cacheDir != "",
			Path:        joinIf(cacheDir, "launches.db"),
			WALMode:     true,
			BusyTimeout: 5,
			MaxEntries:  200,
		},
		API: APIConfig{
			Enabled:   false,
			PortRange: PortsConfig{Start: 8190, End: 8290},
			TokenTTL:  24 * time.Hour,
			Timeouts:  APITimeoutConfig{Read: 10, Write: 10, Idle: 60},
			WebSocket: WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10},
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "sim8085-launcher",
			},
			QoS:       1,
			Reconnect: MQTTReconnectConfig{MaxDelay: 30},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			URL:           "http://localhost:8086",
			Org:           "sim8085",
			Bucket:        "launcher",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

func userDir(base func() (string, error)) string {
	dir, err := base()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, appDir)
}

func joinIf(dir, name string) string {
	if dir == "" {
		return ""
	}
	return filepath.Join(dir, name)
}

// applyEnvOverrides applies SIM8085_SECTION_KEY overrides. Unparseable
// numeric values are ignored.
func applyEnvOverrides(cfg *Config) {
	// Backend
	if v := os.Getenv("SIM8085_BACKEND_MODE"); v != "" {
		cfg.Backend.Mode = v
	}
	if v := os.Getenv("SIM8085_BACKEND_PATH"); v != "" {
		cfg.Backend.Path = v
	}

	// Ports
	envInt("SIM8085_PORTS_START", &cfg.Ports.Start)
	envInt("SIM8085_PORTS_END", &cfg.Ports.End)
	envInt("SIM8085_PORTS_FALLBACK", &cfg.Ports.Fallback)

	// Shell
	if v := os.Getenv("SIM8085_SHELL_COMMAND"); v != "" {
		cfg.Shell.Command = v
	}

	// Journal
	if v := os.Getenv("SIM8085_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	envBool("SIM8085_JOURNAL_ENABLED", &cfg.Journal.Enabled)

	// API
	envBool("SIM8085_API_ENABLED", &cfg.API.Enabled)

	// MQTT
	envBool("SIM8085_MQTT_ENABLED", &cfg.MQTT.Enabled)
	if v := os.Getenv("SIM8085_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("SIM8085_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("SIM8085_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	envBool("SIM8085_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	if v := os.Getenv("SIM8085_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("SIM8085_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SIM8085_LOG_FILE"); v != "" {
		cfg.Logging.File.Path = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envBool(key string, dst *bool) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	switch strings.ToLower(c.Backend.Mode) {
	case "", "dev", "development", "prod", "release", "production":
	default:
		errs = append(errs, fmt.Sprintf("backend.mode %q must be development or production", c.Backend.Mode))
	}
	if c.Backend.Binary == "" {
		errs = append(errs, "backend.binary is required")
	}
	if c.Backend.MarkerEnv != "" && !strings.Contains(c.Backend.MarkerEnv, "=") {
		errs = append(errs, "backend.marker_env must be KEY=VALUE")
	}

	errs = append(errs, validateRange("ports", c.Ports)...)
	if !validPort(c.Ports.Fallback) {
		errs = append(errs, "ports.fallback must be between 1 and 65535")
	}

	if c.Health.MaxAttempts < 1 {
		errs = append(errs, "health.max_attempts must be at least 1")
	}
	if c.Health.Interval < 0 || c.Health.ConnectTimeout <= 0 {
		errs = append(errs, "health.interval must be >= 0 and health.connect_timeout > 0")
	}
	if c.Health.HTTPPath != "" && !strings.HasPrefix(c.Health.HTTPPath, "/") {
		errs = append(errs, "health.http_path must start with /")
	}

	if c.Shutdown.GracefulTimeout <= 0 || c.Shutdown.KillTimeout <= 0 {
		errs = append(errs, "shutdown timeouts must be positive")
	}

	if c.Journal.Enabled && c.Journal.Path == "" {
		errs = append(errs, "journal.path is required when the journal is enabled")
	}

	if c.API.Enabled {
		errs = append(errs, validateRange("api.port_range", c.API.PortRange)...)
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && (c.MQTT.Broker.Host == "" || !validPort(c.MQTT.Broker.Port)) {
		errs = append(errs, "mqtt.broker host and port are required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb url and bucket are required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateRange(name string, r PortsConfig) []string {
	if !validPort(r.Start) || r.End < 2 || r.End > 65535 {
		return []string{name + " start and end must be between 1 and 65535"}
	}
	if r.Start >= r.End {
		return []string{name + ".start must be below " + name + ".end (end is exclusive)"}
	}
	return nil
}

func validPort(p int) bool {
	return p >= 1 && p <= 65535
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
