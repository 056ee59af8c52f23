package server

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/NicolasHaas/chatrelay/pkg/logging"
	"github.com/NicolasHaas/chatrelay/pkg/model"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. CHATRELAY_WRITE_TIMEOUT.
const EnvPrefix = "CHATRELAY_"

// RateLimitConfig bounds how fast one session may send PUBLIC_TEXT.
// PerSecond <= 0 disables limiting, which is the default; excess messages
// are dropped when it is enabled.
type RateLimitConfig struct {
	PerSecond float64 `yaml:"per_second" env:"PER_SECOND"`
	Burst     int     `yaml:"burst" env:"BURST"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

// Config holds server configuration.
type Config struct {
	Addr           string   `yaml:"addr" env:"ADDR"`                                       // TCP bind address (e.g. ":7000")
	WebSocketAddr  string   `yaml:"websocket_addr" env:"WEBSOCKET_ADDR"`                   // HTTP bind address for /ws (empty = disabled)
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","` // WebSocket Origin allow-list (empty = any)
	MetricsAddr    string   `yaml:"metrics_addr" env:"METRICS_ADDR"`                       // HTTP bind address for /metrics (empty = disabled)

	IdentifyTimeout time.Duration `yaml:"identify_timeout" env:"IDENTIFY_TIMEOUT"` // 0 = wait forever
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	FanoutWorkers   int           `yaml:"fanout_workers" env:"FANOUT_WORKERS"`

	RateLimit RateLimitConfig `yaml:"rate_limit" envPrefix:"RATE_LIMIT_"`

	// Rooms restricts JOIN_ROOM to these names. Empty allows any valid name.
	Rooms []string `yaml:"rooms" env:"ROOMS" envSeparator:","`

	MetricsLogInterval time.Duration `yaml:"metrics_log_interval" env:"METRICS_LOG_INTERVAL"` // 0 = off

	Log LogConfig `yaml:"log" envPrefix:"LOG_"`
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Addr:               ":7000",
		IdentifyTimeout:    30 * time.Second,
		WriteTimeout:       5 * time.Second,
		FanoutWorkers:      32,
		RateLimit:          RateLimitConfig{Burst: 40},
		MetricsLogInterval: time.Minute,
		Log:                LogConfig{Level: "info", Format: "text"},
	}
}

// LoadConfigFile overlays a YAML file onto cfg. Keys absent from the file
// keep their current values.
func LoadConfigFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path) //nolint:gosec // path from user-provided CLI flag
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	return ParseConfigYAML(data, cfg)
}

// ParseConfigYAML overlays YAML data onto cfg.
func ParseConfigYAML(data []byte, cfg *Config) error {
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// LoadEnvFile exports the variables of a dotenv file into the process
// environment. Variables already set win.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

// ApplyEnv overlays CHATRELAY_* environment variables onto cfg.
func ApplyEnv(cfg *Config) error {
	return ApplyEnvFrom(cfg, nil)
}

// ApplyEnvFrom is ApplyEnv with an explicit environment; nil means the
// process environment.
func ApplyEnvFrom(cfg *Config, environ map[string]string) error {
	opts := env.Options{Prefix: EnvPrefix}
	if environ != nil {
		opts.Environment = environ
	}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse environment: %w", err)
	}
	return nil
}

// YAML renders the config in the same shape LoadConfigFile reads.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr must not be empty"))
	}
	if c.IdentifyTimeout < 0 {
		errs = append(errs, errors.New("identify_timeout must not be negative"))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, errors.New("write_timeout must be positive"))
	}
	if c.FanoutWorkers < 1 {
		errs = append(errs, errors.New("fanout_workers must be at least 1"))
	}
	if c.RateLimit.PerSecond > 0 && c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rate_limit.burst must be at least 1 when rate limiting is enabled"))
	}
	if c.MetricsLogInterval < 0 {
		errs = append(errs, errors.New("metrics_log_interval must not be negative"))
	}
	for _, room := range c.Rooms {
		if err := model.ValidateRoomName(room); err != nil {
			errs = append(errs, fmt.Errorf("rooms: %q: %w", room, err))
		}
	}
	if err := logging.Validate(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if err := logging.ValidateFormat(c.Log.Format); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// roomAllowed reports whether JOIN_ROOM may use room.
func (c Config) roomAllowed(room string) bool {
	return len(c.Rooms) == 0 || slices.Contains(c.Rooms, room)
}
