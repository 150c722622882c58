// Package config manages the noded daemon configuration using koanf/v2.
//
// Supports YAML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// -------------------------------------------------------------------------
// Configuration Structures
// -------------------------------------------------------------------------

// Config holds the complete noded configuration.
type Config struct {
	Self         SelfConfig              `koanf:"self"`
	Status       StatusConfig            `koanf:"status"`
	Metrics      MetricsConfig           `koanf:"metrics"`
	Log          LogConfig               `koanf:"log"`
	Tunnel       TunnelConfig            `koanf:"tunnel"`
	TCPServices  map[string]ServiceEntry `koanf:"tcp_services"`
	HTTPServices map[string]ServiceEntry `koanf:"http_services"`
}

// ServiceEntry configures one locally dialable service: Addr is the
// address the tunnel engine or HTTP endpoint resolves the map key to.
// RegisterService is the name this service is advertised under to peers
// (via the status API and, eventually, DHT storage); left empty, the
// service can still be dialed by its map key but is never listed as
// available, matching the distinction the original backend draws between
// a hidden service and a published one.
type ServiceEntry struct {
	Addr            string `koanf:"addr"`
	RegisterService string `koanf:"register_service"`
}

// SelfConfig identifies this node on the overlay.
type SelfConfig struct {
	// DID is this node's own decentralized identifier.
	DID string `koanf:"did"`
}

// StatusConfig holds the admin/status HTTP endpoint configuration.
type StatusConfig struct {
	// Addr is the listen address for the status API (e.g., ":8080").
	Addr string `koanf:"addr"`
}

// MetricsConfig holds the Prometheus metrics endpoint configuration.
type MetricsConfig struct {
	// Addr is the HTTP listen address for the metrics endpoint (e.g., ":9100").
	Addr string `koanf:"addr"`
	// Path is the URL path for the metrics endpoint (e.g., "/metrics").
	Path string `koanf:"path"`
}

// LogConfig holds the logging configuration.
type LogConfig struct {
	// Level is the log level: "debug", "info", "warn", "error".
	Level string `koanf:"level"`
	// Format is the log output format: "json" or "text".
	Format string `koanf:"format"`
}

// TunnelConfig holds defaults for the TCP tunnel engine.
type TunnelConfig struct {
	// DialTimeout bounds how long a TcpDial is allowed to take before the
	// engine replies with a ConnectionTimeout close.
	DialTimeout time.Duration `koanf:"dial_timeout"`
}

// -------------------------------------------------------------------------
// Defaults
// -------------------------------------------------------------------------

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Status: StatusConfig{
			Addr: ":8080",
		},
		Metrics: MetricsConfig{
			Addr: ":9100",
			Path: "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Tunnel: TunnelConfig{
			DialTimeout: 10 * time.Second,
		},
		TCPServices:  map[string]ServiceEntry{},
		HTTPServices: map[string]ServiceEntry{},
	}
}

// -------------------------------------------------------------------------
// Loader
// -------------------------------------------------------------------------

// envPrefix is the environment variable prefix for noded configuration.
// Variables are named NODED_<section>_<key>, e.g., NODED_STATUS_ADDR.
const envPrefix = "NODED_"

// Load reads configuration from a YAML file at path, overlays environment
// variable overrides (NODED_ prefix), and merges on top of DefaultConfig().
// Missing fields inherit defaults.
//
// Environment variable mapping:
//
//	NODED_SELF_DID      -> self.did
//	NODED_STATUS_ADDR   -> status.addr
//	NODED_METRICS_ADDR  -> metrics.addr
//	NODED_METRICS_PATH  -> metrics.path
//	NODED_LOG_LEVEL     -> log.level
//	NODED_LOG_FORMAT    -> log.format
//
// Uses koanf/v2 with file + env providers and YAML parser.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	defaults := DefaultConfig()
	if err := loadDefaults(k, defaults); err != nil {
		return nil, fmt.Errorf("load config defaults: %w", err)
	}

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load config from %s: %w", path, err)
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKeyMapper), nil); err != nil {
		return nil, fmt.Errorf("load env overrides: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config from %s: %w", path, err)
	}

	return cfg, nil
}

// envKeyMapper transforms NODED_STATUS_ADDR -> status.addr.
// Strips the NODED_ prefix, lowercases, and replaces _ with .
func envKeyMapper(s string) string {
	s = strings.TrimPrefix(s, envPrefix)
	s = strings.ToLower(s)
	return strings.ReplaceAll(s, "_", ".")
}

// loadDefaults marshals the default config into koanf as the base layer.
func loadDefaults(k *koanf.Koanf, defaults *Config) error {
	defaultMap := map[string]any{
		"status.addr":         defaults.Status.Addr,
		"metrics.addr":        defaults.Metrics.Addr,
		"metrics.path":        defaults.Metrics.Path,
		"log.level":           defaults.Log.Level,
		"log.format":          defaults.Log.Format,
		"tunnel.dial_timeout": defaults.Tunnel.DialTimeout.String(),
	}

	for key, val := range defaultMap {
		if err := k.Set(key, val); err != nil {
			return fmt.Errorf("set default %s: %w", key, err)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Validation
// -------------------------------------------------------------------------

// Validation errors.
var (
	// ErrEmptyDID indicates this node has no DID configured.
	ErrEmptyDID = errors.New("self.did must not be empty")

	// ErrEmptyStatusAddr indicates the status listen address is empty.
	ErrEmptyStatusAddr = errors.New("status.addr must not be empty")

	// ErrInvalidDialTimeout indicates the tunnel dial timeout is non-positive.
	ErrInvalidDialTimeout = errors.New("tunnel.dial_timeout must be > 0")

	// ErrEmptyServiceAddr indicates a configured service name maps to an
	// empty address.
	ErrEmptyServiceAddr = errors.New("service address must not be empty")
)

// Validate checks the configuration for logical errors.
// Returns the first validation error encountered.
func Validate(cfg *Config) error {
	if cfg.Self.DID == "" {
		return ErrEmptyDID
	}

	if cfg.Status.Addr == "" {
		return ErrEmptyStatusAddr
	}

	if cfg.Tunnel.DialTimeout <= 0 {
		return ErrInvalidDialTimeout
	}

	for name, entry := range cfg.TCPServices {
		if entry.Addr == "" {
			return fmt.Errorf("tcp_services[%q]: %w", name, ErrEmptyServiceAddr)
		}
	}
	for name, entry := range cfg.HTTPServices {
		if entry.Addr == "" {
			return fmt.Errorf("http_services[%q]: %w", name, ErrEmptyServiceAddr)
		}
	}

	return nil
}

// -------------------------------------------------------------------------
// Log Level Parsing
// -------------------------------------------------------------------------

// ParseLogLevel maps a configuration log level string to the corresponding
// slog.Level. Unknown values default to slog.LevelInfo.
//
// Recognized values: "debug", "info", "warn", "error" (case-insensitive).
func ParseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
