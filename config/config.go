// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the configuration file looked up in the working directory.
const DefaultPath = "index.yaml"

// Config is the root configuration structure.
// It is loaded once at startup and treated as read-only afterwards.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Gunicorn GunicornConfig `yaml:"gunicorn"`
	Uvicorn  UvicornConfig  `yaml:"uvicorn"`
	Exec     ExecConfig     `yaml:"exec"`
	Logging  LoggingConfig  `yaml:"logging"`
	Journal  JournalConfig  `yaml:"journal"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig describes the ASGI application and where it listens.
type ServerConfig struct {
	App        string `yaml:"app"` // "module:attribute"
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	LogLevel   string `yaml:"log_level"` // uvicorn/gunicorn level names
	Autoreload bool   `yaml:"autoreload"`
}

// Bind returns the host:port pair handed to the process manager.
func (s ServerConfig) Bind() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// GunicornConfig configures the pre-fork process manager.
type GunicornConfig struct {
	Binary      string        `yaml:"binary"`
	WorkerClass string        `yaml:"worker_class"`
	PIDFile     string        `yaml:"pid_file"` // relative to the working directory
	LogFile     string        `yaml:"log_file"` // used in daemon mode
	PIDWait     time.Duration `yaml:"pid_wait"`
}

// UvicornConfig configures the development server.
type UvicornConfig struct {
	Binary string `yaml:"binary"`
}

// ExecConfig configures ad-hoc command execution.
type ExecConfig struct {
	Shell string `yaml:"shell"`
}

// LoggingConfig configures the CLI's own logging.
type LoggingConfig struct {
	Format string `yaml:"format"` // "json" or "console"
}

// JournalConfig configures the local control journal.
type JournalConfig struct {
	Enabled *bool  `yaml:"enabled,omitempty"`
	DSN     string `yaml:"dsn"`
}

// IsEnabled reports whether the journal should be opened. Enabled by default.
func (j JournalConfig) IsEnabled() bool {
	if j.Enabled != nil {
		return *j.Enabled
	}
	return true
}

// MetricsConfig configures Prometheus textfile export.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"` // empty disables export
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration from INDEX_* environment variables and defaults.
//
// Environment variables:
//
//	INDEX_APP          - Application reference (default: main:app)
//	INDEX_HOST         - Bind host (default: 127.0.0.1)
//	INDEX_PORT         - Bind port (default: 4190)
//	INDEX_LOG_LEVEL    - critical, error, warning, info, debug, trace (default: info)
//	INDEX_AUTORELOAD   - Restart on code changes (default: false)
//	INDEX_LOG_FORMAT   - CLI log format: json or console
//	INDEX_PID_FILE     - Gunicorn master pid file (default: .gunicorn.pid)
//	INDEX_JOURNAL_DSN  - Control journal database (default: .index-cli.db)
//	INDEX_METRICS_FILE - Prometheus textfile output (default: disabled)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads the file when it exists, otherwise falls back to
// environment variables and defaults.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config: %w", err)
		}
	}
	return LoadFromEnv()
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("INDEX_APP"); v != "" {
		cfg.Server.App = v
	}
	if v := os.Getenv("INDEX_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("INDEX_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("INDEX_LOG_LEVEL"); v != "" {
		cfg.Server.LogLevel = v
	}
	if v := os.Getenv("INDEX_AUTORELOAD"); v != "" {
		cfg.Server.Autoreload = parseBool(v)
	}

	if v := os.Getenv("INDEX_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("INDEX_PID_FILE"); v != "" {
		cfg.Gunicorn.PIDFile = v
	}

	if v := os.Getenv("INDEX_JOURNAL_DSN"); v != "" {
		cfg.Journal.DSN = v
	}

	if v := os.Getenv("INDEX_METRICS_FILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.App == "" {
		cfg.Server.App = "main:app"
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 4190
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = "info"
	}
	cfg.Server.LogLevel = strings.ToLower(cfg.Server.LogLevel)

	if cfg.Gunicorn.Binary == "" {
		cfg.Gunicorn.Binary = "gunicorn"
	}
	if cfg.Gunicorn.WorkerClass == "" {
		cfg.Gunicorn.WorkerClass = "uvicorn.workers.UvicornWorker"
	}
	if cfg.Gunicorn.PIDFile == "" {
		cfg.Gunicorn.PIDFile = ".gunicorn.pid"
	}
	if cfg.Gunicorn.LogFile == "" {
		cfg.Gunicorn.LogFile = "log.index"
	}
	if cfg.Gunicorn.PIDWait == 0 {
		cfg.Gunicorn.PIDWait = 10 * time.Second
	}

	if cfg.Uvicorn.Binary == "" {
		cfg.Uvicorn.Binary = "uvicorn"
	}

	if cfg.Exec.Shell == "" {
		cfg.Exec.Shell = "/bin/sh"
	}

	if cfg.Journal.DSN == "" {
		cfg.Journal.DSN = ".index-cli.db"
	}
}

var validLogLevels = map[string]bool{
	"critical": true, "error": true, "warning": true, "info": true, "debug": true, "trace": true,
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.Server.App) == "" {
		return fmt.Errorf("server.app is required")
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if !validLogLevels[cfg.Server.LogLevel] {
		return fmt.Errorf("server.log_level must be one of: critical, error, warning, info, debug, trace, got %q", cfg.Server.LogLevel)
	}

	if cfg.Logging.Format != "" && cfg.Logging.Format != "json" && cfg.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if strings.TrimSpace(cfg.Gunicorn.PIDFile) == "" {
		return fmt.Errorf("gunicorn.pid_file is required")
	}
	if cfg.Gunicorn.PIDWait < 0 {
		return fmt.Errorf("gunicorn.pid_wait must not be negative")
	}

	return nil
}
