// Package config handles TOML configuration parsing for the router core's
// ambient settings: logging and metrics, plus the paths to the routing
// table and interface IP map files the host binary loads separately, since
// those formats are external collaborator contracts rather than core
// router state.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration for the router binary.
type Config struct {
	Server  ServerConfig  `toml:"server"`
	Metrics MetricsConfig `toml:"metrics"`
}

// ServerConfig holds core server settings.
type ServerConfig struct {
	LogLevel         string `toml:"log_level"`
	RoutingTableFile string `toml:"routing_table_file"`
	InterfaceMapFile string `toml:"interface_map_file"`
}

// MetricsConfig holds Prometheus exporter settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Listen  string `toml:"listen"`
}

const (
	DefaultLogLevel    = "info"
	DefaultMetricsAddr = ":9090"
)

// Load reads and parses a TOML config file and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}
	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Metrics.Listen == "" {
		cfg.Metrics.Listen = DefaultMetricsAddr
	}
}

func validate(cfg *Config) error {
	switch cfg.Server.LogLevel {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("server.log_level: unknown level %q", cfg.Server.LogLevel)
	}
	return nil
}
