// Package config handles router configuration loading using viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"firestige.xyz/router/internal/core"
	"firestige.xyz/router/internal/log"
)

// Config is the router's static configuration.
// Maps to the `router:` root key in YAML.
type Config struct {
	RoutingTable string           `mapstructure:"routing_table"`
	Interfaces   []string         `mapstructure:"interfaces"`
	Capture      CaptureConfig    `mapstructure:"capture"`
	Metrics      MetricsConfig    `mapstructure:"metrics"`
	Log          log.LoggerConfig `mapstructure:"log"`
}

// CaptureConfig tunes the AF_PACKET sockets.
type CaptureConfig struct {
	SnapLen       int    `mapstructure:"snap_len"`
	BufferSizeMB  int    `mapstructure:"buffer_size_mb"`
	PollTimeoutMS int    `mapstructure:"poll_timeout_ms"`
	BPFFilter     string `mapstructure:"bpf_filter"`
	PcapOut       string `mapstructure:"pcap_out"` // Empty = no recording
}

// PollTimeout returns the poll timeout as a duration.
func (c CaptureConfig) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMS) * time.Millisecond
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Listen  string `mapstructure:"listen"`
	Path    string `mapstructure:"path"`
}

// configRoot is the top-level wrapper matching the YAML structure `router: ...`.
type configRoot struct {
	Router Config `mapstructure:"router"`
}

// Load loads configuration from path. An empty path uses defaults and
// environment only. When args are given, args[0] replaces the routing table
// and the rest replace the interface list, as on the command line.
// Env vars use the ROUTER_ prefix (e.g., ROUTER_LOG_LEVEL).
func Load(path string, args ...string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// The `router.` key prefix maps to `ROUTER_` in env vars via the key
	// replacer (e.g., key "router.capture.snap_len" -> env "ROUTER_CAPTURE_SNAP_LEN").
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	if err := v.Unmarshal(&root); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg := root.Router

	if len(args) > 0 {
		cfg.RoutingTable = args[0]
		if len(args) > 1 {
			cfg.Interfaces = append([]string(nil), args[1:]...)
		}
	}

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "router." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	v.SetDefault("router.routing_table", "")
	v.SetDefault("router.interfaces", []string{})

	// Capture defaults
	v.SetDefault("router.capture.snap_len", core.MaxFrameLen)
	v.SetDefault("router.capture.buffer_size_mb", 8)
	v.SetDefault("router.capture.poll_timeout_ms", 200)
	v.SetDefault("router.capture.bpf_filter", "")
	v.SetDefault("router.capture.pcap_out", "")

	// Metrics defaults
	v.SetDefault("router.metrics.enabled", true)
	v.SetDefault("router.metrics.listen", ":9091")
	v.SetDefault("router.metrics.path", "/metrics")

	// Log defaults
	v.SetDefault("router.log.level", "info")
	v.SetDefault("router.log.pattern", log.DefaultPattern)
	v.SetDefault("router.log.time", log.DefaultTime)
	v.SetDefault("router.log.file.enabled", false)
	v.SetDefault("router.log.file.path", "/var/log/router/router.log")
	v.SetDefault("router.log.file.max_size_mb", 100)
	v.SetDefault("router.log.file.max_backups", 5)
	v.SetDefault("router.log.file.max_age_days", 30)
	v.SetDefault("router.log.file.compress", true)
}

// ValidateAndApplyDefaults validates configuration and normalises values.
func (cfg *Config) ValidateAndApplyDefaults() error {
	if cfg.RoutingTable == "" {
		return fmt.Errorf("routing_table is required: %w", core.ErrConfigInvalid)
	}
	if len(cfg.Interfaces) == 0 {
		return fmt.Errorf("at least one interface is required: %w", core.ErrConfigInvalid)
	}
	seen := make(map[string]bool, len(cfg.Interfaces))
	for _, name := range cfg.Interfaces {
		if name == "" {
			return fmt.Errorf("empty interface name: %w", core.ErrConfigInvalid)
		}
		if seen[name] {
			return fmt.Errorf("interface %s listed twice: %w", name, core.ErrConfigInvalid)
		}
		seen[name] = true
	}

	// ── Capture validation ──
	if cfg.Capture.SnapLen < 64 || cfg.Capture.SnapLen > 65535 {
		return fmt.Errorf("invalid capture.snap_len %d (must be 64..65535): %w", cfg.Capture.SnapLen, core.ErrConfigInvalid)
	}
	if cfg.Capture.BufferSizeMB < 1 {
		return fmt.Errorf("invalid capture.buffer_size_mb %d: %w", cfg.Capture.BufferSizeMB, core.ErrConfigInvalid)
	}
	if cfg.Capture.PollTimeoutMS <= 0 {
		return fmt.Errorf("invalid capture.poll_timeout_ms %d: %w", cfg.Capture.PollTimeoutMS, core.ErrConfigInvalid)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("metrics.listen is required when metrics.enabled=true: %w", core.ErrConfigInvalid)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			cfg.Metrics.Path = "/" + cfg.Metrics.Path
		}
	}

	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if _, err := logrus.ParseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s: %w", cfg.Log.Level, core.ErrConfigInvalid)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("log.file.path is required when log.file.enabled=true: %w", core.ErrConfigInvalid)
	}

	return nil
}
