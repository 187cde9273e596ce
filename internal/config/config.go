// Package config handles configuration loading using viper.
package config

import (
	"fmt"
	"net"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"firestige.xyz/etherlab/internal/core"
	"firestige.xyz/etherlab/internal/frame"
)

// Config is the top-level configuration.
// Maps to the `etherlab:` root key in YAML.
type Config struct {
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Capture CaptureConfig `mapstructure:"capture" yaml:"capture"`
	Inject  InjectConfig  `mapstructure:"inject" yaml:"inject"`
	Dump    DumpConfig    `mapstructure:"dump" yaml:"dump"`
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics"`
}

// ─── Log ───

// LogConfig contains logging settings.
type LogConfig struct {
	Level      string           `mapstructure:"level" yaml:"level"`             // debug / info / warn / error
	Format     string           `mapstructure:"format" yaml:"format"`           // text / json
	Pattern    string           `mapstructure:"pattern" yaml:"pattern"`         // overrides format, e.g. "%time [%level] %msg%n"
	TimeFormat string           `mapstructure:"time_format" yaml:"time_format"` // Go layout used by %time
	File       FileOutputConfig `mapstructure:"file" yaml:"file"`
}

// FileOutputConfig configures file log output.
type FileOutputConfig struct {
	Enabled  bool           `mapstructure:"enabled" yaml:"enabled"`
	Path     string         `mapstructure:"path" yaml:"path"`
	Rotation RotationConfig `mapstructure:"rotation" yaml:"rotation"`
}

// RotationConfig configures log file rotation.
type RotationConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// ─── Capture ───

// CaptureConfig contains receive path settings.
type CaptureConfig struct {
	Promiscuous bool       `mapstructure:"promiscuous" yaml:"promiscuous"`
	Engine      string     `mapstructure:"engine" yaml:"engine"`     // socket | ring
	Filter      string     `mapstructure:"filter" yaml:"filter"`     // pcap expression, empty = none
	SnapLen     int        `mapstructure:"snap_len" yaml:"snap_len"` // 0 = interface buffer size
	Ring        RingConfig `mapstructure:"ring" yaml:"ring"`
}

// RingConfig sizes the TPACKET_V3 engine.
type RingConfig struct {
	SizeMB      int           `mapstructure:"size_mb" yaml:"size_mb"`
	PollTimeout time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
}

// ─── Inject ───

// InjectConfig contains transmit path settings.
type InjectConfig struct {
	Tagged        bool         `mapstructure:"tagged" yaml:"tagged"`
	EtherTypeTag  uint16       `mapstructure:"ethertype_tag" yaml:"ethertype_tag"`
	DefaultSource HardwareAddr `mapstructure:"default_source" yaml:"default_source"`
}

// HardwareAddr is a MAC address that renders as colon hex in YAML.
type HardwareAddr net.HardwareAddr

func (a HardwareAddr) String() string { return net.HardwareAddr(a).String() }

func (a HardwareAddr) MarshalYAML() (any, error) { return a.String(), nil }

// ─── Dump ───

// DumpConfig controls hex dump rendering.
type DumpConfig struct {
	Width int `mapstructure:"width" yaml:"width"`
}

// ─── Metrics ───

// MetricsConfig contains Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Listen  string `mapstructure:"listen" yaml:"listen"`
	Path    string `mapstructure:"path" yaml:"path"`
}

// ─── Loading ───

// configRoot is the top-level wrapper matching the YAML structure `etherlab: ...`.
type configRoot struct {
	Etherlab Config `mapstructure:"etherlab"`
}

// Load loads configuration from path. An empty path yields defaults plus
// environment overrides. The YAML file uses `etherlab:` as root key; env vars
// use the ETHERLAB_ prefix (e.g. ETHERLAB_LOG_LEVEL).
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: failed to read config file: %w", core.ErrConfig, err)
		}
	}

	// Key "etherlab.log.level" maps to env "ETHERLAB_LOG_LEVEL".
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	var root configRoot
	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		stringToHardwareAddrHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(&root, hook); err != nil {
		return nil, fmt.Errorf("%w: failed to unmarshal config: %w", core.ErrConfig, err)
	}
	cfg := root.Etherlab

	if err := cfg.ValidateAndApplyDefaults(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// setDefaults sets default values for configuration.
// All keys use the "etherlab." prefix to match the YAML root wrapper.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("etherlab.log.level", "info")
	v.SetDefault("etherlab.log.format", "text")
	v.SetDefault("etherlab.log.pattern", "")
	v.SetDefault("etherlab.log.time_format", "2006-01-02 15:04:05.000")
	v.SetDefault("etherlab.log.file.enabled", false)
	v.SetDefault("etherlab.log.file.path", "/var/log/etherlab/etherlab.log")
	v.SetDefault("etherlab.log.file.rotation.max_size_mb", 100)
	v.SetDefault("etherlab.log.file.rotation.max_age_days", 30)
	v.SetDefault("etherlab.log.file.rotation.max_backups", 5)
	v.SetDefault("etherlab.log.file.rotation.compress", true)

	// Capture defaults
	v.SetDefault("etherlab.capture.promiscuous", true)
	v.SetDefault("etherlab.capture.engine", "socket")
	v.SetDefault("etherlab.capture.filter", "")
	v.SetDefault("etherlab.capture.snap_len", 0)
	v.SetDefault("etherlab.capture.ring.size_mb", 8)
	v.SetDefault("etherlab.capture.ring.poll_timeout", "100ms")

	// Inject defaults
	v.SetDefault("etherlab.inject.tagged", false)
	v.SetDefault("etherlab.inject.ethertype_tag", core.DefaultMessageTag)
	v.SetDefault("etherlab.inject.default_source", "")

	// Dump defaults
	v.SetDefault("etherlab.dump.width", 16)

	// Metrics defaults
	v.SetDefault("etherlab.metrics.enabled", false)
	v.SetDefault("etherlab.metrics.listen", ":9102")
	v.SetDefault("etherlab.metrics.path", "/metrics")
}

// stringToHardwareAddrHook decodes "aa:bb:cc:dd:ee:ff" into HardwareAddr.
func stringToHardwareAddrHook() mapstructure.DecodeHookFuncType {
	target := reflect.TypeOf(HardwareAddr(nil))
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String || to != target {
			return data, nil
		}
		s := strings.TrimSpace(data.(string))
		if s == "" {
			return HardwareAddr(nil), nil
		}
		addr, err := frame.ParseMAC(s)
		if err != nil {
			return nil, err
		}
		return HardwareAddr(addr), nil
	}
}

// ValidateAndApplyDefaults validates configuration and normalizes values.
func (cfg *Config) ValidateAndApplyDefaults() error {
	// ── Log validation ──
	cfg.Log.Level = strings.ToLower(cfg.Log.Level)
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Log.Level] {
		return fmt.Errorf("%w: invalid log level: %s (must be debug/info/warn/error)", core.ErrConfig, cfg.Log.Level)
	}
	if cfg.Log.Format != "json" && cfg.Log.Format != "text" {
		return fmt.Errorf("%w: invalid log format: %s (must be json/text)", core.ErrConfig, cfg.Log.Format)
	}
	if cfg.Log.File.Enabled && cfg.Log.File.Path == "" {
		return fmt.Errorf("%w: log.file.path is required when log.file.enabled=true", core.ErrConfig)
	}

	// ── Capture validation ──
	switch cfg.Capture.Engine {
	case "socket", "ring":
	default:
		return fmt.Errorf("%w: invalid capture engine: %s (must be socket/ring)", core.ErrConfig, cfg.Capture.Engine)
	}
	if cfg.Capture.SnapLen < 0 {
		return fmt.Errorf("%w: capture.snap_len must not be negative, got %d", core.ErrConfig, cfg.Capture.SnapLen)
	}
	if cfg.Capture.Ring.SizeMB <= 0 {
		return fmt.Errorf("%w: capture.ring.size_mb must be positive, got %d", core.ErrConfig, cfg.Capture.Ring.SizeMB)
	}
	if cfg.Capture.Ring.PollTimeout <= 0 {
		return fmt.Errorf("%w: capture.ring.poll_timeout must be positive, got %s", core.ErrConfig, cfg.Capture.Ring.PollTimeout)
	}

	// ── Inject validation ──
	if !frame.IsEtherType(cfg.Inject.EtherTypeTag) {
		return fmt.Errorf("%w: inject.ethertype_tag 0x%04x is not an EtherType (must be >= 0x%04x)",
			core.ErrConfig, cfg.Inject.EtherTypeTag, core.MinEtherType)
	}

	// ── Dump validation ──
	if cfg.Dump.Width < 1 || cfg.Dump.Width > 64 {
		return fmt.Errorf("%w: dump.width must be in [1, 64], got %d", core.ErrConfig, cfg.Dump.Width)
	}

	// ── Metrics validation ──
	if cfg.Metrics.Enabled {
		if cfg.Metrics.Listen == "" {
			return fmt.Errorf("%w: metrics.listen is required when metrics.enabled=true", core.ErrConfig)
		}
		if !strings.HasPrefix(cfg.Metrics.Path, "/") {
			cfg.Metrics.Path = "/" + cfg.Metrics.Path
		}
	}

	return nil
}

// Render returns cfg as YAML under the `etherlab:` root key.
func Render(cfg *Config) ([]byte, error) {
	out, err := yaml.Marshal(map[string]*Config{"etherlab": cfg})
	if err != nil {
		return nil, fmt.Errorf("render config: %w", err)
	}
	return out, nil
}
