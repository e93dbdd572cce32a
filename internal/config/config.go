// Package config provides the configuration schema, loader, and hot-reload
// watcher for the vocalswap service.
package config

import (
	"log/slog"
	"time"

	"github.com/MrWong99/vocalswap/internal/naming"
)

// LogLevel controls log verbosity for the vocalswap service.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Level converts l to a [slog.Level]. Unknown and empty values map to
// [slog.LevelInfo].
func (l LogLevel) Level() slog.Level {
	switch l {
	case LogDebug:
		return slog.LevelDebug
	case LogWarn:
		return slog.LevelWarn
	case LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults applied by [ApplyDefaults]. The config suffix defaults to
// [naming.DefaultConfigSuffix], the example config path to
// [naming.ExampleConfigName] of the configured suffix.
const (
	DefaultLogLevel = LogInfo
	DefaultDebounce = 500 * time.Millisecond
)

// Config is the root configuration structure for vocalswap.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server ServerConfig `yaml:"server"`
	Mods   ModsConfig   `yaml:"mods"`
	Host   HostConfig   `yaml:"host"`
	Debug  DebugConfig  `yaml:"debug"`
}

// ServerConfig holds network and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address of the HTTP surface and /metrics
	// (e.g., ":9464"). Empty disables the HTTP surface.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity. Hot-reloadable.
	LogLevel LogLevel `yaml:"log_level"`
}

// ModsConfig says where mod directories come from.
type ModsConfig struct {
	// Roots are directories whose direct subdirectories are each one mod
	// directory. Hot-reloadable: added roots are scanned.
	Roots []string `yaml:"roots"`

	// Directories are mod directories registered directly. Hot-reloadable:
	// added directories are registered.
	Directories []string `yaml:"directories"`

	// Watch enables watching Roots for newly created mod directories.
	Watch bool `yaml:"watch"`

	// Debounce is how long a new directory must be quiet before it is
	// registered, so its files are complete. Defaults to 500ms.
	Debounce time.Duration `yaml:"debounce"`

	// ConfigSuffix is the third segment of configuration file names:
	// <name>.<skin|default>.<suffix>.json.
	ConfigSuffix string `yaml:"config_suffix"`
}

// HostConfig configures the in-process host engine.
type HostConfig struct {
	// BaseBanks is the path of the YAML manifest describing the host's
	// original vocal banks.
	BaseBanks string `yaml:"base_banks"`

	// EquippedSkin is the skin index equipped at startup.
	EquippedSkin int `yaml:"equipped_skin"`

	// DeferPlayer keeps the player bank absent until the first scene load,
	// like a host that creates the player object late.
	DeferPlayer bool `yaml:"defer_player"`
}

// DebugConfig holds debugging aids.
type DebugConfig struct {
	// LogPlays logs every dispatched sound effect. Hot-reloadable.
	LogPlays bool `yaml:"log_plays"`

	// ExampleConfigPath is where the example configuration is written.
	ExampleConfigPath string `yaml:"example_config_path"`
}

// ApplyDefaults fills unset fields of cfg with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = DefaultLogLevel
	}
	if cfg.Mods.ConfigSuffix == "" {
		cfg.Mods.ConfigSuffix = naming.DefaultConfigSuffix
	}
	if cfg.Mods.Debounce == 0 {
		cfg.Mods.Debounce = DefaultDebounce
	}
	if cfg.Debug.ExampleConfigPath == "" {
		cfg.Debug.ExampleConfigPath = naming.ExampleConfigName(cfg.Mods.ConfigSuffix)
	}
}
