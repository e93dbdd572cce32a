package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults and validates
// the result. Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	// Mods
	errs = append(errs, validatePaths("mods.roots", cfg.Mods.Roots)...)
	errs = append(errs, validatePaths("mods.directories", cfg.Mods.Directories)...)
	if s := cfg.Mods.ConfigSuffix; s != "" && (strings.ContainsAny(s, `./\`) || s == "json") {
		errs = append(errs, fmt.Errorf("mods.config_suffix %q must be a single file name segment", s))
	}
	if cfg.Mods.Debounce < 0 {
		errs = append(errs, fmt.Errorf("mods.debounce %s must not be negative", cfg.Mods.Debounce))
	}
	if cfg.Mods.Watch && len(cfg.Mods.Roots) == 0 {
		slog.Warn("mods.watch is enabled but mods.roots is empty; nothing will be watched")
	}
	if len(cfg.Mods.Roots) == 0 && len(cfg.Mods.Directories) == 0 {
		slog.Warn("no mod roots or directories configured; only the original banks will be used")
	}

	// Host
	if cfg.Host.EquippedSkin < 0 {
		errs = append(errs, fmt.Errorf("host.equipped_skin %d must not be negative", cfg.Host.EquippedSkin))
	}
	if cfg.Host.BaseBanks == "" {
		slog.Warn("host.base_banks is empty; the host starts without vocal banks")
	}

	return errors.Join(errs...)
}

// validatePaths reports empty and duplicate entries of a path list.
func validatePaths(field string, paths []string) []error {
	var errs []error
	seen := make(map[string]int, len(paths))
	for i, p := range paths {
		if p == "" {
			errs = append(errs, fmt.Errorf("%s[%d] is empty", field, i))
			continue
		}
		if prev, ok := seen[p]; ok {
			errs = append(errs, fmt.Errorf("%s[%d] %q is a duplicate of %s[%d]", field, i, p, field, prev))
			continue
		}
		seen[p] = i
	}
	return errs
}
