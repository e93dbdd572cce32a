package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are applied; changes to the
// rest are listed in RestartRequired.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	LogPlaysChanged bool
	NewLogPlays     bool

	// AddedRoots and AddedDirectories list entries present only in the new
	// config, in their new config order. Removals are not tracked: a
	// registered directory stays registered for the process lifetime.
	AddedRoots       []string
	AddedDirectories []string

	// RestartRequired names changed fields that take effect only after a
	// restart.
	RestartRequired []string
}

// Changed reports whether anything in d needs attention.
func (d ConfigDiff) Changed() bool {
	return d.LogLevelChanged || d.LogPlaysChanged ||
		len(d.AddedRoots) > 0 || len(d.AddedDirectories) > 0 ||
		len(d.RestartRequired) > 0
}

// Diff compares old and new configs and returns what changed.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	// Log level
	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	// Play logging
	if old.Debug.LogPlays != new.Debug.LogPlays {
		d.LogPlaysChanged = true
		d.NewLogPlays = new.Debug.LogPlays
	}

	d.AddedRoots = added(old.Mods.Roots, new.Mods.Roots)
	d.AddedDirectories = added(old.Mods.Directories, new.Mods.Directories)

	// Fields bound at startup.
	if old.Server.ListenAddr != new.Server.ListenAddr {
		d.RestartRequired = append(d.RestartRequired, "server.listen_addr")
	}
	if old.Mods.Watch != new.Mods.Watch {
		d.RestartRequired = append(d.RestartRequired, "mods.watch")
	}
	if old.Mods.ConfigSuffix != new.Mods.ConfigSuffix {
		d.RestartRequired = append(d.RestartRequired, "mods.config_suffix")
	}
	if old.Host.BaseBanks != new.Host.BaseBanks {
		d.RestartRequired = append(d.RestartRequired, "host.base_banks")
	}

	return d
}

// added returns the entries of next missing from prev.
func added(prev, next []string) []string {
	var out []string
	for _, p := range next {
		if !slices.Contains(prev, p) {
			out = append(out, p)
		}
	}
	return out
}
