package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/vocalswap/internal/config"
)

const defaultConfigPath = "config.yaml"

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "vocalswap",
		Short: "Per-skin vocal replacement from mod directories",
		Long: `vocalswap discovers replacement voice clips and swap configuration files in
mod directories and installs a replacement vocal bank for the equipped skin.

Mod directory files:
  <name>.<skin|default>.<slot>[.<n>].<wav|ogg|mp3>   loose replacement clip
  <name>.<skin|default>.hastevocalsfx.json           swap configuration`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", defaultConfigPath, "path to the YAML configuration file")

	cmd.AddCommand(
		newServeCmd(opts),
		newSlotsCmd(),
		newExampleConfigCmd(opts),
		newScanCmd(opts),
	)
	return cmd
}

// loadConfig loads the configuration file. When the file does not exist and
// required is false, the defaults are returned.
func (o *rootOptions) loadConfig(required bool) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err == nil {
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) && !required {
		cfg = &config.Config{}
		config.ApplyDefaults(cfg)
		return cfg, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found; see configs/example.yaml", o.configPath)
	}
	return nil, err
}

// newLogger returns a text logger on stderr whose level follows lvl.
func newLogger(lvl *slog.LevelVar) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
