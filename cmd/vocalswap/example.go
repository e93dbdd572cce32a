package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MrWong99/vocalswap/internal/app"
)

func newExampleConfigCmd(root *rootOptions) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "example-config",
		Short: "Write an example swap configuration for skin 0",
		Long: `Writes a swap configuration file listing every slot with an empty clip list
and the settings of the host's original banks. Use "-" to print it instead.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := root.loadConfig(false)
			if err != nil {
				return err
			}
			cfg.Server.ListenAddr = ""
			if out == "" {
				out = cfg.Debug.ExampleConfigPath
			}

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			data, err := a.ExampleConfig(cmd.Context())
			if err != nil {
				return err
			}
			if out == "-" {
				_, err = cmd.OutOrStdout().Write(append(data, '\n'))
				return err
			}
			if err := os.WriteFile(out, data, 0o644); err != nil {
				return fmt.Errorf("write example config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default: debug.example_config_path)")
	return cmd
}
