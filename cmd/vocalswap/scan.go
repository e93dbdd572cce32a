package main

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MrWong99/vocalswap/internal/app"
	"github.com/MrWong99/vocalswap/internal/swapconfig"
)

type scannedSkin struct {
	Skin string `json:"skin"`
	*swapconfig.SwapSpecSet
}

func newScanCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "scan <dir>...",
		Short: "Register mod directories and print the merged swap configuration",
		Long: `Registers the given mod directories in order, exactly like the service
does, and prints the merged swap configuration of every skin as JSON. No
audio is decoded.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.loadConfig(false)
			if err != nil {
				return err
			}
			cfg.Server.ListenAddr = ""

			a, err := app.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			for _, dir := range args {
				if _, err := a.Model().RegisterDirectory(cmd.Context(), dir); err != nil {
					slog.Warn("scan: skipping directory", "dir", dir, "err", err)
				}
			}

			sets := a.Model().Snapshot()
			out := make([]scannedSkin, 0, len(sets))
			for _, set := range sets {
				out = append(out, scannedSkin{Skin: set.Skin.String(), SwapSpecSet: set})
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
