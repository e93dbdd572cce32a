package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/vocalswap/internal/slots"
)

func newSlotsCmd() *cobra.Command {
	var tokensOnly bool
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List every replaceable vocal slot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			catalog := slots.Default()
			if tokensOnly {
				for _, t := range catalog.Tokens() {
					fmt.Fprintln(out, t)
				}
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "TOKEN\tBANK\tFIELD")
			for _, d := range catalog.All() {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", d.Token, d.Kind, d.Field)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().BoolVar(&tokensOnly, "tokens", false, "print only the slot tokens, alphabetically")
	return cmd
}
