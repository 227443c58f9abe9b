package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols sourceFile",
	Short: "Assemble a source file and print its symbol table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := settings(cmd, args[0])
		if err != nil {
			return err
		}
		res, err := compile(cmd, args[0], cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tVALUE\tKIND\tLINE")
		for _, s := range res.Symbols {
			fmt.Fprintf(w, "%s\t0x%04X\t%s\t%d\n", s.Name, s.Value, s.Kind, s.Pos.Line)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}
