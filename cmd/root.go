// Package cmd holds the emuasm command line.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"emuasm/pkg/target"
	_ "emuasm/pkg/target/i8080"
	_ "emuasm/pkg/target/sicpu"
)

var (
	targetName  string
	verbose     bool
	includeDirs []string
)

var rootCmd = &cobra.Command{
	Use:   "emuasm",
	Short: "A multi-pass macro assembler for virtual CPUs",
	Long: `Emuasm assembles source for one of the registered targets into a
memory image. Labels may be used before they are defined; addresses are
resolved by repeated sweeps until no new symbol resolves.

Settings are read from an emuasm.toml found next to the source file (or in
a parent directory) and can be overridden by flags.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&targetName, "target", "t", "",
		"instruction set ("+strings.Join(target.Names(), ", ")+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log every resolution sweep")
	rootCmd.PersistentFlags().StringSliceVarP(&includeDirs, "include", "I", nil, "additional INCLUDE search directory")
}

// Execute runs the command line and reports any error on stderr.
func Execute(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		report(os.Stderr, err)
		return 1
	}
	return 0
}

func lookupTarget(name string) (target.Target, error) {
	t, ok := target.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("unknown target %q (available: %s)", name, strings.Join(target.Names(), ", "))
	}
	return t, nil
}
