package cmd

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"emuasm/pkg/asm"
	"emuasm/pkg/config"
	"emuasm/pkg/parse"
	"emuasm/pkg/utils"
)

var (
	outPath   string
	format    string
	start     int
	maxSweeps int
)

var buildCmd = &cobra.Command{
	Use:   "build sourceFile",
	Short: "Assemble a source file into an Intel HEX or raw binary image",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBuild(cmd, args[0])
	},
}

func init() {
	buildCmd.Flags().StringVarP(&outPath, "output", "o", "", "output file (default: source with .hex or .bin extension)")
	buildCmd.Flags().StringVarP(&format, "format", "f", config.FormatHex, "output format: hex or bin")
	buildCmd.Flags().IntVar(&start, "start", 0, "address of the first statement")
	buildCmd.Flags().IntVar(&maxSweeps, "max-sweeps", 0, "resolution sweep cap (0 picks one from the symbol count)")
	rootCmd.AddCommand(buildCmd)
}

// settings merges the project file found near source with the flags that
// were set explicitly.
func settings(cmd *cobra.Command, source string) (config.Config, error) {
	cfg := config.Default()
	_, dir, err := utils.GetPathInfo(source)
	if err != nil {
		return cfg, err
	}
	if path, ok := config.Find(dir); ok {
		if cfg, err = config.Load(path); err != nil {
			return cfg, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("target") {
		cfg.Target = targetName
	}
	if flags.Changed("include") {
		cfg.IncludeDirs = append(cfg.IncludeDirs, includeDirs...)
	}
	if flags.Changed("output") {
		cfg.Output = outPath
	}
	if flags.Changed("format") {
		cfg.Format = format
	}
	if flags.Changed("start") {
		cfg.Start = start
	}
	if flags.Changed("max-sweeps") {
		cfg.MaxSweeps = maxSweeps
	}
	return cfg, cfg.Validate()
}

// compile parses and assembles source with cfg.
func compile(cmd *cobra.Command, source string, cfg config.Config) (*asm.Result, error) {
	tg, err := lookupTarget(cfg.Target)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("failed to read input file %q: %w", source, err)
	}

	prog, err := parse.Parse(string(data), tg, parse.Options{Filename: source, IncludeDirs: cfg.IncludeDirs})
	if err != nil {
		return nil, withSource(err, source, string(data))
	}

	logger := asm.NewLogger(verbose)
	logger.SetOutput(cmd.ErrOrStderr(), cmd.ErrOrStderr())
	a := asm.New(asm.Config{
		Start:        cfg.Start,
		MaxSweeps:    cfg.MaxSweeps,
		AddressLimit: tg.AddressLimit(),
		Logger:       logger,
	})
	res, err := a.Assemble(cmd.Context(), prog)
	if err != nil {
		return nil, withSource(err, source, string(data))
	}
	return res, nil
}

func runBuild(cmd *cobra.Command, source string) error {
	cfg, err := settings(cmd, source)
	if err != nil {
		return err
	}
	res, err := compile(cmd, source, cfg)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	ext := ".hex"
	if cfg.Format == config.FormatBin {
		ext = ".bin"
		err = res.Image.WriteBinary(&buf)
	} else {
		err = res.Image.WriteIntelHex(&buf)
	}
	if err != nil {
		return err
	}

	output := cfg.Output
	if output == "" {
		output = utils.OutputPath(source, ext)
	}
	if err := utils.WriteFile(output, buf.Bytes()); err != nil {
		return fmt.Errorf("failed to write %q: %w", output, err)
	}

	lo, hi := res.Image.Bounds()
	fmt.Fprintf(cmd.OutOrStdout(), "assembled %d bytes (0x%04X-0x%04X, %d sweeps) -> %s\n",
		res.Image.Len(), lo, hi, res.Sweeps, output)
	return nil
}
