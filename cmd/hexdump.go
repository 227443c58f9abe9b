package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"emuasm/pkg/output"
)

var hexdumpCmd = &cobra.Command{
	Use:   "hexdump file.hex",
	Short: "Read an Intel HEX file and print its contents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()

		img, err := output.ReadIntelHex(f, output.HexLimit)
		if err != nil {
			return fmt.Errorf("%s: %w", args[0], err)
		}
		dump(cmd.OutOrStdout(), img)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hexdumpCmd)
}

// dump prints each segment as rows of 16 bytes with their ASCII rendering.
func dump(w io.Writer, img *output.Image) {
	for _, seg := range img.Segments() {
		for off := 0; off < len(seg.Data); off += 16 {
			row := seg.Data[off:min(off+16, len(seg.Data))]
			var hex, ascii strings.Builder
			for _, b := range row {
				fmt.Fprintf(&hex, "%02X ", b)
				if b >= 0x20 && b < 0x7F {
					ascii.WriteByte(b)
				} else {
					ascii.WriteByte('.')
				}
			}
			fmt.Fprintf(w, "%04X  %-48s |%s|\n", seg.Addr+off, hex.String(), ascii.String())
		}
	}
}
