package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"emuasm/pkg/asm"
	"emuasm/pkg/output"
	"emuasm/pkg/parse"
	"emuasm/pkg/target"
)

const (
	historyFile = ".emuasm_history"
	promptMain  = "asm> "
	promptMacro = "...> "
)

var replHelp = `
REPL commands:
  :list     Show the buffer
  :symbols  Show the symbol table
  :undo     Drop the last line
  :reset    Clear the buffer
  :quit     Exit the REPL
`

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Assemble interactively, one line at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		name := targetName
		if name == "" {
			name = "i8080"
		}
		tg, err := lookupTarget(name)
		if err != nil {
			return err
		}
		return runRepl(cmd.Context(), tg, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
}

// session is the REPL buffer. Every accepted line is kept and the whole
// buffer is assembled again. A line whose only problem is an undefined symbol
// stays in the buffer, so a later line can define it.
type session struct {
	target target.Target
	lines  []string
	result *asm.Result
	// settled is the number of leading lines whose bytes were printed
	settled int
}

// add appends line and reassembles. A line that breaks the buffer is rolled
// back, except inside an open macro body where the buffer can't assemble yet
// and on an undefined symbol. emitted holds the bytes of every line that
// assembled for the first time, in line order.
func (s *session) add(ctx context.Context, line string) (emitted []byte, pending bool, err error) {
	s.lines = append(s.lines, line)
	src := strings.Join(s.lines, "\n")

	prog, err := parse.Parse(src, s.target, parse.Options{Filename: "<repl>"})
	if err != nil {
		if errors.Is(err, parse.ErrUnterminatedMacro) {
			return nil, true, nil
		}
		s.lines = s.lines[:len(s.lines)-1]
		return nil, false, withSource(err, "<repl>", src)
	}
	res, err := asm.New(asm.Config{AddressLimit: s.target.AddressLimit()}).Assemble(ctx, prog)
	if errors.Is(err, asm.ErrUnresolvedSymbol) {
		return nil, false, withSource(err, "<repl>", src)
	}
	if err != nil {
		s.lines = s.lines[:len(s.lines)-1]
		return nil, false, withSource(err, "<repl>", src)
	}
	s.result = res
	for n := s.settled + 1; n <= len(s.lines); n++ {
		emitted = append(emitted, lineBytes(res.Image, n)...)
	}
	s.settled = len(s.lines)
	return emitted, false, nil
}

// undo drops the last line of the buffer.
func (s *session) undo() {
	if len(s.lines) == 0 {
		return
	}
	s.lines = s.lines[:len(s.lines)-1]
	s.settled = min(s.settled, len(s.lines))
}

// lineBytes returns the bytes emitted for source line n.
func lineBytes(img *output.Image, n int) []byte {
	sm := img.SourceMap()
	starts := make([]int, 0, len(sm))
	for addr := range sm {
		starts = append(starts, addr)
	}
	sort.Ints(starts)

	var out []byte
	for i, addr := range starts {
		if sm[addr] != n {
			continue
		}
		end := img.Limit()
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		for a := addr; a < end; a++ {
			b, ok := img.ByteAt(a)
			if !ok {
				break
			}
			out = append(out, b)
		}
	}
	return out
}

func runRepl(ctx context.Context, tg target.Target, stdout, stderr io.Writer) error {
	fmt.Fprintf(stdout, "emuasm REPL for %s\nCtrl+D exits. Type :help for commands.\n", tg.Name())

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := &session{target: tg}
	prompt := promptMain
	for {
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) {
			fmt.Fprintln(stdout)
			return nil
		}
		if errors.Is(err, liner.ErrPromptAborted) {
			continue
		}
		if err != nil {
			return err
		}

		switch strings.ToLower(strings.TrimSpace(line)) {
		case "":
			continue
		case ":quit":
			return nil
		case ":help":
			fmt.Fprint(stdout, replHelp)
			continue
		case ":reset":
			s = &session{target: tg}
			prompt = promptMain
			continue
		case ":undo":
			s.undo()
			prompt = promptMain
			continue
		case ":list":
			for i, l := range s.lines {
				fmt.Fprintf(stdout, "%4d | %s\n", i+1, l)
			}
			continue
		case ":symbols":
			if s.result != nil {
				for _, sym := range s.result.Symbols {
					fmt.Fprintf(stdout, "%-16s 0x%04X %s\n", sym.Name, sym.Value, sym.Kind)
				}
			}
			continue
		}

		ln.AppendHistory(line)
		emitted, pending, err := s.add(ctx, line)
		switch {
		case errors.Is(err, asm.ErrUnresolvedSymbol):
			report(stderr, err)
			fmt.Fprintln(stderr, "line kept until the symbol is defined, :undo drops it")
		case err != nil:
			report(stderr, err)
		case pending:
			prompt = promptMacro
		default:
			prompt = promptMain
			if len(emitted) > 0 {
				fmt.Fprintf(stdout, "% X\n", emitted)
			}
		}
	}
}
