package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"emuasm/pkg/asm"
)

func red(s string) string { return "\x1b[31m" + s + "\x1b[0m" }

// sourceError keeps the text an error was found in, for the caret display.
type sourceError struct {
	err      error
	filename string
	lines    []string
}

func (e *sourceError) Error() string { return e.err.Error() }

func (e *sourceError) Unwrap() error { return e.err }

func withSource(err error, filename, src string) error {
	if err == nil {
		return nil
	}
	return &sourceError{err: err, filename: filename, lines: strings.Split(src, "\n")}
}

func colorize(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// report prints err, with its source line when it carries a position.
func report(w io.Writer, err error) {
	var buf bytes.Buffer
	var located *asm.Error
	var src *sourceError
	if errors.As(err, &located) && errors.As(err, &src) {
		filename, lines := src.filename, src.lines
		if file := located.Pos.File; file != "" && file != filename {
			// the error is inside an included file
			filename, lines = file, nil
			if data, err := os.ReadFile(file); err == nil {
				lines = strings.Split(string(data), "\n")
			}
		}
		l := asm.NewLogger(false)
		l.SetOutput(io.Discard, &buf)
		l.ErrorWithPosition(located.Err.Error(), located.Pos, filename, lines)
	} else {
		fmt.Fprintf(&buf, "[emuasm ERROR] %v\n", err)
	}

	msg := strings.TrimRight(buf.String(), "\n")
	if colorize(w) {
		msg = red(msg)
	}
	fmt.Fprintln(w, msg)
}
