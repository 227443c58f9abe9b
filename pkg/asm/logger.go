package asm

import (
	"fmt"
	"io"
	"os"
)

// Logger handles diagnostics output for the assembler. A nil *Logger is
// silent.
type Logger struct {
	enabled bool
	out     io.Writer
	errOut  io.Writer
}

func NewLogger(enabled bool) *Logger {
	return &Logger{
		enabled: enabled,
		out:     os.Stdout,
		errOut:  os.Stderr,
	}
}

// SetOutput redirects debug and error output.
func (l *Logger) SetOutput(out, errOut io.Writer) {
	l.out = out
	l.errOut = errOut
}

func (l *Logger) Debug(format string, args ...any) {
	if l != nil && l.enabled {
		fmt.Fprintf(l.out, "[DEBUG] "+format+"\n", args...)
	}
}

func (l *Logger) Warn(format string, args ...any) {
	if l != nil && l.enabled {
		fmt.Fprintf(l.errOut, "[emuasm WARN] "+format+"\n", args...)
	}
}

// ErrorWithPosition prints a diagnostic with its position and, when given,
// the offending source line. It prints even when debug output is disabled.
func (l *Logger) ErrorWithPosition(message string, pos Pos, filename string, source []string) {
	if l == nil {
		return
	}
	if filename == "" {
		filename = "<unknown>"
	}
	msg := fmt.Sprintf("[emuasm ERROR] %s\n  at line %d, column %d in %s", message, pos.Line, pos.Column, filename)
	if pos.Line >= 1 && pos.Line <= len(source) {
		msg += fmt.Sprintf("\n  %4d | %s", pos.Line, source[pos.Line-1])
		if pos.Column >= 1 {
			msg += fmt.Sprintf("\n       | %*s^", pos.Column-1, "")
		}
	}
	fmt.Fprintln(l.errOut, msg)
}
