package asm

import (
	"errors"
	"fmt"

	"emuasm/pkg/env"
)

type Pos = env.Pos

var (
	ErrDuplicateSymbol         = env.ErrDuplicateSymbol
	ErrUnresolvedSymbol        = env.ErrUnresolvedSymbol
	ErrAmbiguousOrigin         = errors.New("expression can't be ambiguous")
	ErrInvalidMacroParamsCount = errors.New("invalid macro parameters count")
	ErrUnknownMacroParameters  = errors.New("unknown macro parameters")
	ErrUndefinedMacro          = errors.New("undefined macro")
	ErrMacroDepth              = errors.New("macro nesting too deep")
	ErrEmit                    = errors.New("emit failed")
	ErrSweepLimit              = errors.New("sweep limit reached")
)

// Error is a fatal diagnostic tied to a source position.
type Error struct {
	Pos Pos
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("[%d,%d] %v", e.Pos.Line, e.Pos.Column, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func errorAt(pos Pos, err error) error {
	if err == nil {
		return nil
	}
	var located *Error
	if errors.As(err, &located) {
		return err
	}
	return &Error{Pos: pos, Err: err}
}

func errorf(pos Pos, kind error, format string, args ...any) error {
	return &Error{Pos: pos, Err: fmt.Errorf("%w: %s", kind, fmt.Sprintf(format, args...))}
}
