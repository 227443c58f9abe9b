package asm

import (
	"fmt"
	"strings"

	"emuasm/pkg/env"
	"emuasm/pkg/expr"
	"emuasm/pkg/output"
)

// Statement is one node of a program. Every kind goes through the same three
// phases: Declare once, ResolveAddress once per sweep, Emit once.
type Statement interface {
	Pos() Pos
	Declare(e *env.Environment) error
	ResolveAddress(e *env.Environment, addr int) (int, error)
	Emit(e *env.Environment, img *output.Image) error
}

// Encoder is supplied by a target for each instruction form. Size never
// depends on operand values.
type Encoder interface {
	Mnemonic() string
	Size() int
	Encode(args []int, addr int) ([]byte, error)
}

type Instruction struct {
	At   Pos
	Op   Encoder
	Args []expr.Expr
}

func (i *Instruction) Pos() Pos { return i.At }

func (i *Instruction) Declare(*env.Environment) error { return nil }

func (i *Instruction) ResolveAddress(_ *env.Environment, addr int) (int, error) {
	return addr + i.Op.Size(), nil
}

func (i *Instruction) Emit(e *env.Environment, img *output.Image) error {
	addr := img.Addr()
	args := make([]int, len(i.Args))
	for n, a := range i.Args {
		v, err := evalFinal(e, a, addr, i.At)
		if err != nil {
			return err
		}
		args[n] = v
	}
	code, err := i.Op.Encode(args, addr)
	if err != nil {
		return errorf(i.At, ErrEmit, "%s: %v", i.Op.Mnemonic(), err)
	}
	if len(code) != i.Op.Size() {
		return errorf(i.At, ErrEmit, "%s encoded %d bytes, expected %d", i.Op.Mnemonic(), len(code), i.Op.Size())
	}
	return write(img, i.At, code)
}

type Label struct {
	At   Pos
	Name string
}

func (l *Label) Pos() Pos { return l.At }

func (l *Label) Declare(e *env.Environment) error {
	return errorAt(l.At, e.Declare(env.Symbol{Name: l.Name, Kind: env.Label, Pos: l.At}))
}

func (l *Label) ResolveAddress(e *env.Environment, addr int) (int, error) {
	e.Bind(l.Name, addr, l.At)
	return addr, nil
}

func (l *Label) Emit(*env.Environment, *output.Image) error { return nil }

// Equ defines a constant. An unresolved value is retried on the next sweep.
type Equ struct {
	At    Pos
	Name  string
	Value expr.Expr
}

func (q *Equ) Pos() Pos { return q.At }

func (q *Equ) Declare(e *env.Environment) error {
	return errorAt(q.At, e.Declare(env.Symbol{Name: q.Name, Kind: env.Constant, Pos: q.At}))
}

func (q *Equ) ResolveAddress(e *env.Environment, addr int) (int, error) {
	r, err := q.Value.Eval(e, addr)
	if err != nil {
		return 0, errorAt(q.At, err)
	}
	if r.IsResolved() {
		e.Bind(q.Name, r.Value, q.At)
	}
	return addr, nil
}

func (q *Equ) Emit(*env.Environment, *output.Image) error { return nil }

// Org moves the location counter. Its value must be known the first time it is
// reached: every later address in the sweep depends on it.
type Org struct {
	At    Pos
	Value expr.Expr
}

func (o *Org) Pos() Pos { return o.At }

func (o *Org) Declare(*env.Environment) error { return nil }

func (o *Org) ResolveAddress(e *env.Environment, addr int) (int, error) {
	target, err := evalNow(e, o.Value, addr, o.At, "ORG")
	if err != nil {
		return 0, err
	}
	if target < 0 {
		return 0, errorf(o.At, ErrEmit, "ORG to negative address %d", target)
	}
	return target, nil
}

func (o *Org) Emit(e *env.Environment, img *output.Image) error {
	target, err := evalFinal(e, o.Value, img.Addr(), o.At)
	if err != nil {
		return err
	}
	if err := img.SetNextAddress(target); err != nil {
		return errorf(o.At, ErrEmit, "%v", err)
	}
	return nil
}

// DataItem is an expression or, for byte data, a string literal.
type DataItem struct {
	Value expr.Expr
	Text  string
}

// Data emits bytes (Width 1, DB) or little-endian words (Width 2, DW).
type Data struct {
	At    Pos
	Width int
	Items []DataItem
}

func (d *Data) Pos() Pos { return d.At }

func (d *Data) Declare(*env.Environment) error { return nil }

// Size is the number of bytes d emits.
func (d *Data) Size() int {
	n := 0
	for _, it := range d.Items {
		if it.Value == nil {
			n += len(it.Text)
			continue
		}
		n += d.Width
	}
	return n
}

func (d *Data) ResolveAddress(_ *env.Environment, addr int) (int, error) {
	return addr + d.Size(), nil
}

func (d *Data) Emit(e *env.Environment, img *output.Image) error {
	addr := img.Addr()
	code := make([]byte, 0, d.Size())
	for _, it := range d.Items {
		if it.Value == nil {
			code = append(code, it.Text...)
			continue
		}
		v, err := evalFinal(e, it.Value, addr, d.At)
		if err != nil {
			return err
		}
		switch d.Width {
		case 1:
			if v < -0x80 || v > 0xFF {
				return errorf(d.At, ErrEmit, "byte value %d out of range", v)
			}
			code = append(code, byte(v))
		case 2:
			if v < -0x8000 || v > 0xFFFF {
				return errorf(d.At, ErrEmit, "word value %d out of range", v)
			}
			code = append(code, byte(v), byte(v>>8))
		default:
			return errorf(d.At, ErrEmit, "unsupported data width %d", d.Width)
		}
	}
	return write(img, d.At, code)
}

// Space reserves Count bytes without writing them.
type Space struct {
	At    Pos
	Count expr.Expr
}

func (s *Space) Pos() Pos { return s.At }

func (s *Space) Declare(*env.Environment) error { return nil }

func (s *Space) ResolveAddress(e *env.Environment, addr int) (int, error) {
	n, err := evalNow(e, s.Count, addr, s.At, "DS")
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errorf(s.At, ErrEmit, "DS with negative size %d", n)
	}
	return addr + n, nil
}

func (s *Space) Emit(e *env.Environment, img *output.Image) error {
	n, err := evalFinal(e, s.Count, img.Addr(), s.At)
	if err != nil {
		return err
	}
	if err := img.SetNextAddress(img.Addr() + n); err != nil {
		return errorf(s.At, ErrEmit, "%v", err)
	}
	return nil
}

// evalNow evaluates an expression whose value decides later addresses.
// Unresolved is fatal here.
func evalNow(e *env.Environment, x expr.Expr, addr int, pos Pos, what string) (int, error) {
	r, err := x.Eval(e, addr)
	if err != nil {
		return 0, errorAt(pos, err)
	}
	if !r.IsResolved() {
		return 0, errorf(pos, ErrAmbiguousOrigin, "%s depends on '%s', which is not known yet", what, r.Missing)
	}
	return r.Value, nil
}

// evalFinal evaluates an operand during emission, when every symbol must be
// known.
func evalFinal(e *env.Environment, x expr.Expr, addr int, pos Pos) (int, error) {
	r, err := x.Eval(e, addr)
	if err != nil {
		return 0, &Error{Pos: pos, Err: fmt.Errorf("%w: %w", ErrEmit, err)}
	}
	if !r.IsResolved() {
		return 0, errorAt(pos, fmt.Errorf("%w %s", ErrUnresolvedSymbol, missing(e, x, r.Missing)))
	}
	return r.Value, nil
}

// missing quotes the name that stopped x, followed by any other name in x
// that has no value either.
func missing(e *env.Environment, x expr.Expr, first string) string {
	msg := "'" + first + "'"
	var also []string
	for _, name := range expr.Symbols(x) {
		if _, ok := e.Lookup(name); !ok && name != first {
			also = append(also, "'"+name+"'")
		}
	}
	if len(also) > 0 {
		msg += " (also " + strings.Join(also, ", ") + ")"
	}
	return msg
}

func write(img *output.Image, pos Pos, code []byte) error {
	img.MarkLine(pos.Line)
	if _, err := img.Write(code); err != nil {
		return errorf(pos, ErrEmit, "%v", err)
	}
	return nil
}
