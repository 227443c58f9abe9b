package asm

import (
	"emuasm/pkg/env"
	"emuasm/pkg/expr"
	"emuasm/pkg/output"
)

// MaxMacroDepth bounds nested (and recursive) macro calls.
const MaxMacroDepth = 64

type MacroDef struct {
	At     Pos
	Name   string
	Params []string
	Body   []Statement
}

func (d *MacroDef) MacroName() string { return d.Name }

func (d *MacroDef) Formals() []string { return d.Params }

func (d *MacroDef) Pos() Pos { return d.At }

// Declare registers the macro and builds its template scope. Formals are
// declared in the template first so a body label can't reuse a formal's name.
func (d *MacroDef) Declare(e *env.Environment) error {
	tmpl := e.Child()
	for _, p := range d.Params {
		if err := tmpl.Declare(env.Symbol{Name: p, Kind: env.Param, Pos: d.At}); err != nil {
			return errorf(d.At, ErrDuplicateSymbol, "macro '%s' formal parameter '%s' repeated", d.Name, expr.Normalize(p))
		}
	}
	for _, s := range d.Body {
		if err := s.Declare(tmpl); err != nil {
			return err
		}
	}
	return errorAt(d.At, e.DeclareMacro(&env.Macro{Def: d, Template: tmpl, Pos: d.At}))
}

func (d *MacroDef) ResolveAddress(_ *env.Environment, addr int) (int, error) { return addr, nil }

func (d *MacroDef) Emit(*env.Environment, *output.Image) error { return nil }

// MacroCall expands a macro in place. A nil Args means the actual parameters
// were never supplied; a call without parameters uses an empty slice.
type MacroCall struct {
	At   Pos
	Name string
	Args []expr.Expr
}

func NewMacroCall(pos Pos, name string, args ...expr.Expr) *MacroCall {
	if args == nil {
		args = []expr.Expr{}
	}
	return &MacroCall{At: pos, Name: name, Args: args}
}

func (c *MacroCall) Pos() Pos { return c.At }

func (c *MacroCall) Declare(*env.Environment) error { return nil }

func (c *MacroCall) definition(e *env.Environment) (*MacroDef, *env.Macro, error) {
	m, ok := e.Macro(c.Name)
	if !ok {
		return nil, nil, errorf(c.At, ErrUndefinedMacro, "'%s'", expr.Normalize(c.Name))
	}
	def, ok := m.Def.(*MacroDef)
	if !ok {
		return nil, nil, errorf(c.At, ErrUndefinedMacro, "'%s' has unsupported definition %T", expr.Normalize(c.Name), m.Def)
	}
	return def, m, nil
}

// ResolveAddress builds a fresh scope for this expansion: the macro template,
// then a snapshot of the caller, then each formal bound to its actual value.
// The body is resolved inside it and the scope is kept in e for Emit.
func (c *MacroCall) ResolveAddress(e *env.Environment, addr int) (int, error) {
	def, m, err := c.definition(e)
	if err != nil {
		return 0, err
	}
	if c.Args == nil {
		return 0, errorf(c.At, ErrUnknownMacroParameters, "macro '%s' called without parameters being set", expr.Normalize(def.Name))
	}
	if len(c.Args) != len(def.Params) {
		return 0, errorf(c.At, ErrInvalidMacroParamsCount, "macro '%s' expects %d parameters, got %d",
			expr.Normalize(def.Name), len(def.Params), len(c.Args))
	}
	if e.Depth() >= MaxMacroDepth {
		return 0, errorf(c.At, ErrMacroDepth, "expanding '%s' (limit %d)", expr.Normalize(def.Name), MaxMacroDepth)
	}

	call := e.Child()
	m.Template.CopyTo(call)
	e.CopyTo(call)
	for i, p := range def.Params {
		r, err := c.Args[i].Eval(e, addr)
		if err != nil {
			return 0, errorAt(c.At, err)
		}
		call.Remove(p)
		if err := call.Declare(env.Symbol{
			Name:     p,
			Value:    r.Value,
			Resolved: r.IsResolved(),
			Kind:     env.Param,
			Pos:      c.At,
		}); err != nil {
			return 0, errorAt(c.At, err)
		}
	}

	next, err := resolveBody(call, def.Body, addr)
	if err != nil {
		return 0, err
	}
	e.SetExpansion(c, call)
	return next, nil
}

// resolveBody sweeps a macro body until its scope stops making progress.
func resolveBody(call *env.Environment, body []Statement, addr int) (int, error) {
	prev := -1
	for {
		next := addr
		for _, s := range body {
			var err error
			if next, err = s.ResolveAddress(call, next); err != nil {
				return 0, err
			}
		}
		pending := len(call.Unresolved())
		if pending == 0 || (prev >= 0 && pending >= prev) {
			return next, nil
		}
		prev = pending
	}
}

func (c *MacroCall) Emit(e *env.Environment, img *output.Image) error {
	def, _, err := c.definition(e)
	if err != nil {
		return err
	}
	call, ok := e.Expansion(c)
	if !ok {
		return errorf(c.At, ErrEmit, "macro '%s' was never expanded", expr.Normalize(def.Name))
	}
	for _, s := range def.Body {
		if err := s.Emit(call, img); err != nil {
			return err
		}
	}
	return nil
}
