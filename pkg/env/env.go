// Package env implements the symbol scopes used while assembling.
//
// An Environment is owned by a single compilation. Scopes never share
// bindings: CopyTo exports fresh Symbol values, so a macro call can read the
// caller's names but never change them.
package env

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrDuplicateSymbol  = errors.New("duplicate symbol")
	ErrUnresolvedSymbol = errors.New("unresolved symbol")
)

type Kind int

const (
	Label Kind = iota
	Constant
	Param
)

func (k Kind) String() string {
	switch k {
	case Label:
		return "label"
	case Constant:
		return "constant"
	case Param:
		return "param"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Pos is a source position. File names the included file a statement came
// from, or the main input; it is empty when the input has no name.
type Pos struct {
	File   string
	Line   int
	Column int
}

type Symbol struct {
	Name     string
	Value    int
	Resolved bool
	Kind     Kind
	Pos      Pos
	Scope    *Environment
}

// Definition is the part of a macro definition the scope needs to know about.
type Definition interface {
	MacroName() string
	Formals() []string
}

// Macro pairs a definition with the template scope built from its body.
type Macro struct {
	Def      Definition
	Template *Environment
	Pos      Pos
}

type Environment struct {
	symbols    map[string]*Symbol
	macros     map[string]*Macro
	expansions map[any]*Environment
	order      []any
	depth      int
}

func New() *Environment {
	return &Environment{
		symbols:    make(map[string]*Symbol),
		macros:     make(map[string]*Macro),
		expansions: make(map[any]*Environment),
	}
}

// Child returns an empty scope one macro level below e.
func (e *Environment) Child() *Environment {
	c := New()
	c.depth = e.depth + 1
	return c
}

func (e *Environment) Depth() int { return e.depth }

func (e *Environment) Len() int { return len(e.symbols) }

func normalize(name string) string {
	return strings.ToUpper(name)
}

// Declare binds sym in this scope. The name is normalized.
func (e *Environment) Declare(sym Symbol) error {
	sym.Name = normalize(sym.Name)
	if prev, exists := e.symbols[sym.Name]; exists {
		return fmt.Errorf("%w '%s' (first defined on line %d)", ErrDuplicateSymbol, sym.Name, prev.Pos.Line)
	}
	sym.Scope = e
	e.symbols[sym.Name] = &sym
	return nil
}

// Lookup reports the value of a resolved binding.
func (e *Environment) Lookup(name string) (int, bool) {
	sym, ok := e.symbols[normalize(name)]
	if !ok || !sym.Resolved {
		return 0, false
	}
	return sym.Value, true
}

func (e *Environment) Symbol(name string) (*Symbol, bool) {
	sym, ok := e.symbols[normalize(name)]
	return sym, ok
}

// Resolve returns the value bound to name. During sweeps ErrUnresolvedSymbol
// means "try again later".
func (e *Environment) Resolve(name string) (int, error) {
	if v, ok := e.Lookup(name); ok {
		return v, nil
	}
	return 0, fmt.Errorf("%w '%s'", ErrUnresolvedSymbol, normalize(name))
}

// Bind sets the value of name, declaring it as a label when absent. It reports
// whether the binding went from unresolved to resolved.
func (e *Environment) Bind(name string, value int, pos Pos) bool {
	key := normalize(name)
	sym, ok := e.symbols[key]
	if !ok {
		e.symbols[key] = &Symbol{Name: key, Value: value, Resolved: true, Kind: Label, Pos: pos, Scope: e}
		return true
	}
	newly := !sym.Resolved
	sym.Value = value
	sym.Resolved = true
	return newly
}

func (e *Environment) Remove(name string) {
	delete(e.symbols, normalize(name))
}

// CopyTo exports a snapshot of every binding and macro of e into target.
// Names already bound in target are left alone.
func (e *Environment) CopyTo(target *Environment) {
	for name, sym := range e.symbols {
		if _, exists := target.symbols[name]; exists {
			continue
		}
		cp := *sym
		cp.Scope = target
		target.symbols[name] = &cp
	}
	for name, m := range e.macros {
		if _, exists := target.macros[name]; exists {
			continue
		}
		target.macros[name] = m
	}
}

func (e *Environment) DeclareMacro(m *Macro) error {
	name := normalize(m.Def.MacroName())
	if prev, exists := e.macros[name]; exists {
		return fmt.Errorf("%w: macro '%s' already defined on line %d", ErrDuplicateSymbol, name, prev.Pos.Line)
	}
	e.macros[name] = m
	return nil
}

func (e *Environment) Macro(name string) (*Macro, bool) {
	m, ok := e.macros[normalize(name)]
	return m, ok
}

// SetExpansion records the scope a macro call built while resolving inside e.
// key identifies the call statement.
func (e *Environment) SetExpansion(key any, child *Environment) {
	if _, exists := e.expansions[key]; !exists {
		e.order = append(e.order, key)
	}
	e.expansions[key] = child
}

func (e *Environment) Expansion(key any) (*Environment, bool) {
	c, ok := e.expansions[key]
	return c, ok
}

// Unresolved lists the pending symbols of e and of every recorded expansion,
// ordered by definition site. An expansion's snapshot of a caller symbol
// counts until a sweep copies it resolved, because Emit reads that snapshot.
func (e *Environment) Unresolved() []*Symbol {
	var pending []*Symbol
	for _, sym := range e.symbols {
		if !sym.Resolved {
			pending = append(pending, sym)
		}
	}
	sortByPos(pending)
	for _, key := range e.order {
		pending = append(pending, e.expansions[key].Unresolved()...)
	}
	return pending
}

// Symbols lists the bindings of this scope only, sorted by name.
func (e *Environment) Symbols() []*Symbol {
	out := make([]*Symbol, 0, len(e.symbols))
	for _, sym := range e.symbols {
		out = append(out, sym)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func sortByPos(syms []*Symbol) {
	sort.Slice(syms, func(i, j int) bool {
		a, b := syms[i], syms[j]
		if a.Pos.Line != b.Pos.Line {
			return a.Pos.Line < b.Pos.Line
		}
		if a.Pos.Column != b.Pos.Column {
			return a.Pos.Column < b.Pos.Column
		}
		return a.Name < b.Name
	})
}
