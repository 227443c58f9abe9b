package env

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"
)

type fakeDef struct {
	name    string
	formals []string
}

func (d fakeDef) MacroName() string { return d.name }
func (d fakeDef) Formals() []string { return d.formals }

func TestDeclareDuplicate(t *testing.T) {
	e := New()
	be.Err(t, e.Declare(Symbol{Name: "loop", Pos: Pos{Line: 1, Column: 1}}), nil)

	err := e.Declare(Symbol{Name: "LOOP", Pos: Pos{Line: 4, Column: 1}})
	be.True(t, errors.Is(err, ErrDuplicateSymbol))
	be.Equal(t, err.Error(), "duplicate symbol 'LOOP' (first defined on line 1)")
}

func TestResolve(t *testing.T) {
	e := New()
	be.Err(t, e.Declare(Symbol{Name: "later"}), nil)

	_, err := e.Resolve("later")
	be.True(t, errors.Is(err, ErrUnresolvedSymbol))
	_, err = e.Resolve("never")
	be.True(t, errors.Is(err, ErrUnresolvedSymbol))

	be.True(t, e.Bind("Later", 0x42, Pos{}))
	be.True(t, !e.Bind("LATER", 0x42, Pos{}))

	v, err := e.Resolve("later")
	be.Err(t, err, nil)
	be.Equal(t, v, 0x42)
}

func TestBindDeclaresMissing(t *testing.T) {
	e := New()
	be.True(t, e.Bind("fresh", 7, Pos{Line: 9}))
	sym, ok := e.Symbol("FRESH")
	be.True(t, ok)
	be.Equal(t, sym.Kind, Label)
	be.Equal(t, sym.Pos.Line, 9)
	be.True(t, sym.Scope == e)
}

func TestRemove(t *testing.T) {
	e := New()
	e.Bind("X", 1, Pos{})
	e.Remove("x")
	_, ok := e.Symbol("X")
	be.True(t, !ok)
	be.Err(t, e.Declare(Symbol{Name: "X", Kind: Param, Value: 2, Resolved: true}), nil)
}

func TestCopyToIsSnapshot(t *testing.T) {
	src := New()
	src.Bind("A", 1, Pos{})
	be.Err(t, src.Declare(Symbol{Name: "PENDING"}), nil)

	dst := src.Child()
	src.CopyTo(dst)

	v, ok := dst.Lookup("A")
	be.True(t, ok)
	be.Equal(t, v, 1)

	dst.Bind("A", 99, Pos{})
	dst.Bind("PENDING", 5, Pos{})
	dst.Bind("ONLY_IN_DST", 3, Pos{})

	v, _ = src.Lookup("A")
	be.Equal(t, v, 1)
	_, ok = src.Lookup("PENDING")
	be.True(t, !ok)
	_, ok = src.Symbol("ONLY_IN_DST")
	be.True(t, !ok)

	sym, _ := dst.Symbol("A")
	be.True(t, sym.Scope == dst)
}

func TestCopyToFirstSourceWins(t *testing.T) {
	template := New()
	be.Err(t, template.Declare(Symbol{Name: "LOOP"}), nil)

	caller := New()
	caller.Bind("LOOP", 0x100, Pos{})
	caller.Bind("OUTER", 0x200, Pos{})

	call := caller.Child()
	template.CopyTo(call)
	caller.CopyTo(call)

	_, ok := call.Lookup("LOOP")
	be.True(t, !ok)
	v, ok := call.Lookup("OUTER")
	be.True(t, ok)
	be.Equal(t, v, 0x200)
}

func TestMacros(t *testing.T) {
	e := New()
	m := &Macro{Def: fakeDef{name: "add2", formals: []string{"X"}}, Template: e.Child(), Pos: Pos{Line: 2}}
	be.Err(t, e.DeclareMacro(m), nil)
	be.True(t, errors.Is(e.DeclareMacro(&Macro{Def: fakeDef{name: "ADD2"}}), ErrDuplicateSymbol))

	got, ok := e.Macro("Add2")
	be.True(t, ok)
	be.True(t, got == m)
	be.Equal(t, got.Template.Depth(), 1)

	child := e.Child()
	e.CopyTo(child)
	_, ok = child.Macro("ADD2")
	be.True(t, ok)
}

func TestUnresolvedIncludesExpansions(t *testing.T) {
	root := New()
	be.Err(t, root.Declare(Symbol{Name: "B", Pos: Pos{Line: 5}}), nil)
	be.Err(t, root.Declare(Symbol{Name: "A", Pos: Pos{Line: 2}}), nil)
	root.Bind("DONE", 1, Pos{Line: 1})

	call := root.Child()
	be.Err(t, call.Declare(Symbol{Name: "LOCAL", Pos: Pos{Line: 8}}), nil)
	key := new(int)
	root.SetExpansion(key, call)

	names := func(syms []*Symbol) []string {
		var out []string
		for _, s := range syms {
			out = append(out, s.Name)
		}
		return out
	}
	be.Equal(t, names(root.Unresolved()), []string{"A", "B", "LOCAL"})

	got, ok := root.Expansion(key)
	be.True(t, ok)
	be.True(t, got == call)

	replacement := root.Child()
	root.SetExpansion(key, replacement)
	be.Equal(t, names(root.Unresolved()), []string{"A", "B"})
}

func TestUnresolvedCountsStaleSnapshots(t *testing.T) {
	root := New()
	be.Err(t, root.Declare(Symbol{Name: "LATER", Pos: Pos{Line: 9}}), nil)

	call := root.Child()
	root.CopyTo(call)
	root.SetExpansion(new(int), call)
	root.Bind("LATER", 4, Pos{Line: 9})

	pending := root.Unresolved()
	be.Equal(t, len(pending), 1)
	be.True(t, pending[0].Scope == call)
}

func TestSymbolsSorted(t *testing.T) {
	e := New()
	e.Bind("ZETA", 1, Pos{})
	e.Bind("alpha", 2, Pos{})
	syms := e.Symbols()
	be.Equal(t, len(syms), 2)
	be.Equal(t, syms[0].Name, "ALPHA")
	be.Equal(t, syms[1].Name, "ZETA")
}
