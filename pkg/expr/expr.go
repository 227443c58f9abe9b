// Package expr holds the operand expression tree shared by every target.
//
// Evaluation never fails on a missing symbol: it reports the first name it
// could not look up through Result, so the sweep loop can try again later.
package expr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrDivideByZero is returned for "/" and MOD with a zero right operand.
var ErrDivideByZero = errors.New("division by zero")

// Scope resolves symbol names to values. ok is false when the name is unbound
// or bound but not yet resolved.
type Scope interface {
	Lookup(name string) (value int, ok bool)
}

// Result is either a resolved value or the name of the symbol that stopped
// evaluation.
type Result struct {
	Value   int
	Missing string
	ok      bool
}

func Resolved(v int) Result { return Result{Value: v, ok: true} }

func Unresolved(name string) Result { return Result{Missing: name} }

func (r Result) IsResolved() bool { return r.ok }

type Expr interface {
	Eval(scope Scope, addr int) (Result, error)
	String() string
}

type Literal struct {
	Value int
}

func (l Literal) Eval(Scope, int) (Result, error) { return Resolved(l.Value), nil }

func (l Literal) String() string { return strconv.Itoa(l.Value) }

// Symbol references a label, constant or macro parameter by name.
type Symbol struct {
	Name string
}

func Ref(name string) Symbol { return Symbol{Name: Normalize(name)} }

func (s Symbol) Eval(scope Scope, _ int) (Result, error) {
	if v, ok := scope.Lookup(s.Name); ok {
		return Resolved(v), nil
	}
	return Unresolved(s.Name), nil
}

func (s Symbol) String() string { return s.Name }

// Current is the location counter, written $ in source.
type Current struct{}

func (Current) Eval(_ Scope, addr int) (Result, error) { return Resolved(addr), nil }

func (Current) String() string { return "$" }

type UnaryOp int

const (
	Neg UnaryOp = iota
	Plus
	Not
	High
	Low
)

var unaryNames = map[UnaryOp]string{
	Neg:  "-",
	Plus: "+",
	Not:  "NOT ",
	High: "HIGH ",
	Low:  "LOW ",
}

type Unary struct {
	Op UnaryOp
	X  Expr
}

func (u Unary) Eval(scope Scope, addr int) (Result, error) {
	r, err := u.X.Eval(scope, addr)
	if err != nil || !r.IsResolved() {
		return r, err
	}
	switch u.Op {
	case Neg:
		return Resolved(-r.Value), nil
	case Plus:
		return r, nil
	case Not:
		return Resolved(^r.Value), nil
	case High:
		return Resolved((r.Value >> 8) & 0xFF), nil
	case Low:
		return Resolved(r.Value & 0xFF), nil
	}
	return Result{}, fmt.Errorf("unknown unary operator %d", u.Op)
}

func (u Unary) String() string { return unaryNames[u.Op] + u.X.String() }

type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mul
	Div
	Mod
	Shl
	Shr
	And
	Or
	Xor
)

var binaryNames = map[BinaryOp]string{
	Add: "+",
	Sub: "-",
	Mul: "*",
	Div: "/",
	Mod: "MOD",
	Shl: "SHL",
	Shr: "SHR",
	And: "AND",
	Or:  "OR",
	Xor: "XOR",
}

type Binary struct {
	Op   BinaryOp
	X, Y Expr
}

func (b Binary) Eval(scope Scope, addr int) (Result, error) {
	x, err := b.X.Eval(scope, addr)
	if err != nil || !x.IsResolved() {
		return x, err
	}
	y, err := b.Y.Eval(scope, addr)
	if err != nil || !y.IsResolved() {
		return y, err
	}
	switch b.Op {
	case Add:
		return Resolved(x.Value + y.Value), nil
	case Sub:
		return Resolved(x.Value - y.Value), nil
	case Mul:
		return Resolved(x.Value * y.Value), nil
	case Div:
		if y.Value == 0 {
			return Result{}, ErrDivideByZero
		}
		return Resolved(x.Value / y.Value), nil
	case Mod:
		if y.Value == 0 {
			return Result{}, ErrDivideByZero
		}
		return Resolved(x.Value % y.Value), nil
	case Shl:
		return Resolved(x.Value << uint(y.Value&63)), nil
	case Shr:
		return Resolved(x.Value >> uint(y.Value&63)), nil
	case And:
		return Resolved(x.Value & y.Value), nil
	case Or:
		return Resolved(x.Value | y.Value), nil
	case Xor:
		return Resolved(x.Value ^ y.Value), nil
	}
	return Result{}, fmt.Errorf("unknown binary operator %d", b.Op)
}

func (b Binary) String() string {
	return "(" + b.X.String() + " " + binaryNames[b.Op] + " " + b.Y.String() + ")"
}

// Symbols lists the names referenced by e in evaluation order, without
// duplicates.
func Symbols(e Expr) []string {
	var names []string
	seen := make(map[string]bool)
	var walk func(Expr)
	walk = func(e Expr) {
		switch n := e.(type) {
		case Symbol:
			if !seen[n.Name] {
				seen[n.Name] = true
				names = append(names, n.Name)
			}
		case Unary:
			walk(n.X)
		case Binary:
			walk(n.X)
			walk(n.Y)
		}
	}
	walk(e)
	return names
}

// Normalize returns the canonical spelling of a symbol name.
func Normalize(name string) string {
	return strings.ToUpper(name)
}
