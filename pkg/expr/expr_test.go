package expr

import (
	"errors"
	"testing"

	"github.com/nalgeon/be"
)

type mapScope map[string]int

func (m mapScope) Lookup(name string) (int, bool) {
	v, ok := m[name]
	return v, ok
}

func mustEval(t *testing.T, e Expr, scope Scope, addr int) Result {
	t.Helper()
	r, err := e.Eval(scope, addr)
	be.Err(t, err, nil)
	return r
}

func TestEvalResolved(t *testing.T) {
	scope := mapScope{"START": 0x100, "COUNT": 3}

	tests := []struct {
		name string
		expr Expr
		want int
	}{
		{"literal", Literal{Value: 42}, 42},
		{"symbol", Ref("start"), 0x100},
		{"current", Current{}, 0x2000},
		{"add", Binary{Op: Add, X: Ref("START"), Y: Literal{Value: 2}}, 0x102},
		{"sub", Binary{Op: Sub, X: Current{}, Y: Ref("START")}, 0x1F00},
		{"mul", Binary{Op: Mul, X: Ref("COUNT"), Y: Literal{Value: 7}}, 21},
		{"div", Binary{Op: Div, X: Literal{Value: 7}, Y: Literal{Value: 2}}, 3},
		{"mod", Binary{Op: Mod, X: Literal{Value: 7}, Y: Literal{Value: 4}}, 3},
		{"shl", Binary{Op: Shl, X: Literal{Value: 1}, Y: Literal{Value: 4}}, 16},
		{"shr", Binary{Op: Shr, X: Literal{Value: 0x80}, Y: Literal{Value: 3}}, 0x10},
		{"and", Binary{Op: And, X: Literal{Value: 0xF0F}, Y: Literal{Value: 0x0FF}}, 0x00F},
		{"or", Binary{Op: Or, X: Literal{Value: 0xF0}, Y: Literal{Value: 0x0F}}, 0xFF},
		{"xor", Binary{Op: Xor, X: Literal{Value: 0xFF}, Y: Literal{Value: 0x0F}}, 0xF0},
		{"neg", Unary{Op: Neg, X: Literal{Value: 5}}, -5},
		{"not", Unary{Op: Not, X: Literal{Value: 0}}, -1},
		{"high", Unary{Op: High, X: Literal{Value: 0x1234}}, 0x12},
		{"low", Unary{Op: Low, X: Literal{Value: 0x1234}}, 0x34},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := mustEval(t, tc.expr, scope, 0x2000)
			be.True(t, r.IsResolved())
			be.Equal(t, r.Value, tc.want)
		})
	}
}

func TestEvalStrictOperands(t *testing.T) {
	scope := mapScope{"A": 1}
	e := Binary{Op: Add, X: Ref("A"), Y: Binary{Op: Mul, X: Ref("LATER"), Y: Ref("OTHER")}}

	r := mustEval(t, e, scope, 0)
	be.True(t, !r.IsResolved())
	be.Equal(t, r.Missing, "LATER")

	u := mustEval(t, Unary{Op: Neg, X: Ref("gone")}, scope, 0)
	be.True(t, !u.IsResolved())
	be.Equal(t, u.Missing, "GONE")
}

func TestEvalDivideByZero(t *testing.T) {
	for _, op := range []BinaryOp{Div, Mod} {
		_, err := Binary{Op: op, X: Literal{Value: 1}, Y: Literal{Value: 0}}.Eval(mapScope{}, 0)
		be.True(t, errors.Is(err, ErrDivideByZero))
	}
}

func TestSymbols(t *testing.T) {
	e := Binary{Op: Add, X: Ref("b"), Y: Binary{Op: Sub, X: Ref("a"), Y: Unary{Op: Neg, X: Ref("B")}}}
	be.Equal(t, Symbols(e), []string{"B", "A"})
	be.Equal(t, len(Symbols(Literal{Value: 1})), 0)
}

func TestString(t *testing.T) {
	e := Binary{Op: Add, X: Current{}, Y: Unary{Op: High, X: Ref("x")}}
	be.Equal(t, e.String(), "($ + HIGH X)")
}
