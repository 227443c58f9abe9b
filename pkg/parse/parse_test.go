package parse

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/nalgeon/be"

	"emuasm/pkg/asm"
	"emuasm/pkg/target/i8080"
)

func parse8080(t *testing.T, src string) *asm.Program {
	t.Helper()
	p, err := Parse(src, i8080.Target{}, Options{})
	be.Err(t, err, nil)
	return p
}

func memFS(files map[string]string) func(string) ([]byte, error) {
	return func(path string) ([]byte, error) {
		s, ok := files[filepath.ToSlash(filepath.Clean(path))]
		if !ok {
			return nil, os.ErrNotExist
		}
		return []byte(s), nil
	}
}

func TestHelperFunctions(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"abc", true},
		{"_abc", true},
		{"abc1", true},
		{"?tmp", true},
		{"1abc", false},
		{"", false},
		{"ab-c", false},
	}
	for _, tc := range tests {
		be.Equal(t, isIdentifier(tc.input), tc.want)
	}
}

func TestStripComments(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"LDI R0, 1", "LDI R0, 1"},
		{"LDI R0, 1 ; comment", "LDI R0, 1 "},
		{"LDI R0, 1 // comment", "LDI R0, 1 "},
		{"// comment", ""},
		{"; comment", ""},
		{"LDI R0, 1 ; first // second", "LDI R0, 1 "},
		{`DB ";", 1 ; real`, `DB ";", 1 `},
		{"MVI A,';'", "MVI A,';'"},
	}
	for _, tc := range tests {
		be.Equal(t, stripComments(tc.input), tc.want)
	}
}

func TestSplitOperands(t *testing.T) {
	tests := []struct {
		input string
		want  []string
	}{
		{"", nil},
		{"A", []string{"A"}},
		{"A, 5", []string{"A", "5"}},
		{"(1,2), 3", []string{"(1,2)", "3"}},
		{`"a,b", ','`, []string{`"a,b"`, "','"}},
		{`"x\"y", 1`, []string{`"x\"y"`, "1"}},
	}
	for _, tc := range tests {
		be.Equal(t, splitOperands(tc.input), tc.want)
	}
}

func TestParseStatements(t *testing.T) {
	p := parse8080(t, `
start:  MVI A, 5     ; load
LABEL1: LABEL2: HLT
X       EQU 5
Y:      EQU X+1
        ORG 100h
        DB 1, "hi", 'c'
        DW start
        DS 4
`)
	s := p.Statements
	be.Equal(t, len(s), 11)

	l, ok := s[0].(*asm.Label)
	be.True(t, ok)
	be.Equal(t, l.Name, "start")
	be.Equal(t, l.At, asm.Pos{Line: 2, Column: 1})

	ins, ok := s[1].(*asm.Instruction)
	be.True(t, ok)
	be.Equal(t, ins.Op.Mnemonic(), "MVI")
	be.Equal(t, ins.Op.Size(), 2)
	be.Equal(t, ins.At, asm.Pos{Line: 2, Column: 9})

	be.Equal(t, s[2].(*asm.Label).Name, "LABEL1")
	be.Equal(t, s[3].(*asm.Label).Name, "LABEL2")
	be.Equal(t, s[4].(*asm.Instruction).Op.Mnemonic(), "HLT")

	x, ok := s[5].(*asm.Equ)
	be.True(t, ok)
	be.Equal(t, x.Name, "X")
	be.Equal(t, x.Value.String(), "5")

	y := s[6].(*asm.Equ)
	be.Equal(t, y.Name, "Y")
	be.Equal(t, y.Value.String(), "(X + 1)")

	org := s[7].(*asm.Org)
	be.Equal(t, org.Value.String(), "256")

	db := s[8].(*asm.Data)
	be.Equal(t, db.Width, 1)
	be.Equal(t, db.Size(), 4)
	be.Equal(t, db.Items[1].Text, "hi")
	be.Equal(t, db.Items[2].Text, "c")
}

func TestParseWordAndSpace(t *testing.T) {
	p := parse8080(t, "DW 1, 2, 3\nDS 4")
	dw := p.Statements[0].(*asm.Data)
	be.Equal(t, dw.Width, 2)
	be.Equal(t, dw.Size(), 6)
	ds := p.Statements[1].(*asm.Space)
	be.Equal(t, ds.Count.String(), "4")
}

func TestParseStrings(t *testing.T) {
	p := parse8080(t, `
.STRING "A\nB"
.STRING ""
.PSTRING "ABC"
.PSTRING "AB"
`)
	sizes := []int{4, 1, 6, 4}
	for i, want := range sizes {
		be.Equal(t, p.Statements[i].(*asm.Data).Size(), want)
	}
	be.Equal(t, p.Statements[0].(*asm.Data).Items[0].Text, "A\nB")
}

func TestParseMacro(t *testing.T) {
	p := parse8080(t, `
ADD2    MACRO X, y
        MVI A, X
        ADI y
        ENDM
        ADD2 5, 2
        ADD2
`)
	be.Equal(t, len(p.Statements), 3)

	def := p.Statements[0].(*asm.MacroDef)
	be.Equal(t, def.Name, "ADD2")
	be.Equal(t, def.Params, []string{"X", "y"})
	be.Equal(t, len(def.Body), 2)

	call := p.Statements[1].(*asm.MacroCall)
	be.Equal(t, call.Name, "ADD2")
	be.Equal(t, len(call.Args), 2)

	bare := p.Statements[2].(*asm.MacroCall)
	be.True(t, bare.Args != nil)
	be.Equal(t, len(bare.Args), 0)
}

func TestParseNestedMacroDefinition(t *testing.T) {
	p := parse8080(t, `
OUTER   MACRO
INNER   MACRO
        NOP
        ENDM
        INNER
        ENDM
`)
	be.Equal(t, len(p.Statements), 1)
	outer := p.Statements[0].(*asm.MacroDef)
	be.Equal(t, len(outer.Body), 2)
	inner := outer.Body[0].(*asm.MacroDef)
	be.Equal(t, len(inner.Body), 1)
}

func TestParseEnd(t *testing.T) {
	p := parse8080(t, "NOP\nEND\nthis is not assembly")
	be.Equal(t, len(p.Statements), 1)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"invalid label", "1LABEL: NOP"},
		{"unterminated string", `.STRING "unterminated`},
		{"string without quotes", ".STRING missing_quote"},
		{"ENDM without MACRO", "ENDM"},
		{"missing ENDM", "M MACRO\nNOP"},
		{"invalid register", "MVI Q, 1"},
		{"operand count", "MOV A"},
		{"word string", `DW "ab"`},
		{"ORG without operand", "ORG"},
		{"bad expression", "JMP (1+"},
		{"unknown instruction", "FOO+ 1"},
		{"bad macro parameter", "M MACRO 1x"},
		{"quoted include", "INCLUDE defs.inc"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src, i8080.Target{}, Options{})
			be.True(t, errors.Is(err, ErrSyntax))
			var located *asm.Error
			be.True(t, errors.As(err, &located))
			be.True(t, located.Pos.Line >= 1)
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := Parse("NOP\n   MVI Z, 1", i8080.Target{}, Options{})
	var located *asm.Error
	be.True(t, errors.As(err, &located))
	be.Equal(t, located.Pos, asm.Pos{Line: 2, Column: 4})
}

func TestInclude(t *testing.T) {
	read := memFS(map[string]string{
		"src/main.asm": "INCLUDE \"defs.inc\"\nMVI A, VAL\nINCLUDE \"lib.inc\"",
		"src/defs.inc": "VAL EQU 7",
		"lib/lib.inc":  "HLT",
	})
	p, err := ParseFile("src/main.asm", i8080.Target{}, Options{IncludeDirs: []string{"lib"}, ReadFile: read})
	be.Err(t, err, nil)
	be.Equal(t, len(p.Statements), 3)
	be.Equal(t, p.Statements[0].(*asm.Equ).Name, "VAL")
	be.Equal(t, p.Statements[2].(*asm.Instruction).Op.Mnemonic(), "HLT")
	be.Equal(t, p.Name, "src/main.asm")
}

func TestIncludePositions(t *testing.T) {
	read := memFS(map[string]string{
		"main.asm": "NOP\nINCLUDE \"bad.inc\"",
		"bad.inc":  "NOP\n  MVI Z, 1",
	})
	_, err := ParseFile("main.asm", i8080.Target{}, Options{ReadFile: read})
	var located *asm.Error
	be.True(t, errors.As(err, &located))
	be.Equal(t, located.Pos, asm.Pos{File: "bad.inc", Line: 2, Column: 3})

	p, err := ParseFile("main.asm", i8080.Target{}, Options{ReadFile: memFS(map[string]string{
		"main.asm": "NOP\nINCLUDE \"ok.inc\"",
		"ok.inc":   "HLT",
	})})
	be.Err(t, err, nil)
	be.Equal(t, p.Statements[0].Pos().File, "main.asm")
	be.Equal(t, p.Statements[1].Pos().File, "ok.inc")
}

func TestIncludeCycle(t *testing.T) {
	read := memFS(map[string]string{
		"a.asm": "INCLUDE \"b.asm\"",
		"b.asm": "NOP\nINCLUDE \"a.asm\"",
	})
	_, err := ParseFile("a.asm", i8080.Target{}, Options{ReadFile: read})
	be.True(t, errors.Is(err, ErrSyntax))
}

func TestIncludeTwiceIsAllowed(t *testing.T) {
	read := memFS(map[string]string{
		"main.asm": "INCLUDE \"nop.inc\"\nINCLUDE \"nop.inc\"",
		"nop.inc":  "NOP",
	})
	p, err := ParseFile("main.asm", i8080.Target{}, Options{ReadFile: read})
	be.Err(t, err, nil)
	be.Equal(t, len(p.Statements), 2)
}

func TestIncludeMissing(t *testing.T) {
	_, err := Parse(`INCLUDE "nowhere.inc"`, i8080.Target{}, Options{ReadFile: memFS(nil)})
	be.True(t, errors.Is(err, ErrSyntax))
}

func TestUnterminatedMacro(t *testing.T) {
	_, err := Parse("OUTER MACRO\nNOP", i8080.Target{}, Options{})
	be.True(t, errors.Is(err, ErrUnterminatedMacro))
	be.True(t, errors.Is(err, ErrSyntax))
	be.Equal(t, err.Error(), "[1,1] syntax error: missing ENDM for macro 'OUTER'")
}
