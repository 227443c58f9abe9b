// Package parse is a small front end that turns assembler source text into an
// asm.Program for one target.
package parse

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"emuasm/pkg/asm"
	"emuasm/pkg/expr"
	"emuasm/pkg/target"
)

var ErrSyntax = errors.New("syntax error")

// ErrUnterminatedMacro is a syntax error for a MACRO still open at the end
// of the source.
var ErrUnterminatedMacro = fmt.Errorf("%w: missing ENDM", ErrSyntax)

type Options struct {
	// Filename is used for diagnostics and for resolving INCLUDE paths.
	Filename string
	// IncludeDirs are searched after the including file's directory.
	IncludeDirs []string
	// ReadFile loads included files; os.ReadFile when nil.
	ReadFile func(path string) ([]byte, error)
}

type parser struct {
	target    target.Target
	opts      Options
	including map[string]bool
	macros    []*asm.MacroDef
	prog      *asm.Program
}

// Parse parses src for t.
func Parse(src string, t target.Target, opts Options) (*asm.Program, error) {
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	p := &parser{
		target:    t,
		opts:      opts,
		including: make(map[string]bool),
		prog:      &asm.Program{Name: opts.Filename},
	}
	if opts.Filename != "" {
		if abs, err := filepath.Abs(opts.Filename); err == nil {
			p.including[abs] = true
		}
	}
	if err := p.source(src, opts.Filename); err != nil {
		return nil, err
	}
	if n := len(p.macros); n > 0 {
		m := p.macros[n-1]
		return nil, &asm.Error{Pos: m.At, Err: fmt.Errorf("%w for macro '%s'", ErrUnterminatedMacro, expr.Normalize(m.Name))}
	}
	return p.prog, nil
}

// ParseFile reads and parses the file at path.
func ParseFile(path string, t target.Target, opts Options) (*asm.Program, error) {
	read := opts.ReadFile
	if read == nil {
		read = os.ReadFile
	}
	data, err := read(path)
	if err != nil {
		return nil, err
	}
	opts.Filename = path
	return Parse(string(data), t, opts)
}

func syntaxErr(pos asm.Pos, format string, args ...any) error {
	return &asm.Error{Pos: pos, Err: fmt.Errorf("%w: %s", ErrSyntax, fmt.Sprintf(format, args...))}
}

// add appends s to the innermost open macro body, or to the program.
func (p *parser) add(s asm.Statement) {
	if n := len(p.macros); n > 0 {
		p.macros[n-1].Body = append(p.macros[n-1].Body, s)
		return
	}
	p.prog.Add(s)
}

// source parses one file's text; it returns early at END.
func (p *parser) source(src, filename string) error {
	for i, raw := range strings.Split(src, "\n") {
		done, err := p.line(strings.TrimRight(raw, "\r"), i+1, filename)
		if err != nil {
			return err
		}
		if done {
			return nil
		}
	}
	return nil
}

func (p *parser) line(raw string, lineNo int, filename string) (bool, error) {
	line := stripComments(raw)
	col := func(from int) int {
		for from < len(line) && unicode.IsSpace(rune(line[from])) {
			from++
		}
		return from + 1
	}
	rest := 0
	pos := func() asm.Pos { return asm.Pos{File: filename, Line: lineNo, Column: col(rest)} }

	// labels: "NAME:" possibly repeated
	var labels []*asm.Label
	for {
		text := line[rest:]
		colon := strings.IndexByte(text, ':')
		if colon <= 0 {
			break
		}
		name := strings.TrimSpace(text[:colon])
		if name == "" || strings.ContainsAny(name, " \t'\"") {
			break
		}
		if !isIdentifier(name) {
			return false, syntaxErr(pos(), "invalid label '%s'", name)
		}
		labels = append(labels, &asm.Label{At: pos(), Name: name})
		rest += colon + 1
	}

	body := strings.TrimSpace(line[rest:])
	if body == "" {
		for _, l := range labels {
			p.add(l)
		}
		return false, nil
	}
	at := pos()

	fields := strings.Fields(body)
	first := fields[0]
	mnemonic := strings.ToUpper(first)
	operandText := strings.TrimSpace(body[len(first):])

	// "NAME EQU expr" and "NAME MACRO params"
	if len(fields) > 1 {
		switch second := strings.ToUpper(fields[1]); second {
		case "EQU", "MACRO":
			if !isIdentifier(first) {
				return false, syntaxErr(at, "invalid name '%s'", first)
			}
			for _, l := range labels {
				p.add(l)
			}
			args := strings.TrimSpace(operandText[len(fields[1]):])
			if second == "EQU" {
				return false, p.equ(at, first, args)
			}
			return false, p.macro(at, first, args)
		}
	}

	// "NAME: EQU expr" names the constant with the last label
	if (mnemonic == "EQU" || mnemonic == "MACRO") && len(labels) > 0 {
		name := labels[len(labels)-1]
		for _, l := range labels[:len(labels)-1] {
			p.add(l)
		}
		if mnemonic == "EQU" {
			return false, p.equ(name.At, name.Name, operandText)
		}
		return false, p.macro(name.At, name.Name, operandText)
	}

	for _, l := range labels {
		p.add(l)
	}
	return p.directive(at, mnemonic, operandText, filename)
}

func (p *parser) equ(at asm.Pos, name, text string) error {
	v, err := ParseExpr(text)
	if err != nil {
		return syntaxErr(at, "EQU %s: %v", name, err)
	}
	p.add(&asm.Equ{At: at, Name: name, Value: v})
	return nil
}

func (p *parser) macro(at asm.Pos, name, text string) error {
	var params []string
	for _, f := range splitOperands(text) {
		if !isIdentifier(f) {
			return syntaxErr(at, "invalid macro parameter '%s'", f)
		}
		params = append(params, f)
	}
	def := &asm.MacroDef{At: at, Name: name, Params: params}
	p.add(def)
	p.macros = append(p.macros, def)
	return nil
}

func (p *parser) directive(at asm.Pos, mnemonic, operandText, filename string) (bool, error) {
	operands := splitOperands(operandText)
	one := func() (expr.Expr, error) {
		if len(operands) != 1 {
			return nil, syntaxErr(at, "%s expects exactly one operand", mnemonic)
		}
		e, err := ParseExpr(operands[0])
		if err != nil {
			return nil, syntaxErr(at, "%s: %v", mnemonic, err)
		}
		return e, nil
	}

	switch mnemonic {
	case "END":
		return true, nil
	case "ENDM":
		n := len(p.macros)
		if n == 0 {
			return false, syntaxErr(at, "ENDM without MACRO")
		}
		p.macros = p.macros[:n-1]
		return false, nil
	case "ORG", ".ORG":
		e, err := one()
		if err != nil {
			return false, err
		}
		p.add(&asm.Org{At: at, Value: e})
		return false, nil
	case "DS", ".SPACE":
		e, err := one()
		if err != nil {
			return false, err
		}
		p.add(&asm.Space{At: at, Count: e})
		return false, nil
	case "DB", ".BYTE", "DW", ".WORD":
		width := 1
		if mnemonic == "DW" || mnemonic == ".WORD" {
			width = 2
		}
		d, err := p.data(at, mnemonic, width, operands)
		if err != nil {
			return false, err
		}
		p.add(d)
		return false, nil
	case ".STRING":
		d, err := p.text(at, mnemonic, operands)
		if err != nil {
			return false, err
		}
		d.Items = append(d.Items, asm.DataItem{Value: expr.Literal{Value: 0}})
		p.add(d)
		return false, nil
	case ".PSTRING":
		// packed two characters per little-endian word, then a zero word
		d, err := p.text(at, mnemonic, operands)
		if err != nil {
			return false, err
		}
		zero := asm.DataItem{Value: expr.Literal{Value: 0}}
		if d.Size()%2 != 0 {
			d.Items = append(d.Items, zero)
		}
		d.Items = append(d.Items, zero, zero)
		p.add(d)
		return false, nil
	case "INCLUDE", ".INCLUDE":
		if len(operands) != 1 {
			return false, syntaxErr(at, "INCLUDE expects a file name")
		}
		name, ok := unquote(operands[0])
		if !ok {
			return false, syntaxErr(at, "INCLUDE file name must be quoted")
		}
		return false, p.include(at, name, filename)
	}

	enc, args, err := p.target.Instruction(mnemonic, operands, ParseExpr)
	if err == nil {
		p.add(&asm.Instruction{At: at, Op: enc, Args: args})
		return false, nil
	}
	if !errors.Is(err, target.ErrUnknownInstruction) {
		return false, syntaxErr(at, "%v", err)
	}

	if !isIdentifier(mnemonic) {
		return false, syntaxErr(at, "unknown instruction '%s'", mnemonic)
	}
	call := asm.NewMacroCall(at, mnemonic)
	for _, o := range operands {
		e, err := ParseExpr(o)
		if err != nil {
			return false, syntaxErr(at, "macro %s argument: %v", mnemonic, err)
		}
		call.Args = append(call.Args, e)
	}
	p.add(call)
	return false, nil
}

func (p *parser) data(at asm.Pos, mnemonic string, width int, operands []string) (*asm.Data, error) {
	if len(operands) == 0 {
		return nil, syntaxErr(at, "%s expects at least one operand", mnemonic)
	}
	d := &asm.Data{At: at, Width: width}
	for _, o := range operands {
		if s, ok := unquote(o); ok && (width == 1 || o[0] == '"') {
			if width != 1 {
				return nil, syntaxErr(at, "%s does not accept strings", mnemonic)
			}
			d.Items = append(d.Items, asm.DataItem{Text: s})
			continue
		}
		e, err := ParseExpr(o)
		if err != nil {
			return nil, syntaxErr(at, "%s: %v", mnemonic, err)
		}
		d.Items = append(d.Items, asm.DataItem{Value: e})
	}
	return d, nil
}

// text is byte data made of string literals only.
func (p *parser) text(at asm.Pos, mnemonic string, operands []string) (*asm.Data, error) {
	if len(operands) == 0 {
		return nil, syntaxErr(at, "%s expects a quoted string", mnemonic)
	}
	d := &asm.Data{At: at, Width: 1}
	for _, o := range operands {
		s, ok := unquote(o)
		if !ok || o[0] != '"' {
			return nil, syntaxErr(at, "%s expects a quoted string, got %s", mnemonic, o)
		}
		d.Items = append(d.Items, asm.DataItem{Text: s})
	}
	return d, nil
}

// unquote accepts "text" or 'text'.
func unquote(s string) (string, bool) {
	if len(s) < 2 {
		return "", false
	}
	q := s[0]
	if (q != '"' && q != '\'') || s[len(s)-1] != q {
		return "", false
	}
	if q == '"' {
		if v, err := strconv.Unquote(s); err == nil {
			return v, true
		}
	}
	return s[1 : len(s)-1], true
}

// splitOperands splits on commas outside quotes and parentheses.
func splitOperands(text string) []string {
	var (
		out   []string
		start int
		depth int
		quote byte
	)
	for i := 0; i < len(text); i++ {
		c := text[i]
		switch {
		case quote != 0:
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '(':
			depth++
		case c == ')':
			depth--
		case c == ',' && depth == 0:
			out = append(out, strings.TrimSpace(text[start:i]))
			start = i + 1
		}
	}
	if last := strings.TrimSpace(text[start:]); last != "" || len(out) > 0 {
		out = append(out, last)
	}
	return out
}

// stripComments drops ";" and "//" comments outside string literals.
func stripComments(line string) string {
	var quote byte
	for i := 0; i < len(line); i++ {
		c := line[i]
		if quote != 0 {
			if c == '\\' && quote == '"' {
				i++
			} else if c == quote {
				quote = 0
			}
			continue
		}
		switch {
		case c == '"' || c == '\'':
			quote = c
		case c == ';':
			return line[:i]
		case c == '/' && i+1 < len(line) && line[i+1] == '/':
			return line[:i]
		}
	}
	return line
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if i == 0 {
			if !isIdentStart(r) {
				return false
			}
			continue
		}
		if !isIdentPart(r) {
			return false
		}
	}
	return true
}
