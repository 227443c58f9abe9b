package parse

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/japanoise/numparse"

	"emuasm/pkg/expr"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokCurrent
)

type token struct {
	kind  tokenKind
	text  string
	value int
}

var wordOps = map[string]bool{
	"MOD": true, "SHL": true, "SHR": true, "AND": true, "OR": true, "XOR": true,
	"NOT": true, "HIGH": true, "LOW": true,
}

func tokenize(text string) ([]token, error) {
	var toks []token
	rs := []rune(text)
	for i := 0; i < len(rs); {
		r := rs[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "("})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")"})
			i++
		case r == '$':
			toks = append(toks, token{kind: tokCurrent, text: "$"})
			i++
		case r == '\'':
			end := i + 1
			for end < len(rs) && rs[end] != '\'' {
				end++
			}
			if end >= len(rs) {
				return nil, fmt.Errorf("unterminated character literal")
			}
			chars := rs[i+1 : end]
			if len(chars) == 0 || len(chars) > 2 {
				return nil, fmt.Errorf("character literal must hold one or two characters")
			}
			v := 0
			for _, c := range chars {
				v = v<<8 | int(c&0xFF)
			}
			toks = append(toks, token{kind: tokNumber, text: string(rs[i : end+1]), value: v})
			i = end + 1
		case unicode.IsDigit(r):
			end := i
			for end < len(rs) && (unicode.IsLetter(rs[end]) || unicode.IsDigit(rs[end])) {
				end++
			}
			word := string(rs[i:end])
			v, err := parseNumber(word)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{kind: tokNumber, text: word, value: v})
			i = end
		case isIdentStart(r):
			end := i
			for end < len(rs) && isIdentPart(rs[end]) {
				end++
			}
			word := string(rs[i:end])
			if wordOps[strings.ToUpper(word)] {
				toks = append(toks, token{kind: tokOp, text: strings.ToUpper(word)})
			} else {
				toks = append(toks, token{kind: tokIdent, text: word})
			}
			i = end
		default:
			if i+1 < len(rs) {
				two := string(rs[i : i+2])
				if two == "<<" || two == ">>" {
					toks = append(toks, token{kind: tokOp, text: two})
					i += 2
					continue
				}
			}
			if strings.ContainsRune("+-*/%&|^~", r) {
				toks = append(toks, token{kind: tokOp, text: string(r)})
				i++
				continue
			}
			return nil, fmt.Errorf("unexpected character '%c'", r)
		}
	}
	return append(toks, token{kind: tokEOF}), nil
}

// parseNumber accepts decimal, the 0x, 0o and 0b prefixes, and the h, b, o, q
// and d suffixes of 8080 assemblers.
func parseNumber(word string) (int, error) {
	w := strings.ToUpper(word)
	if prefixed(w) {
		v, err := numparse.SNumParse(strings.ToLower(w[:2]) + w[2:])
		if err != nil {
			return 0, fmt.Errorf("invalid number '%s'", word)
		}
		return int(v), nil
	}

	// numparse reads a leading zero as octal, so suffixed and plain forms stay here
	base := 10
	digits := w
	switch {
	case strings.HasSuffix(w, "H"):
		base, digits = 16, w[:len(w)-1]
	case strings.HasSuffix(w, "B"):
		base, digits = 2, w[:len(w)-1]
	case strings.HasSuffix(w, "O") || strings.HasSuffix(w, "Q"):
		base, digits = 8, w[:len(w)-1]
	case strings.HasSuffix(w, "D"):
		digits = w[:len(w)-1]
	}
	v, err := strconv.ParseInt(digits, base, 64)
	if err != nil || digits == "" {
		return 0, fmt.Errorf("invalid number '%s'", word)
	}
	return int(v), nil
}

// prefixed reports a 0x, 0o or 0b literal. A trailing H wins over the prefix,
// so 0BH is the hex byte 0B.
func prefixed(w string) bool {
	if len(w) < 3 || w[0] != '0' || strings.HasSuffix(w, "H") {
		return false
	}
	switch w[1] {
	case 'X', 'O':
		return true
	case 'B':
		return strings.Trim(w[2:], "01") == ""
	}
	return false
}

func isIdentStart(r rune) bool {
	return unicode.IsLetter(r) || r == '_' || r == '?' || r == '@'
}

func isIdentPart(r rune) bool {
	return isIdentStart(r) || unicode.IsDigit(r)
}

type exprParser struct {
	toks []token
	pos  int
}

// ParseExpr parses one operand expression.
func ParseExpr(text string) (expr.Expr, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &exprParser{toks: toks}
	if p.peek().kind == tokEOF {
		return nil, fmt.Errorf("missing expression")
	}
	e, err := p.binary(0)
	if err != nil {
		return nil, err
	}
	if t := p.peek(); t.kind != tokEOF {
		return nil, fmt.Errorf("unexpected '%s' in expression '%s'", t.text, strings.TrimSpace(text))
	}
	return e, nil
}

func (p *exprParser) peek() token { return p.toks[p.pos] }

func (p *exprParser) next() token {
	t := p.toks[p.pos]
	if t.kind != tokEOF {
		p.pos++
	}
	return t
}

// binary precedence levels, loosest first
var levels = []map[string]expr.BinaryOp{
	{"OR": expr.Or, "|": expr.Or},
	{"XOR": expr.Xor, "^": expr.Xor},
	{"AND": expr.And, "&": expr.And},
	{"SHL": expr.Shl, "<<": expr.Shl, "SHR": expr.Shr, ">>": expr.Shr},
	{"+": expr.Add, "-": expr.Sub},
	{"*": expr.Mul, "/": expr.Div, "MOD": expr.Mod, "%": expr.Mod},
}

func (p *exprParser) binary(level int) (expr.Expr, error) {
	if level == len(levels) {
		return p.unary()
	}
	left, err := p.binary(level + 1)
	if err != nil {
		return nil, err
	}
	for {
		t := p.peek()
		op, ok := levels[level][t.text]
		if t.kind != tokOp || !ok {
			return left, nil
		}
		p.next()
		right, err := p.binary(level + 1)
		if err != nil {
			return nil, err
		}
		left = expr.Binary{Op: op, X: left, Y: right}
	}
}

var unaryOps = map[string]expr.UnaryOp{
	"-": expr.Neg, "+": expr.Plus, "NOT": expr.Not, "~": expr.Not, "HIGH": expr.High, "LOW": expr.Low,
}

func (p *exprParser) unary() (expr.Expr, error) {
	t := p.peek()
	if op, ok := unaryOps[t.text]; ok && t.kind == tokOp {
		p.next()
		x, err := p.unary()
		if err != nil {
			return nil, err
		}
		return expr.Unary{Op: op, X: x}, nil
	}
	return p.primary()
}

func (p *exprParser) primary() (expr.Expr, error) {
	t := p.next()
	switch t.kind {
	case tokNumber:
		return expr.Literal{Value: t.value}, nil
	case tokIdent:
		return expr.Ref(t.text), nil
	case tokCurrent:
		return expr.Current{}, nil
	case tokLParen:
		e, err := p.binary(0)
		if err != nil {
			return nil, err
		}
		if p.next().kind != tokRParen {
			return nil, fmt.Errorf("missing ')'")
		}
		return e, nil
	case tokEOF:
		return nil, fmt.Errorf("unexpected end of expression")
	}
	return nil, fmt.Errorf("unexpected '%s'", t.text)
}
