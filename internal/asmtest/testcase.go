// Package asmtest extracts assembler test cases from Markdown documents.
//
// A test starts at a heading "Test: name" and holds one input fence (asm,
// asm-8080 or asm-sicpu) followed by one or more assertion fences.
package asmtest

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// InputType represents the type of input code fence
type InputType string

const (
	InputTypeAsm      InputType = "asm"
	InputTypeAsm8080  InputType = "asm-8080"
	InputTypeAsmSICPU InputType = "asm-sicpu"
)

// Target is the registered target name the input is assembled for.
func (t InputType) Target() string {
	if t == InputTypeAsmSICPU {
		return "sicpu"
	}
	return "i8080"
}

// AssertionType represents the type of assertion code fence
type AssertionType string

const (
	AssertionTypeHex          AssertionType = "hex"
	AssertionTypeSymbols      AssertionType = "symbols"
	AssertionTypeCompileError AssertionType = "compile-error"
)

type Assertion struct {
	Type    AssertionType
	Content string
	Line    int
	Bytes   []byte         // decoded hex assertion
	Symbols map[string]int // decoded symbols assertion
}

type TestCase struct {
	Name       string
	Input      string
	InputType  InputType
	Assertions []Assertion
}

// ExtractTestCases parses a Markdown document and extracts all test cases.
func ExtractTestCases(markdownContent string) ([]TestCase, error) {
	md := goldmark.New()
	source := []byte(markdownContent)
	doc := md.Parser().Parse(text.NewReader(source))

	var testCases []TestCase
	var current *TestCase

	err := ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch n := node.(type) {
		case *ast.Heading:
			heading := extractTextFromNode(n, source)
			if !strings.HasPrefix(heading, "Test: ") {
				return ast.WalkContinue, nil
			}
			if current != nil {
				if err := validateTestCase(current); err != nil {
					return ast.WalkStop, err
				}
				testCases = append(testCases, *current)
			}
			current = &TestCase{Name: strings.TrimPrefix(heading, "Test: ")}

		case *ast.FencedCodeBlock:
			language := string(n.Language(source))
			lineNum := getLineNumber(n, source)

			if current == nil {
				if language != "" {
					return ast.WalkStop, fmt.Errorf("line %d: %s fence found outside of test case", lineNum, language)
				}
				return ast.WalkContinue, nil
			}

			content := strings.TrimRight(extractCodeBlockContent(n, source), "\n")
			switch {
			case isInputFence(language):
				if current.Input != "" {
					return ast.WalkStop, fmt.Errorf("line %d: multiple input fences found in test '%s'", lineNum, current.Name)
				}
				current.Input = content
				current.InputType = InputType(language)
			case isAssertionFence(language):
				a, err := parseAssertion(AssertionType(language), content, lineNum)
				if err != nil {
					return ast.WalkStop, fmt.Errorf("test '%s': %w", current.Name, err)
				}
				current.Assertions = append(current.Assertions, a)
			case language != "":
				return ast.WalkStop, fmt.Errorf("line %d: unknown fence language '%s' in test '%s'", lineNum, language, current.Name)
			}
		}
		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking markdown AST: %w", err)
	}

	if current != nil {
		if err := validateTestCase(current); err != nil {
			return nil, err
		}
		testCases = append(testCases, *current)
	}
	return testCases, nil
}

func parseAssertion(typ AssertionType, content string, line int) (Assertion, error) {
	a := Assertion{Type: typ, Content: content, Line: line}
	switch typ {
	case AssertionTypeHex:
		data, err := hex.DecodeString(strings.Join(strings.Fields(content), ""))
		if err != nil {
			return a, fmt.Errorf("line %d: invalid hex assertion: %w", line, err)
		}
		a.Bytes = data
	case AssertionTypeSymbols:
		a.Symbols = make(map[string]int)
		for _, entry := range strings.Split(content, "\n") {
			if strings.TrimSpace(entry) == "" {
				continue
			}
			name, value, ok := strings.Cut(entry, "=")
			if !ok {
				return a, fmt.Errorf("line %d: symbol assertion '%s' is not NAME = value", line, entry)
			}
			v, err := strconv.ParseInt(strings.TrimSpace(value), 0, 64)
			if err != nil {
				return a, fmt.Errorf("line %d: symbol %s: %w", line, strings.TrimSpace(name), err)
			}
			a.Symbols[strings.ToUpper(strings.TrimSpace(name))] = int(v)
		}
	}
	return a, nil
}

// extractTextFromNode extracts plain text content from a markdown node
func extractTextFromNode(node ast.Node, source []byte) string {
	var buf bytes.Buffer
	ast.Walk(node, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if entering {
			if t, ok := n.(*ast.Text); ok {
				buf.Write(t.Segment.Value(source))
			}
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

func extractCodeBlockContent(codeBlock *ast.FencedCodeBlock, source []byte) string {
	var buf bytes.Buffer
	for i := 0; i < codeBlock.Lines().Len(); i++ {
		line := codeBlock.Lines().At(i)
		buf.Write(line.Value(source))
	}
	return buf.String()
}

func isInputFence(language string) bool {
	switch InputType(language) {
	case InputTypeAsm, InputTypeAsm8080, InputTypeAsmSICPU:
		return true
	}
	return false
}

func isAssertionFence(language string) bool {
	switch AssertionType(language) {
	case AssertionTypeHex, AssertionTypeSymbols, AssertionTypeCompileError:
		return true
	}
	return false
}

// validateTestCase ensures a test case has both input and at least one assertion
func validateTestCase(tc *TestCase) error {
	if tc.Input == "" {
		return fmt.Errorf("test '%s' has no input fence", tc.Name)
	}
	if len(tc.Assertions) == 0 {
		return fmt.Errorf("test '%s' has no assertion fences", tc.Name)
	}
	return nil
}

// getLineNumber calculates the line number of a given AST node
func getLineNumber(node ast.Node, source []byte) int {
	if node.Lines().Len() == 0 {
		return 1
	}
	startPos := node.Lines().At(0).Start
	lineNum := 1
	for i := 0; i < startPos && i < len(source); i++ {
		if source[i] == '\n' {
			lineNum++
		}
	}
	return lineNum
}
