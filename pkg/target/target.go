// Package target describes the instruction sets the pipeline can assemble
// for. A target turns one mnemonic and its raw operand text into an encoder
// and the operand expressions the encoder consumes.
package target

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"emuasm/pkg/asm"
	"emuasm/pkg/expr"
)

// ErrUnknownInstruction is returned by Instruction for mnemonics the target
// doesn't define, so the caller can treat the line as a macro call.
var ErrUnknownInstruction = errors.New("unknown instruction")

// ExprParser parses operand text into an expression.
type ExprParser func(text string) (expr.Expr, error)

type Target interface {
	Name() string
	AddressLimit() int
	Instruction(mnemonic string, operands []string, parse ExprParser) (asm.Encoder, []expr.Expr, error)
}

var (
	mu      sync.RWMutex
	targets = make(map[string]Target)
)

// Register makes t available by name. Registering a name twice panics.
func Register(t Target) {
	mu.Lock()
	defer mu.Unlock()
	name := strings.ToLower(t.Name())
	if _, dup := targets[name]; dup {
		panic("target: Register called twice for " + name)
	}
	targets[name] = t
}

func Lookup(name string) (Target, bool) {
	mu.RLock()
	defer mu.RUnlock()
	t, ok := targets[strings.ToLower(name)]
	return t, ok
}

func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(targets))
	for name := range targets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
