// Package asm is the target independent assembly pipeline: declare symbols
// once, sweep address resolution until no new symbol resolves, then emit.
package asm

import (
	"context"
	"fmt"
	"math"

	"emuasm/pkg/env"
	"emuasm/pkg/output"
)

type Config struct {
	// Start is the address the first statement is placed at.
	Start int
	// MaxSweeps caps resolution sweeps. Zero means one more sweep than the
	// number of symbols still pending after the first sweep.
	MaxSweeps int
	// AddressLimit is the size of the target address space (default 64 KiB).
	AddressLimit int
	Logger       *Logger
}

type Assembler struct {
	cfg Config
	log *Logger
}

// Result is a successful compilation.
type Result struct {
	Image   *output.Image
	Symbols []*env.Symbol
	Sweeps  int
}

func New(cfg Config) *Assembler {
	if cfg.AddressLimit <= 0 {
		cfg.AddressLimit = output.DefaultLimit
	}
	return &Assembler{cfg: cfg, log: cfg.Logger}
}

// Compile assembles p with the default configuration.
func Compile(p *Program) (*output.Image, error) {
	return New(Config{}).Compile(p)
}

func (a *Assembler) Compile(p *Program) (*output.Image, error) {
	return a.CompileContext(context.Background(), p)
}

func (a *Assembler) CompileContext(ctx context.Context, p *Program) (*output.Image, error) {
	res, err := a.Assemble(ctx, p)
	if err != nil {
		return nil, err
	}
	return res.Image, nil
}

// Assemble runs the whole pipeline. Nothing is returned on failure, and ctx
// is checked between sweeps.
func (a *Assembler) Assemble(ctx context.Context, p *Program) (*Result, error) {
	root := env.New()
	if err := p.Declare(root); err != nil {
		return nil, err
	}
	a.log.Debug("%s: declared %d symbols", a.name(p), root.Len())

	sweeps, err := a.resolve(ctx, p, root)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	img := output.New(a.cfg.AddressLimit)
	if err := img.SetNextAddress(a.cfg.Start); err != nil {
		return nil, fmt.Errorf("%w: start address: %v", ErrEmit, err)
	}
	if err := p.Emit(root, img); err != nil {
		return nil, err
	}
	a.log.Debug("%s: emitted %d bytes after %d sweeps", a.name(p), img.Len(), sweeps)

	return &Result{Image: img, Symbols: root.Symbols(), Sweeps: sweeps}, nil
}

// resolve sweeps until the pending symbol count stops shrinking. A sweep that
// resolves nothing new is a fixed point: success when nothing is pending,
// rejection otherwise.
func (a *Assembler) resolve(ctx context.Context, p *Program, root *env.Environment) (int, error) {
	limit := a.cfg.MaxSweeps
	prev := math.MaxInt
	for sweep := 1; ; sweep++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if limit > 0 && sweep > limit {
			pending := root.Unresolved()
			return 0, errorf(pending[0].Pos, ErrSweepLimit, "%d sweeps, '%s' still unresolved", limit, pending[0].Name)
		}
		if _, err := p.ResolveAddress(root, a.cfg.Start); err != nil {
			return 0, err
		}

		pending := root.Unresolved()
		a.log.Debug("%s: sweep %d, %d unresolved", a.name(p), sweep, len(pending))
		if len(pending) == 0 {
			return sweep, nil
		}
		if len(pending) >= prev {
			first := pending[0]
			return 0, errorAt(first.Pos, fmt.Errorf("%w '%s'", ErrUnresolvedSymbol, first.Name))
		}
		if limit == 0 {
			limit = sweep + len(pending) + 1
		}
		prev = len(pending)
	}
}

func (a *Assembler) name(p *Program) string {
	if p.Name == "" {
		return "<program>"
	}
	return p.Name
}
