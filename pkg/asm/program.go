package asm

import (
	"emuasm/pkg/env"
	"emuasm/pkg/output"
)

// Program is one compilation unit as produced by the front end. It is not
// modified by compilation, so one Program may be compiled concurrently.
type Program struct {
	Name       string
	Statements []Statement
}

func (p *Program) Add(s Statement) {
	if s != nil {
		p.Statements = append(p.Statements, s)
	}
}

func (p *Program) Declare(e *env.Environment) error {
	for _, s := range p.Statements {
		if err := s.Declare(e); err != nil {
			return err
		}
	}
	return nil
}

func (p *Program) ResolveAddress(e *env.Environment, addr int) (int, error) {
	for _, s := range p.Statements {
		var err error
		if addr, err = s.ResolveAddress(e, addr); err != nil {
			return 0, err
		}
	}
	return addr, nil
}

func (p *Program) Emit(e *env.Environment, img *output.Image) error {
	for _, s := range p.Statements {
		if err := s.Emit(e, img); err != nil {
			return err
		}
	}
	return nil
}
