// Package i8080 is the Intel 8080 instruction set.
package i8080

import (
	"fmt"
	"strings"

	"emuasm/pkg/asm"
	"emuasm/pkg/expr"
	"emuasm/pkg/target"
)

func init() {
	target.Register(Target{})
}

var impliedOps = map[string]byte{
	"NOP":  0x00,
	"HLT":  0x76,
	"RET":  0xC9,
	"XCHG": 0xEB,
	"XTHL": 0xE3,
	"SPHL": 0xF9,
	"PCHL": 0xE9,
	"EI":   0xFB,
	"DI":   0xF3,
	"RLC":  0x07,
	"RRC":  0x0F,
	"RAL":  0x17,
	"RAR":  0x1F,
	"DAA":  0x27,
	"CMA":  0x2F,
	"STC":  0x37,
	"CMC":  0x3F,
	"RNZ":  0xC0,
	"RZ":   0xC8,
	"RNC":  0xD0,
	"RC":   0xD8,
	"RPO":  0xE0,
	"RPE":  0xE8,
	"RP":   0xF0,
	"RM":   0xF8,
}

// register source operand in bits 0-2
var aluRegOps = map[string]byte{
	"ADD": 0x80,
	"ADC": 0x88,
	"SUB": 0x90,
	"SBB": 0x98,
	"ANA": 0xA0,
	"XRA": 0xA8,
	"ORA": 0xB0,
	"CMP": 0xB8,
}

var immediateByteOps = map[string]byte{
	"ADI": 0xC6,
	"ACI": 0xCE,
	"SUI": 0xD6,
	"SBI": 0xDE,
	"ANI": 0xE6,
	"XRI": 0xEE,
	"ORI": 0xF6,
	"CPI": 0xFE,
	"IN":  0xDB,
	"OUT": 0xD3,
}

// register operand in bits 3-5
var incDecOps = map[string]byte{
	"INR": 0x04,
	"DCR": 0x05,
}

var addressOps = map[string]byte{
	"JMP":  0xC3,
	"JNZ":  0xC2,
	"JZ":   0xCA,
	"JNC":  0xD2,
	"JC":   0xDA,
	"JPO":  0xE2,
	"JPE":  0xEA,
	"JP":   0xF2,
	"JM":   0xFA,
	"CALL": 0xCD,
	"CNZ":  0xC4,
	"CZ":   0xCC,
	"CNC":  0xD4,
	"CC":   0xDC,
	"CPO":  0xE4,
	"CPE":  0xEC,
	"CP":   0xF4,
	"CM":   0xFC,
	"LDA":  0x3A,
	"STA":  0x32,
	"LHLD": 0x2A,
	"SHLD": 0x22,
}

// register pair in bits 4-5
var pairOps = map[string]byte{
	"DAD": 0x09,
	"INX": 0x03,
	"DCX": 0x0B,
}

var stackOps = map[string]byte{
	"PUSH": 0xC5,
	"POP":  0xC1,
}

var registers = map[string]byte{
	"B": 0, "C": 1, "D": 2, "E": 3, "H": 4, "L": 5, "M": 6, "A": 7,
}

var pairs = map[string]byte{
	"B": 0, "D": 1, "H": 2, "SP": 3,
}

type Target struct{}

func (Target) Name() string { return "i8080" }

func (Target) AddressLimit() int { return 0x10000 }

func (Target) Instruction(mnemonic string, operands []string, parse target.ExprParser) (asm.Encoder, []expr.Expr, error) {
	mn := strings.ToUpper(mnemonic)
	if enc, err := registerForm(mn, operands); enc != nil || err != nil {
		return enc, nil, err
	}

	var (
		code byte
		kind operandKind
		text string
	)
	switch {
	case inTable(immediateByteOps, mn):
		if err := expect(mn, operands, 1); err != nil {
			return nil, nil, err
		}
		code, kind, text = immediateByteOps[mn], byteOperand, operands[0]
	case inTable(addressOps, mn):
		if err := expect(mn, operands, 1); err != nil {
			return nil, nil, err
		}
		code, kind, text = addressOps[mn], wordOperand, operands[0]
	case mn == "MVI":
		if err := expect(mn, operands, 2); err != nil {
			return nil, nil, err
		}
		r, err := register(operands[0])
		if err != nil {
			return nil, nil, err
		}
		code, kind, text = 0x06|r<<3, byteOperand, operands[1]
	case mn == "LXI":
		if err := expect(mn, operands, 2); err != nil {
			return nil, nil, err
		}
		rp, err := pair(operands[0], "SP")
		if err != nil {
			return nil, nil, err
		}
		code, kind, text = 0x01|rp<<4, wordOperand, operands[1]
	case mn == "RST":
		if err := expect(mn, operands, 1); err != nil {
			return nil, nil, err
		}
		code, kind, text = 0xC7, restartOperand, operands[0]
	default:
		return nil, nil, fmt.Errorf("%w '%s'", target.ErrUnknownInstruction, mn)
	}

	arg, err := parse(text)
	if err != nil {
		return nil, nil, err
	}
	return op{mnemonic: mn, code: code, kind: kind}, []expr.Expr{arg}, nil
}

// registerForm handles the instructions whose operands are registers only.
func registerForm(mn string, operands []string) (asm.Encoder, error) {
	switch {
	case inTable(impliedOps, mn):
		if err := expect(mn, operands, 0); err != nil {
			return nil, err
		}
		return op{mnemonic: mn, code: impliedOps[mn]}, nil
	case mn == "MOV":
		if err := expect(mn, operands, 2); err != nil {
			return nil, err
		}
		dst, err := register(operands[0])
		if err != nil {
			return nil, err
		}
		src, err := register(operands[1])
		if err != nil {
			return nil, err
		}
		if dst == 6 && src == 6 {
			return nil, fmt.Errorf("MOV M,M is not a valid instruction")
		}
		return op{mnemonic: mn, code: 0x40 | dst<<3 | src}, nil
	case inTable(aluRegOps, mn):
		if err := expect(mn, operands, 1); err != nil {
			return nil, err
		}
		r, err := register(operands[0])
		if err != nil {
			return nil, err
		}
		return op{mnemonic: mn, code: aluRegOps[mn] | r}, nil
	case inTable(incDecOps, mn):
		if err := expect(mn, operands, 1); err != nil {
			return nil, err
		}
		r, err := register(operands[0])
		if err != nil {
			return nil, err
		}
		return op{mnemonic: mn, code: incDecOps[mn] | r<<3}, nil
	case inTable(pairOps, mn):
		if err := expect(mn, operands, 1); err != nil {
			return nil, err
		}
		rp, err := pair(operands[0], "SP")
		if err != nil {
			return nil, err
		}
		return op{mnemonic: mn, code: pairOps[mn] | rp<<4}, nil
	case inTable(stackOps, mn):
		if err := expect(mn, operands, 1); err != nil {
			return nil, err
		}
		rp, err := pair(operands[0], "PSW")
		if err != nil {
			return nil, err
		}
		return op{mnemonic: mn, code: stackOps[mn] | rp<<4}, nil
	case mn == "STAX" || mn == "LDAX":
		if err := expect(mn, operands, 1); err != nil {
			return nil, err
		}
		rp, err := pair(operands[0], "SP")
		if err != nil {
			return nil, err
		}
		if rp > 1 {
			return nil, fmt.Errorf("%s takes register pair B or D, got '%s'", mn, operands[0])
		}
		base := byte(0x02)
		if mn == "LDAX" {
			base = 0x0A
		}
		return op{mnemonic: mn, code: base | rp<<4}, nil
	}
	return nil, nil
}

func inTable(table map[string]byte, mn string) bool {
	_, ok := table[mn]
	return ok
}

func expect(mn string, operands []string, n int) error {
	if len(operands) != n {
		return fmt.Errorf("%s expects %d operands, got %d", mn, n, len(operands))
	}
	return nil
}

func register(token string) (byte, error) {
	r, ok := registers[strings.ToUpper(strings.TrimSpace(token))]
	if !ok {
		return 0, fmt.Errorf("invalid register '%s'", token)
	}
	return r, nil
}

// pair parses a register pair; pair3 names the pair encoded as 3 (SP or PSW).
func pair(token, pair3 string) (byte, error) {
	name := strings.ToUpper(strings.TrimSpace(token))
	if name == pair3 {
		return 3, nil
	}
	rp, ok := pairs[name]
	if !ok || rp == 3 {
		return 0, fmt.Errorf("invalid register pair '%s'", token)
	}
	return rp, nil
}
