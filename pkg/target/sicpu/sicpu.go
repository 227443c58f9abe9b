// Package sicpu is the 16-bit SICPU instruction set: one little-endian
// instruction word, followed by an immediate word for LDI, jumps and CALL.
package sicpu

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

const (
	OpHLT  uint16 = 0x00
	OpNOP  uint16 = 0x01
	OpLDI  uint16 = 0x02
	OpMOV  uint16 = 0x03
	OpLD   uint16 = 0x04
	OpST   uint16 = 0x05
	OpADD  uint16 = 0x06
	OpSUB  uint16 = 0x07
	OpAND  uint16 = 0x08
	OpOR   uint16 = 0x09
	OpXOR  uint16 = 0x0A
	OpNOT  uint16 = 0x0B
	OpSHL  uint16 = 0x0C
	OpSHR  uint16 = 0x0D
	OpJMP  uint16 = 0x0E
	OpJZ   uint16 = 0x0F
	OpJNZ  uint16 = 0x10
	OpJN   uint16 = 0x11
	OpPUSH uint16 = 0x12
	OpPOP  uint16 = 0x13
	OpCALL uint16 = 0x14
	OpRET  uint16 = 0x15
	OpEI   uint16 = 0x16
	OpDI   uint16 = 0x17
	OpRETI uint16 = 0x18
	OpWFI  uint16 = 0x19
	OpLDSP uint16 = 0x1A
	OpSTSP uint16 = 0x1B
	OpMUL  uint16 = 0x1C
	OpDIV  uint16 = 0x1D
	OpFILL uint16 = 0x1E
	OpCOPY uint16 = 0x1F
	OpLDB  uint16 = 0x20
	OpSTB  uint16 = 0x21
	OpIDIV uint16 = 0x22
	OpJC   uint16 = 0x23
	OpJNC  uint16 = 0x24
)

var zeroOperandOps = map[string]uint16{
	"HLT":  OpHLT,
	"NOP":  OpNOP,
	"RET":  OpRET,
	"EI":   OpEI,
	"DI":   OpDI,
	"RETI": OpRETI,
	"WFI":  OpWFI,
}

var oneRegisterOps = map[string]uint16{
	"NOT":  OpNOT,
	"PUSH": OpPUSH,
	"POP":  OpPOP,
	"LDSP": OpLDSP,
	"STSP": OpSTSP,
}

var twoRegisterOps = map[string]uint16{
	"MOV":  OpMOV,
	"LD":   OpLD,
	"ST":   OpST,
	"ADD":  OpADD,
	"SUB":  OpSUB,
	"AND":  OpAND,
	"OR":   OpOR,
	"XOR":  OpXOR,
	"MUL":  OpMUL,
	"DIV":  OpDIV,
	"IDIV": OpIDIV,
	"SHL":  OpSHL,
	"SHR":  OpSHR,
	"LDB":  OpLDB,
	"STB":  OpSTB,
}

var threeRegisterOps = map[string]uint16{
	"FILL": OpFILL,
	"COPY": OpCOPY,
}

var immediateOnlyOps = map[string]uint16{
	"JMP":  OpJMP,
	"JZ":   OpJZ,
	"JNZ":  OpJNZ,
	"JN":   OpJN,
	"JC":   OpJC,
	"JNC":  OpJNC,
	"CALL": OpCALL,
}

// EncodeInstruction packs an opcode and up to three register fields.
func EncodeInstruction(opcode, regA, regB, regC uint16) uint16 {
	return (opcode << 10) | ((regA & 0x07) << 7) | ((regB & 0x07) << 4) | ((regC & 0x07) << 1)
}

type Target struct{}

func (Target) Name() string { return "sicpu" }

func (Target) AddressLimit() int { return 0x10000 }

func (Target) Instruction(mnemonic string, operands []string, parse target.ExprParser) (asm.Encoder, []expr.Expr, error) {
	mn := strings.ToUpper(mnemonic)
	ops := splitOperands(operands)

	regOnly := func(table map[string]uint16, n int) (asm.Encoder, []expr.Expr, error) {
		if len(ops) != n {
			return nil, nil, fmt.Errorf("%s expects %d operands", mn, n)
		}
		var regs [3]uint16
		for i := 0; i < n; i++ {
			r, err := parseRegister(ops[i])
			if err != nil {
				return nil, nil, err
			}
			regs[i] = r
		}
		return word{mnemonic: mn, instr: EncodeInstruction(table[mn], regs[0], regs[1], regs[2])}, nil, nil
	}

	if _, ok := zeroOperandOps[mn]; ok {
		return regOnly(zeroOperandOps, 0)
	}
	if _, ok := oneRegisterOps[mn]; ok {
		return regOnly(oneRegisterOps, 1)
	}
	if _, ok := twoRegisterOps[mn]; ok {
		return regOnly(twoRegisterOps, 2)
	}
	if _, ok := threeRegisterOps[mn]; ok {
		return regOnly(threeRegisterOps, 3)
	}

	if mn == "LDI" {
		if len(ops) != 2 {
			return nil, nil, fmt.Errorf("%s expects 2 operands", mn)
		}
		regA, err := parseRegister(ops[0])
		if err != nil {
			return nil, nil, err
		}
		imm, err := parse(ops[1])
		if err != nil {
			return nil, nil, err
		}
		return word{mnemonic: mn, instr: EncodeInstruction(OpLDI, regA, 0, 0), immediate: true}, []expr.Expr{imm}, nil
	}

	if opcode, ok := immediateOnlyOps[mn]; ok {
		if len(ops) != 1 {
			return nil, nil, fmt.Errorf("%s expects 1 operand", mn)
		}
		imm, err := parse(ops[0])
		if err != nil {
			return nil, nil, err
		}
		return word{mnemonic: mn, instr: EncodeInstruction(opcode, 0, 0, 0), immediate: true}, []expr.Expr{imm}, nil
	}

	return nil, nil, fmt.Errorf("%w '%s'", target.ErrUnknownInstruction, mn)
}

// splitOperands accepts the memory operand brackets of "LD R0, [R1]".
func splitOperands(operands []string) []string {
	replacer := strings.NewReplacer("[", " ", "]", " ")
	out := make([]string, 0, len(operands))
	for _, o := range operands {
		if o = strings.TrimSpace(replacer.Replace(o)); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func parseRegister(token string) (uint16, error) {
	name := strings.ToUpper(token)
	if len(name) == 2 && name[0] == 'R' && name[1] >= '0' && name[1] <= '7' {
		return uint16(name[1] - '0'), nil
	}
	return 0, fmt.Errorf("invalid register '%s'", token)
}

type word struct {
	mnemonic  string
	instr     uint16
	immediate bool
}

func (w word) Mnemonic() string { return w.mnemonic }

// Size is 2 bytes, or 4 with an immediate.
func (w word) Size() int {
	if w.immediate {
		return 4
	}
	return 2
}

func (w word) Encode(args []int, _ int) ([]byte, error) {
	out := []byte{byte(w.instr & 0xFF), byte(w.instr >> 8)}
	if !w.immediate {
		if len(args) != 0 {
			return nil, fmt.Errorf("unexpected immediate operand")
		}
		return out, nil
	}
	if len(args) != 1 {
		return nil, fmt.Errorf("expected one immediate operand, got %d", len(args))
	}
	imm := args[0]
	if imm < -0x8000 || imm > 0xFFFF {
		return nil, fmt.Errorf("immediate out of range: %d", imm)
	}
	return append(out, byte(imm), byte(imm>>8)), nil
}
