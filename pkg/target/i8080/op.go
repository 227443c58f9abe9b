package i8080

import "fmt"

type operandKind int

const (
	noOperand operandKind = iota
	byteOperand
	wordOperand
	restartOperand
)

// op is one encoded 8080 instruction: an opcode byte and at most one
// immediate operand.
type op struct {
	mnemonic string
	code     byte
	kind     operandKind
}

func (o op) Mnemonic() string { return o.mnemonic }

func (o op) Size() int {
	switch o.kind {
	case byteOperand:
		return 2
	case wordOperand:
		return 3
	}
	return 1
}

func (o op) Encode(args []int, _ int) ([]byte, error) {
	want := 1
	if o.kind == noOperand {
		want = 0
	}
	if len(args) != want {
		return nil, fmt.Errorf("expected %d operand values, got %d", want, len(args))
	}

	switch o.kind {
	case byteOperand:
		v := args[0]
		if v < -0x80 || v > 0xFF {
			return nil, fmt.Errorf("operand %d does not fit in a byte", v)
		}
		return []byte{o.code, byte(v)}, nil
	case wordOperand:
		v := args[0]
		if v < -0x8000 || v > 0xFFFF {
			return nil, fmt.Errorf("operand %d does not fit in a word", v)
		}
		return []byte{o.code, byte(v), byte(v >> 8)}, nil
	case restartOperand:
		n := args[0]
		if n < 0 || n > 7 {
			return nil, fmt.Errorf("RST vector %d out of range 0-7", n)
		}
		return []byte{o.code | byte(n)<<3}, nil
	}
	return []byte{o.code}, nil
}
