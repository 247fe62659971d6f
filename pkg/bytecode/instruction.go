package bytecode

import (
	"fmt"

	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Instruction words: [payload:24][opcode:8]
// ---------------------------------------------------------------------------

const (
	payloadBits = 24
	payloadMask = 1<<payloadBits - 1

	// MinPayload and MaxPayload bound the signed 24-bit payload.
	MinPayload = -(1 << (payloadBits - 1))
	MaxPayload = 1<<(payloadBits-1) - 1
)

// Label is a symbolic jump target. Ids are only meaningful until assembly.
type Label struct {
	ID int
}

func (l Label) String() string {
	return fmt.Sprintf("L%d", l.ID)
}

// Entry is one element of generated code: an Instruction or a Label.
type Entry interface {
	entry()
}

func (Label) entry()       {}
func (Instruction) entry() {}

// Instruction is an opcode plus an optional operand.
type Instruction struct {
	Op        Opcode
	Kind      OperandKind
	Imm       int32     // OperandImm
	Intrinsic Intrinsic // OperandIntrinsic
	Target    Label     // OperandLabel
}

// Instr builds an instruction without operand.
func Instr(op Opcode) Instruction {
	return Instruction{Op: op}
}

// InstrImm builds an instruction with an immediate payload.
func InstrImm(op Opcode, v int32) Instruction {
	return Instruction{Op: op, Kind: OperandImm, Imm: v}
}

// InstrECall builds an ecall of the given intrinsic.
func InstrECall(id Intrinsic) Instruction {
	return Instruction{Op: OpECall, Kind: OperandIntrinsic, Intrinsic: id}
}

// InstrLabel builds an instruction whose payload is resolved at assembly.
func InstrLabel(op Opcode, target Label) Instruction {
	return Instruction{Op: op, Kind: OperandLabel, Target: target}
}

func (i Instruction) String() string {
	switch i.Kind {
	case OperandImm:
		return fmt.Sprintf("%s %d", i.Op, i.Imm)
	case OperandIntrinsic:
		return fmt.Sprintf("%s %s", i.Op, i.Intrinsic)
	case OperandLabel:
		return fmt.Sprintf("%s %s", i.Op, i.Target)
	default:
		return i.Op.String()
	}
}

// FitsPayload reports whether v can be stored in a signed 24-bit payload.
func FitsPayload(v int64) bool {
	return v >= MinPayload && v <= MaxPayload
}

// SignExtend interprets the low 24 bits of v as two's complement.
func SignExtend(v uint32) int32 {
	const mask = 1 << (payloadBits - 1)
	v &= payloadMask
	return int32(v^mask) - mask
}

// Pack encodes the instruction into one word. Label operands are looked up
// in labels (label id -> word index).
func (i Instruction) Pack(labels map[int]int) (uint32, error) {
	var payload int64
	switch i.Kind {
	case OperandNone:
	case OperandImm:
		payload = int64(i.Imm)
	case OperandIntrinsic:
		if !i.Intrinsic.Valid() {
			return 0, Fatalf("unmapped intrinsic: %d", uint32(i.Intrinsic))
		}
		payload = int64(i.Intrinsic)
	case OperandLabel:
		addr, ok := labels[i.Target.ID]
		if !ok {
			return 0, Fatalf("undefined label: %s", i.Target)
		}
		payload = int64(addr)
	default:
		return 0, Fatalf("unmapped operand kind: %d", i.Kind)
	}

	if !FitsPayload(payload) {
		return 0, Fatalf("payload %d of %s does not fit in 24 bits", payload, i.Op)
	}
	p, err := safecast.Conv[int32](payload)
	if err != nil {
		return 0, Fatalf("payload of %s: %v", i.Op, err)
	}
	return uint32(i.Op) | (uint32(p)&payloadMask)<<8, nil
}

// UnpackOpcode extracts the opcode from a word.
func UnpackOpcode(word uint32) Opcode {
	return Opcode(word & 0xFF)
}

// UnpackPayload extracts the raw 24-bit payload from a word.
func UnpackPayload(word uint32) uint32 {
	return (word >> 8) & payloadMask
}

// Disassemble decodes a word. Label operands come back as immediates holding
// the resolved word address.
func Disassemble(word uint32) Instruction {
	op := UnpackOpcode(word)
	data := UnpackPayload(word)

	switch op.Operand() {
	case OperandIntrinsic:
		return InstrECall(Intrinsic(data))
	case OperandNone:
		if data == 0 {
			return Instr(op)
		}
	}
	return InstrImm(op, SignExtend(data))
}
