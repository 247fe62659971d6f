package bytecode

import "fmt"

// Opcode is the low byte of an instruction word.
type Opcode byte

const (
	// ========================================================================
	// Control (0x00-0x0F)
	// ========================================================================

	OpNop       Opcode = 0x00 // No operation
	OpECall     Opcode = 0x01 // Invoke an intrinsic: OpECall <intrinsic>
	OpCall      Opcode = 0x02 // Push base and return address, jump: OpCall <addr>
	OpRet       Opcode = 0x03 // Return from a call, dropping n arguments: OpRet <n>
	OpJump      Opcode = 0x04 // Unconditional jump: OpJump <addr>
	OpJumpIf    Opcode = 0x05 // Pop, jump if non-zero: OpJumpIf <addr>
	OpJumpIfNot Opcode = 0x06 // Pop, jump if zero: OpJumpIfNot <addr>
	OpEnter     Opcode = 0x07 // Reserve n local words: OpEnter <n>

	// ========================================================================
	// Stack and memory (0x10-0x1F)
	// ========================================================================

	OpPush     Opcode = 0x10 // Push immediate: OpPush <value>
	OpPop      Opcode = 0x11 // Discard top of stack
	OpLoadRel  Opcode = 0x12 // Push word at base+4*off: OpLoadRel <off>
	OpStoreRel Opcode = 0x13 // Pop into base+4*off: OpStoreRel <off>
	OpLoadAbs  Opcode = 0x14 // Push word at 4*addr: OpLoadAbs <addr>
	OpStoreAbs Opcode = 0x15 // Pop into 4*addr: OpStoreAbs <addr>

	// ========================================================================
	// Integer arithmetic (0x20-0x2F)
	// ========================================================================

	OpIAdd Opcode = 0x20 // Pop two, push sum
	OpISub Opcode = 0x21 // Pop two, push difference (a - b where b is TOS)
	OpIMul Opcode = 0x22 // Pop two, push product
	OpIDiv Opcode = 0x23 // Pop two, push quotient
	OpIMod Opcode = 0x24 // Pop two, push remainder

	// ========================================================================
	// Comparison (0x30-0x3F)
	// ========================================================================

	OpILt Opcode = 0x30 // Pop two, push 1 if a < b
	OpILe Opcode = 0x31 // Pop two, push 1 if a <= b
	OpIGt Opcode = 0x32 // Pop two, push 1 if a > b
	OpIGe Opcode = 0x33 // Pop two, push 1 if a >= b
	OpEqu Opcode = 0x34 // Pop two, push 1 if equal
	OpNeq Opcode = 0x35 // Pop two, push 1 if not equal
)

// OperandKind describes what an instruction's 24-bit payload means.
type OperandKind uint8

const (
	OperandNone      OperandKind = iota // payload unused
	OperandImm                          // signed immediate or count
	OperandIntrinsic                    // intrinsic id
	OperandLabel                        // label before assembly, word address after
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name      string      // Human-readable name
	StackPop  int         // How many values popped from stack (-1 = variable)
	StackPush int         // How many values pushed to stack
	Operand   OperandKind // Meaning of the payload
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Control
	OpNop:       {"nop", 0, 0, OperandNone},
	OpECall:     {"ecall", -1, -1, OperandIntrinsic},
	OpCall:      {"call", 0, 2, OperandLabel},
	OpRet:       {"ret", -1, 1, OperandImm},
	OpJump:      {"jump", 0, 0, OperandLabel},
	OpJumpIf:    {"jump-if", 1, 0, OperandLabel},
	OpJumpIfNot: {"jump-if-not", 1, 0, OperandLabel},
	OpEnter:     {"enter", 0, -1, OperandImm},

	// Stack and memory
	OpPush:     {"push", 0, 1, OperandImm},
	OpPop:      {"pop", 1, 0, OperandNone},
	OpLoadRel:  {"load-rel", 0, 1, OperandImm},
	OpStoreRel: {"store-rel", 1, 0, OperandImm},
	OpLoadAbs:  {"load-abs", 0, 1, OperandImm},
	OpStoreAbs: {"store-abs", 1, 0, OperandImm},

	// Arithmetic
	OpIAdd: {"iadd", 2, 1, OperandNone},
	OpISub: {"isub", 2, 1, OperandNone},
	OpIMul: {"imul", 2, 1, OperandNone},
	OpIDiv: {"idiv", 2, 1, OperandNone},
	OpIMod: {"imod", 2, 1, OperandNone},

	// Comparison
	OpILt: {"ilt", 2, 1, OperandNone},
	OpILe: {"ile", 2, 1, OperandNone},
	OpIGt: {"igt", 2, 1, OperandNone},
	OpIGe: {"ige", 2, 1, OperandNone},
	OpEqu: {"equ", 2, 1, OperandNone},
	OpNeq: {"neq", 2, 1, OperandNone},
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// Operand returns the payload kind for this opcode.
func (op Opcode) Operand() OperandKind {
	return GetOpcodeInfo(op).Operand
}

// IsJump returns true if this opcode transfers control to an address.
func (op Opcode) IsJump() bool {
	return op == OpCall || (op >= OpJump && op <= OpJumpIfNot)
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}

// ---------------------------------------------------------------------------
// Intrinsics
// ---------------------------------------------------------------------------

// Intrinsic identifies a native operation invoked by OpECall.
type Intrinsic uint32

const (
	IntrinsicNone Intrinsic = iota
	IntrinsicPrintInt
	IntrinsicPrintBool
	IntrinsicExit
)

var intrinsicNames = map[Intrinsic]string{
	IntrinsicNone:      "none",
	IntrinsicPrintInt:  "print-int",
	IntrinsicPrintBool: "print-bool",
	IntrinsicExit:      "exit",
}

// String returns the intrinsic's name. An unmapped id is a broken invariant.
func (i Intrinsic) String() string {
	name, ok := intrinsicNames[i]
	if !ok {
		panic(Fatalf("unmapped intrinsic: %d", uint32(i)))
	}
	return name
}

// Valid reports whether i is a known intrinsic id.
func (i Intrinsic) Valid() bool {
	_, ok := intrinsicNames[i]
	return ok
}
