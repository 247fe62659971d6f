package bytecode

import (
	"strings"
	"testing"
)

func TestAllOpcodesHaveMetadata(t *testing.T) {
	for _, op := range AllOpcodes() {
		info := GetOpcodeInfo(op)
		if info.Name == "" || strings.HasPrefix(info.Name, "UNKNOWN") {
			t.Errorf("Opcode 0x%02X has no metadata", byte(op))
		}
	}
}

func TestOpcodeCount(t *testing.T) {
	if got := OpcodeCount(); got != 25 {
		t.Errorf("OpcodeCount() = %d, want 25", got)
	}
}

func TestOpcodeString(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpNop, "nop"},
		{OpECall, "ecall"},
		{OpCall, "call"},
		{OpRet, "ret"},
		{OpJumpIfNot, "jump-if-not"},
		{OpLoadRel, "load-rel"},
		{OpStoreAbs, "store-abs"},
		{OpEnter, "enter"},
		{OpIMod, "imod"},
		{OpNeq, "neq"},
	}

	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestUnknownOpcodeString(t *testing.T) {
	op := Opcode(0xEE)
	if got := op.String(); !strings.HasPrefix(got, "UNKNOWN") {
		t.Errorf("Unknown opcode should return UNKNOWN, got %q", got)
	}
	if op.Valid() {
		t.Error("0xEE should not be valid")
	}
}

func TestOpcodeOperand(t *testing.T) {
	tests := []struct {
		op   Opcode
		want OperandKind
	}{
		{OpNop, OperandNone},
		{OpECall, OperandIntrinsic},
		{OpCall, OperandLabel},
		{OpJumpIf, OperandLabel},
		{OpRet, OperandImm},
		{OpPush, OperandImm},
		{OpLoadRel, OperandImm},
		{OpIAdd, OperandNone},
	}

	for _, tt := range tests {
		if got := tt.op.Operand(); got != tt.want {
			t.Errorf("%s.Operand() = %d, want %d", tt.op, got, tt.want)
		}
	}
}

func TestIsJump(t *testing.T) {
	for _, op := range []Opcode{OpCall, OpJump, OpJumpIf, OpJumpIfNot} {
		if !op.IsJump() {
			t.Errorf("%s.IsJump() = false", op)
		}
	}
	for _, op := range []Opcode{OpRet, OpPush, OpEnter, OpECall} {
		if op.IsJump() {
			t.Errorf("%s.IsJump() = true", op)
		}
	}
}

func TestIntrinsicString(t *testing.T) {
	if got := IntrinsicPrintInt.String(); got != "print-int" {
		t.Errorf("IntrinsicPrintInt.String() = %q", got)
	}
	if got := IntrinsicExit.String(); got != "exit" {
		t.Errorf("IntrinsicExit.String() = %q", got)
	}
}

func TestUnmappedIntrinsicIsFatal(t *testing.T) {
	defer func() {
		r := recover()
		if _, ok := r.(*FatalError); !ok {
			t.Fatalf("expected *FatalError panic, got %v", r)
		}
	}()
	_ = Intrinsic(99).String()
}
