package bytecode

import (
	"testing"
)

// payloadSamples covers the edges and a spread of the signed 24-bit range.
func payloadSamples() []int32 {
	samples := []int32{0, 1, -1, 2, -2, 127, -128, 255, 256, 65535, -65536, MaxPayload, MinPayload, MaxPayload - 1, MinPayload + 1}
	for v := int32(MinPayload); v <= MaxPayload; v += 9973 {
		samples = append(samples, v)
	}
	return samples
}

func TestDisassembleRoundTripImmediates(t *testing.T) {
	for _, op := range AllOpcodes() {
		if op.Operand() == OperandIntrinsic {
			continue
		}
		for _, v := range payloadSamples() {
			if op.Operand() == OperandNone && v == 0 {
				continue
			}
			in := InstrImm(op, v)
			word, err := in.Pack(nil)
			if err != nil {
				t.Fatalf("Pack(%s) failed: %v", in, err)
			}
			if out := Disassemble(word); out != in {
				t.Fatalf("Disassemble(Pack(%v)) = %v", in, out)
			}
		}
	}
}

func TestDisassembleRoundTripNoOperand(t *testing.T) {
	for _, op := range AllOpcodes() {
		if op.Operand() != OperandNone {
			continue
		}
		in := Instr(op)
		word, err := in.Pack(nil)
		if err != nil {
			t.Fatalf("Pack(%s) failed: %v", in, err)
		}
		if out := Disassemble(word); out != in {
			t.Errorf("Disassemble(Pack(%v)) = %v", in, out)
		}
	}
}

func TestDisassembleRoundTripIntrinsics(t *testing.T) {
	for _, id := range []Intrinsic{IntrinsicNone, IntrinsicPrintInt, IntrinsicPrintBool, IntrinsicExit} {
		in := InstrECall(id)
		word, err := in.Pack(nil)
		if err != nil {
			t.Fatalf("Pack(%s) failed: %v", in, err)
		}
		if out := Disassemble(word); out != in {
			t.Errorf("Disassemble(Pack(%v)) = %v", in, out)
		}
	}
}

func TestPackLayout(t *testing.T) {
	word, err := InstrImm(OpPush, -1).Pack(nil)
	if err != nil {
		t.Fatal(err)
	}
	if word != 0xFFFFFF10 {
		t.Errorf("push -1 = 0x%08X, want 0xFFFFFF10", word)
	}
	if UnpackOpcode(word) != OpPush {
		t.Errorf("opcode = %s, want push", UnpackOpcode(word))
	}
	if UnpackPayload(word) != 0xFFFFFF {
		t.Errorf("payload = 0x%X, want 0xFFFFFF", UnpackPayload(word))
	}
}

func TestPackResolvesLabels(t *testing.T) {
	in := InstrLabel(OpJump, Label{ID: 7})
	word, err := in.Pack(map[int]int{7: 42})
	if err != nil {
		t.Fatal(err)
	}
	out := Disassemble(word)
	if out.Op != OpJump || out.Kind != OperandImm || out.Imm != 42 {
		t.Errorf("Disassemble = %v, want jump 42", out)
	}
}

func TestPackUndefinedLabel(t *testing.T) {
	_, err := InstrLabel(OpCall, Label{ID: 3}).Pack(map[int]int{})
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
}

func TestPackRejectsWidePayload(t *testing.T) {
	for _, v := range []int32{MaxPayload + 1, MinPayload - 1} {
		if _, err := InstrImm(OpPush, v).Pack(nil); err == nil {
			t.Errorf("Pack(push %d) should fail", v)
		}
	}
}

func TestSignExtend(t *testing.T) {
	tests := []struct {
		in   uint32
		want int32
	}{
		{0x000000, 0},
		{0x000001, 1},
		{0x7FFFFF, MaxPayload},
		{0x800000, MinPayload},
		{0xFFFFFF, -1},
		{0xFF000002, 2}, // high byte ignored
	}
	for _, tt := range tests {
		if got := SignExtend(tt.in); got != tt.want {
			t.Errorf("SignExtend(0x%X) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{Instr(OpPop), "pop"},
		{InstrImm(OpLoadRel, -2), "load-rel -2"},
		{InstrECall(IntrinsicPrintInt), "ecall print-int"},
		{InstrLabel(OpCall, Label{ID: 4}), "call L4"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
