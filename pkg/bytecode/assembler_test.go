package bytecode

import (
	"testing"
)

func TestAssembleResolvesLabels(t *testing.T) {
	entries := []Entry{
		Label{ID: 1},
		InstrImm(OpPush, 3),
		InstrLabel(OpJump, Label{ID: 2}),
		Instr(OpNop),
		Label{ID: 2},
		Label{ID: 3},
		InstrImm(OpPush, 0),
		InstrECall(IntrinsicExit),
	}
	mem := mustMemory(t, 256)

	a := NewAssembler(entries)
	words, err := a.Assemble(mem)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	if words != 5 {
		t.Errorf("words = %d, want 5", words)
	}

	labels := a.Labels()
	want := map[int]int{1: 0, 2: 3, 3: 3}
	for id, addr := range want {
		if labels[id] != addr {
			t.Errorf("label L%d = %d, want %d", id, labels[id], addr)
		}
	}

	jump := Disassemble(mem.Word(1 * WordSize))
	if jump.Op != OpJump || jump.Imm != 3 {
		t.Errorf("word 1 = %v, want jump 3", jump)
	}
	if mem.Floor() != 5*WordSize {
		t.Errorf("Floor() = %d, want %d", mem.Floor(), 5*WordSize)
	}
}

func TestAssembleRedefinedLabel(t *testing.T) {
	entries := []Entry{Label{ID: 1}, Instr(OpNop), Label{ID: 1}}
	_, err := Assemble(entries, mustMemory(t, 64))
	if !IsFatal(err) {
		t.Fatalf("expected fatal redefined label error, got %v", err)
	}
}

func TestAssembleUndefinedLabel(t *testing.T) {
	entries := []Entry{InstrLabel(OpCall, Label{ID: 9})}
	_, err := Assemble(entries, mustMemory(t, 64))
	if !IsFatal(err) {
		t.Fatalf("expected fatal undefined label error, got %v", err)
	}
}

func TestAssembleCodeTooLarge(t *testing.T) {
	entries := make([]Entry, 5)
	for i := range entries {
		entries[i] = Instr(OpNop)
	}
	if _, err := Assemble(entries, mustMemory(t, 16)); err == nil {
		t.Fatal("expected error for code larger than memory")
	}
}
