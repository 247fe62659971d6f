package bytecode

import (
	"fortio.org/safecast"
)

// ---------------------------------------------------------------------------
// Assembler: two passes over generated entries
// ---------------------------------------------------------------------------

// Assembler resolves labels to word addresses and writes packed words.
type Assembler struct {
	entries []Entry
	labels  map[int]int // label id -> word index
}

// NewAssembler creates an assembler for the given entries.
func NewAssembler(entries []Entry) *Assembler {
	return &Assembler{entries: entries}
}

// Labels returns the label table built by the definition pass.
func (a *Assembler) Labels() map[int]int {
	return a.labels
}

// Assemble runs both passes, writing into mem from address 0. It returns the
// number of words written and fences the code area off from the stack.
func (a *Assembler) Assemble(mem *Memory) (int, error) {
	words, err := a.definitionPass()
	if err != nil {
		return 0, err
	}
	if words*WordSize > mem.Size() {
		return 0, Fatalf("code of %d words does not fit in %d bytes of memory", words, mem.Size())
	}
	if err := a.emissionPass(mem); err != nil {
		return 0, err
	}
	end, err := safecast.Conv[uint32](words * WordSize)
	if err != nil {
		return 0, Fatalf("code size: %v", err)
	}
	mem.SetFloor(end)
	return words, nil
}

// definitionPass counts instruction words and records each label's address.
func (a *Assembler) definitionPass() (int, error) {
	a.labels = make(map[int]int)

	p := 0
	for _, e := range a.entries {
		switch e := e.(type) {
		case Instruction:
			p++
		case Label:
			if _, dup := a.labels[e.ID]; dup {
				return 0, Fatalf("redefined label: %s", e)
			}
			a.labels[e.ID] = p
		}
	}
	return p, nil
}

// emissionPass packs every instruction into its word.
func (a *Assembler) emissionPass(mem *Memory) error {
	var p uint32
	for _, e := range a.entries {
		instr, ok := e.(Instruction)
		if !ok {
			continue
		}
		word, err := instr.Pack(a.labels)
		if err != nil {
			return err
		}
		mem.SetWord(p*WordSize, word)
		p++
	}
	return nil
}

// Assemble is a convenience wrapper around NewAssembler(entries).Assemble(mem).
func Assemble(entries []Entry, mem *Memory) (int, error) {
	return NewAssembler(entries).Assemble(mem)
}
