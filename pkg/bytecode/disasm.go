package bytecode

import (
	"fmt"
	"strings"
)

// FormatEntries renders generated code: labels flush left with a colon,
// instructions indented two spaces.
func FormatEntries(entries []Entry) string {
	var sb strings.Builder
	for _, e := range entries {
		switch e := e.(type) {
		case Label:
			sb.WriteString(fmt.Sprintf("%s:\n", e))
		case Instruction:
			sb.WriteString(fmt.Sprintf("  %s\n", e))
		}
	}
	return sb.String()
}

// DisassembleMemory lists the first words of an assembled image, one
// instruction per line with its word address and raw encoding.
func DisassembleMemory(mem *Memory, words int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("; pix image, %d words, memory %d bytes\n", words, mem.Size()))
	for i := 0; i < words; i++ {
		w := mem.Word(uint32(i) * WordSize)
		sb.WriteString(fmt.Sprintf("%04X  %08X  %s\n", i, w, Disassemble(w)))
	}
	return sb.String()
}
