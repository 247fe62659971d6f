// Package bytecode provides the pix instruction encoding, the two-pass
// assembler and the stack-based virtual machine that executes an assembled
// memory image.
//
// # Instruction words
//
// Every instruction is one 32-bit word: the opcode in the low byte and a
// 24-bit payload above it. The payload is a signed immediate (frame offsets,
// pushed values, counts), an intrinsic id, or a label reference that the
// assembler replaces with an absolute word address.
//
// # Memory
//
// Code and stack share a single flat byte buffer. Code is written from
// address 0 upwards; the operand stack grows downward from the end of the
// buffer. All accesses are word sized and word aligned.
//
// # Frames
//
// A call pushes the caller's base and the return address and makes the new
// stack top the frame base. Relative to that base, the return address sits at
// word 0, the saved base at word 1, arguments at positive offsets above, and
// locals reserved by OpEnter at negative offsets below.
//
// # Stepping
//
// The VM exposes ExecuteStep and ExecuteQuantum so a caller can interleave
// execution with unrelated work on one goroutine.
package bytecode
