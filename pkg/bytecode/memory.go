package bytecode

import (
	"encoding/binary"

	"fortio.org/safecast"
)

// WordSize is the unit of memory access and of stack push/pop.
const WordSize = 4

// Memory is one flat, word-addressed byte buffer holding both the assembled
// code (from address 0 up) and the operand stack (from Size() down).
type Memory struct {
	data  []byte
	top   uint32 // stack pointer, byte address of the last pushed word
	floor uint32 // end of the code area; the stack may not grow below it
}

// NewMemory allocates a zeroed memory of size bytes with top = size.
// size must be a positive multiple of WordSize that fits the 24-bit
// word-address space.
func NewMemory(size int) (*Memory, error) {
	if size <= 0 || size%WordSize != 0 {
		return nil, Fatalf("memory size %d is not a positive multiple of %d", size, WordSize)
	}
	if size/WordSize > MaxPayload {
		return nil, Fatalf("memory size %d exceeds the addressable %d words", size, MaxPayload)
	}
	top, err := safecast.Conv[uint32](size)
	if err != nil {
		return nil, Fatalf("memory size: %v", err)
	}
	return &Memory{data: make([]byte, size), top: top}, nil
}

// Size returns the memory size in bytes.
func (m *Memory) Size() int {
	return len(m.data)
}

// Bytes exposes the raw buffer (for renderers and dumps).
func (m *Memory) Bytes() []byte {
	return m.data
}

// Top returns the current stack pointer.
func (m *Memory) Top() uint32 {
	return m.top
}

// SetTop moves the stack pointer.
func (m *Memory) SetTop(addr uint32) {
	if addr%WordSize != 0 || int(addr) > len(m.data) {
		panic(Fatalf("set top: bad stack address 0x%X", addr))
	}
	m.top = addr
}

// Floor returns the lowest address the stack may occupy.
func (m *Memory) Floor() uint32 {
	return m.floor
}

// SetFloor fences the code area off from the stack.
func (m *Memory) SetFloor(addr uint32) {
	m.floor = addr
}

func (m *Memory) check(addr uint32, what string) {
	if addr%WordSize != 0 {
		panic(Fatalf("%s: unaligned access at 0x%X", what, addr))
	}
	if uint64(addr)+WordSize > uint64(len(m.data)) {
		panic(Fatalf("%s: address 0x%X out of range (size 0x%X)", what, addr, len(m.data)))
	}
}

// Word reads the word at byte address addr.
func (m *Memory) Word(addr uint32) uint32 {
	m.check(addr, "get word")
	return binary.LittleEndian.Uint32(m.data[addr:])
}

// SetWord writes the word at byte address addr.
func (m *Memory) SetWord(addr uint32, word uint32) {
	m.check(addr, "set word")
	binary.LittleEndian.PutUint32(m.data[addr:], word)
}

// PushWord grows the stack by one word.
func (m *Memory) PushWord(word uint32) {
	if m.top < m.floor+WordSize {
		panic(Fatalf("stack overflow: top 0x%X reached code end 0x%X", m.top, m.floor))
	}
	m.top -= WordSize
	m.SetWord(m.top, word)
}

// PopWord shrinks the stack by one word.
func (m *Memory) PopWord() uint32 {
	if int(m.top) >= len(m.data) {
		panic(Fatalf("stack underflow at 0x%X", m.top))
	}
	w := m.Word(m.top)
	m.top += WordSize
	return w
}

// Reserve grows the stack by n zeroed words.
func (m *Memory) Reserve(n uint32) {
	bytes := uint64(n) * WordSize
	if uint64(m.top) < uint64(m.floor)+bytes {
		panic(Fatalf("stack overflow reserving %d words", n))
	}
	m.top -= uint32(bytes)
	clear(m.data[m.top : m.top+uint32(bytes)])
}

// Release drops n words from the stack.
func (m *Memory) Release(n uint32) {
	bytes := uint64(n) * WordSize
	if uint64(m.top)+bytes > uint64(len(m.data)) {
		panic(Fatalf("stack underflow releasing %d words", n))
	}
	m.top += uint32(bytes)
}
