package hash

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"

	"github.com/chazu/pix/compiler"
)

// HashProgram computes the SHA-256 fingerprint of a checked program for an
// image of memorySize bytes.
//
// The hash is computed over a deterministic serialization of the program
// with variables replaced by their slots and user functions by their
// declaration order. Two sources that differ only in layout, comments or
// variable names produce the same hash. The memory size is included because
// global addresses depend on it.
func HashProgram(prog *compiler.Program, memorySize int) [32]byte {
	data := Serialize(prog)
	data = binary.BigEndian.AppendUint64(data, uint64(memorySize))
	return sha256.Sum256(data)
}

// Key renders a fingerprint as lowercase hex.
func Key(sum [32]byte) string {
	return hex.EncodeToString(sum[:])
}
