package compiler

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/chazu/pix/pkg/bytecode"
)

var log = commonlog.GetLogger("pix.compiler")

// DefaultMemorySize is the image size used when none is configured: a
// 256x256 byte surface.
const DefaultMemorySize = 256 * 256

// Options configures a compilation.
type Options struct {
	// Intrinsics declared into the root scope. Nil means DefaultIntrinsics.
	Intrinsics []IntrinsicDecl

	// MemorySize is the size in bytes of the image the program will run in.
	// Zero means DefaultMemorySize.
	MemorySize int
}

// WithDefaults fills unset fields with their defaults.
func (o Options) WithDefaults() Options {
	if o.Intrinsics == nil {
		o.Intrinsics = DefaultIntrinsics()
	}
	if o.MemorySize == 0 {
		o.MemorySize = DefaultMemorySize
	}
	return o
}

// Result is a compiled program ready for assembly.
type Result struct {
	Program    *Program
	Entries    []bytecode.Entry
	MemorySize int
}

// Analyze parses, resolves and checks src without generating code.
func Analyze(src string, opts Options) (*Program, error) {
	opts = opts.WithDefaults()

	prog, err := Parse(src)
	if err != nil {
		return nil, err
	}
	if err := Resolve(prog, opts.Intrinsics); err != nil {
		return nil, err
	}
	if err := Check(prog); err != nil {
		return nil, err
	}
	return prog, nil
}

// Compile runs every pass over src. No entries are produced unless all
// passes succeed.
func Compile(src string, opts Options) (*Result, error) {
	opts = opts.WithDefaults()

	prog, err := Analyze(src, opts)
	if err != nil {
		return nil, err
	}
	entries, err := Generate(prog, opts.MemorySize)
	if err != nil {
		return nil, err
	}
	log.Debugf("compiled %d statements into %d entries", len(prog.Stmts), len(entries))
	return &Result{Program: prog, Entries: entries, MemorySize: opts.MemorySize}, nil
}

// Assemble writes the entries into a fresh memory of the configured size.
// It returns the memory and the number of code words.
func (r *Result) Assemble() (*bytecode.Memory, int, error) {
	mem, err := bytecode.NewMemory(r.MemorySize)
	if err != nil {
		return nil, 0, err
	}
	words, err := bytecode.Assemble(r.Entries, mem)
	if err != nil {
		return nil, 0, err
	}
	return mem, words, nil
}

// Image assembles the result and detaches the code as an image.
func (r *Result) Image(name string) (*bytecode.Image, error) {
	mem, words, err := r.Assemble()
	if err != nil {
		return nil, err
	}
	return bytecode.ImageFromMemory(name, mem, words), nil
}

// Build compiles and assembles src.
func Build(src string, opts Options) (*bytecode.Memory, int, error) {
	res, err := Compile(src, opts)
	if err != nil {
		return nil, 0, err
	}
	mem, words, err := res.Assemble()
	if err != nil {
		return nil, 0, fmt.Errorf("assemble: %w", err)
	}
	return mem, words, nil
}
