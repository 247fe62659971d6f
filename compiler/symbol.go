package compiler

import (
	"fmt"

	"github.com/chazu/pix/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// SymbolID is a handle to a symbol in an Arena. The zero value means "not
// resolved".
type SymbolID int

// DefID is a handle to a function definition in an Arena. The zero value
// means "not resolved".
type DefID int

const (
	NoSymbol SymbolID = 0
	NoDef    DefID    = 0
)

// Symbol is a named declaration: *TypeSymbol, *VariableSymbol or
// *FunctionSymbol.
type Symbol interface {
	SymbolName() string
	symbol() // marker method
}

// TypeSymbol names a type.
type TypeSymbol struct {
	Name string
	Type Type
}

func (s *TypeSymbol) SymbolName() string { return s.Name }
func (s *TypeSymbol) symbol()            {}

// VariableSymbol is a parameter, a local or a global. Its word offset is
// assigned once, by the code generator: positive for parameters, negative
// for locals and globals. Globals are addressed absolutely from the end of
// memory, everything else relative to the frame base.
type VariableSymbol struct {
	Name   string
	Pos    Position
	Type   Type
	Global bool

	offset    int32
	hasOffset bool
}

func (s *VariableSymbol) SymbolName() string { return s.Name }
func (s *VariableSymbol) symbol()            {}

// Offset returns the frame offset and whether it has been assigned.
func (s *VariableSymbol) Offset() (int32, bool) {
	return s.offset, s.hasOffset
}

// SetOffset assigns the frame offset. Assigning twice is an internal error.
func (s *VariableSymbol) SetOffset(off int32) {
	if s.hasOffset {
		panic(internalf("offset of %q assigned twice (%d, then %d)", s.Name, s.offset, off))
	}
	s.offset = off
	s.hasOffset = true
}

// FunctionSymbol is the overload set of one name in one scope.
type FunctionSymbol struct {
	Name string
	Defs []DefID
}

func (s *FunctionSymbol) SymbolName() string { return s.Name }
func (s *FunctionSymbol) symbol()            {}

// FunctionDefinition is one overload: either an intrinsic bound to a native
// operation, or a user function bound to its declaration.
type FunctionDefinition struct {
	Name      string
	Type      *FunctionType
	Intrinsic bytecode.Intrinsic // IntrinsicNone for user functions

	Decl   *FunctionDecl
	Params []SymbolID // in declaration order
	Locals []SymbolID // in visitation order
}

// IsIntrinsic reports whether the definition is a native operation.
func (d *FunctionDefinition) IsIntrinsic() bool {
	return d.Intrinsic != bytecode.IntrinsicNone
}

// Signature renders the definition as "name(int, bool) -> int".
func (d *FunctionDefinition) Signature() string {
	return fmt.Sprintf("%s(%s) -> %s", d.Name, typeList(d.Type.Params), d.Type.Result)
}

// ---------------------------------------------------------------------------
// Arena
// ---------------------------------------------------------------------------

// Arena owns every symbol and definition of one program. The AST refers to
// them by handle.
type Arena struct {
	symbols []Symbol
	defs    []*FunctionDefinition
}

// NewArena creates an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// NewSymbol stores s and returns its handle.
func (a *Arena) NewSymbol(s Symbol) SymbolID {
	a.symbols = append(a.symbols, s)
	return SymbolID(len(a.symbols))
}

// NewDef stores d and returns its handle.
func (a *Arena) NewDef(d *FunctionDefinition) DefID {
	a.defs = append(a.defs, d)
	return DefID(len(a.defs))
}

// Symbol returns the symbol for id.
func (a *Arena) Symbol(id SymbolID) Symbol {
	if id <= NoSymbol || int(id) > len(a.symbols) {
		panic(internalf("bad symbol handle %d", id))
	}
	return a.symbols[id-1]
}

// Variable returns the variable symbol for id.
func (a *Arena) Variable(id SymbolID) *VariableSymbol {
	v, ok := a.Symbol(id).(*VariableSymbol)
	if !ok {
		panic(internalf("symbol %d is not a variable", id))
	}
	return v
}

// Def returns the definition for id.
func (a *Arena) Def(id DefID) *FunctionDefinition {
	if id <= NoDef || int(id) > len(a.defs) {
		panic(internalf("bad definition handle %d", id))
	}
	return a.defs[id-1]
}

// Describe renders every symbol named name, for editor hovers: the
// signatures of a function's overloads or "name: type" for variables.
func (a *Arena) Describe(name string) []string {
	var out []string
	for _, s := range a.symbols {
		if s.SymbolName() != name {
			continue
		}
		switch s := s.(type) {
		case *TypeSymbol:
			out = append(out, "type "+s.Name)
		case *VariableSymbol:
			out = append(out, fmt.Sprintf("var %s: %s", s.Name, s.Type))
		case *FunctionSymbol:
			for _, d := range s.Defs {
				out = append(out, "function "+a.Def(d).Signature())
			}
		}
	}
	return out
}

// Declarations returns the source positions where name is declared as a
// variable or a user function, in declaration order.
func (a *Arena) Declarations(name string) []Position {
	var out []Position
	for _, s := range a.symbols {
		if s.SymbolName() != name {
			continue
		}
		switch s := s.(type) {
		case *VariableSymbol:
			out = append(out, s.Pos)
		case *FunctionSymbol:
			for _, d := range s.Defs {
				if def := a.Def(d); def.Decl != nil {
					out = append(out, def.Decl.Pos)
				}
			}
		}
	}
	return out
}
