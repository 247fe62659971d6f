package compiler

import (
	"fmt"
	"sort"
)

// ---------------------------------------------------------------------------
// Symbol tables and the scope stack
// ---------------------------------------------------------------------------

// SymbolTable maps names to the symbols declared in one lexical scope.
type SymbolTable struct {
	names map[string]SymbolID
}

// NewSymbolTable creates an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{names: make(map[string]SymbolID)}
}

// Declare binds name to id. A name can be declared once per table.
func (t *SymbolTable) Declare(name string, id SymbolID) error {
	if _, dup := t.names[name]; dup {
		return fmt.Errorf("duplicate declaration of %q", name)
	}
	t.names[name] = id
	return nil
}

// Lookup finds name in this table only.
func (t *SymbolTable) Lookup(name string) (SymbolID, bool) {
	id, ok := t.names[name]
	return id, ok
}

// Names returns the declared names in sorted order.
func (t *SymbolTable) Names() []string {
	out := make([]string, 0, len(t.names))
	for name := range t.names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of declared names.
func (t *SymbolTable) Len() int {
	return len(t.names)
}

// SymbolScope is the stack of visible tables, innermost last.
type SymbolScope struct {
	arena  *Arena
	tables []*SymbolTable
}

// NewSymbolScope creates an empty scope stack over arena.
func NewSymbolScope(arena *Arena) *SymbolScope {
	return &SymbolScope{arena: arena}
}

// Enter pushes t.
func (s *SymbolScope) Enter(t *SymbolTable) {
	if t == nil {
		panic(internalf("entering a nil symbol table"))
	}
	s.tables = append(s.tables, t)
}

// Leave pops t, which must be the innermost table.
func (s *SymbolScope) Leave(t *SymbolTable) {
	if len(s.tables) == 0 || s.tables[len(s.tables)-1] != t {
		panic(internalf("scope mismatch: leaving a table that is not the current scope"))
	}
	s.tables = s.tables[:len(s.tables)-1]
}

// Depth returns the number of entered tables.
func (s *SymbolScope) Depth() int {
	return len(s.tables)
}

// Current returns the innermost table.
func (s *SymbolScope) Current() *SymbolTable {
	if len(s.tables) == 0 {
		panic(internalf("no current scope"))
	}
	return s.tables[len(s.tables)-1]
}

// Global returns the outermost table.
func (s *SymbolScope) Global() *SymbolTable {
	if len(s.tables) == 0 {
		panic(internalf("no global scope"))
	}
	return s.tables[0]
}

// Lookup walks from the innermost table outwards and returns the first
// symbol named name.
func (s *SymbolScope) Lookup(name string) (SymbolID, bool) {
	for i := len(s.tables) - 1; i >= 0; i-- {
		if id, ok := s.tables[i].Lookup(name); ok {
			return id, true
		}
	}
	return NoSymbol, false
}

// Resolve is Lookup with an "unresolved identifier" error at pos.
func (s *SymbolScope) Resolve(pos Position, name string) (SymbolID, error) {
	id, ok := s.Lookup(name)
	if !ok {
		return NoSymbol, errorAt(pos, "unresolved identifier %q", name)
	}
	return id, nil
}

// Overloads collects the definitions of every function named name on the
// stack, innermost first.
func (s *SymbolScope) Overloads(name string) []DefID {
	var defs []DefID
	for i := len(s.tables) - 1; i >= 0; i-- {
		id, ok := s.tables[i].Lookup(name)
		if !ok {
			continue
		}
		if fn, ok := s.arena.Symbol(id).(*FunctionSymbol); ok {
			defs = append(defs, fn.Defs...)
		}
	}
	return defs
}
