package compiler

import (
	"strings"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Type is either a *NamedType or a *FunctionType. Types compare by pointer.
type Type interface {
	String() string
	typ() // marker method
}

// NamedType is a nominal type. Each one exists exactly once.
type NamedType struct {
	Name string
}

func (t *NamedType) String() string { return t.Name }
func (t *NamedType) typ()           {}

// The canonical named types. WordType is the machine word: it is never
// declared in source and only appears where the compiler itself produces
// untyped values.
var (
	IntType  = &NamedType{Name: "int"}
	BoolType = &NamedType{Name: "bool"}
	VoidType = &NamedType{Name: "void"}
	WordType = &NamedType{Name: "word"}
)

// BuiltinTypes are the named types declared in every program's root scope.
var BuiltinTypes = []*NamedType{IntType, BoolType, VoidType}

// FunctionType is a parameter list and a result type.
type FunctionType struct {
	Params []Type
	Result Type
}

func (t *FunctionType) String() string {
	return "(" + typeList(t.Params) + ") -> " + t.Result.String()
}
func (t *FunctionType) typ() {}

// Coerces reports whether a value of type from may be used where to is
// expected: the types are identical, or either side is the machine word.
func Coerces(from, to Type) bool {
	return from == to || from == Type(WordType) || to == Type(WordType)
}

// sameTypes reports whether two type lists match element for element.
func sameTypes(a, b []Type) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func typeList(types []Type) string {
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = t.String()
	}
	return strings.Join(names, ", ")
}
