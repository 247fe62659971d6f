package compiler

import (
	"strings"
	"testing"

	"github.com/chazu/pix/pkg/bytecode"
)

func mustResolve(t *testing.T, src string) *Program {
	t.Helper()
	prog := mustParse(t, src)
	if err := Resolve(prog, DefaultIntrinsics()); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	return prog
}

func TestResolveDeclaresBuiltins(t *testing.T) {
	prog := mustResolve(t, ``)

	for _, name := range []string{"int", "bool", "void"} {
		id, ok := prog.Table.Lookup(name)
		if !ok {
			t.Fatalf("builtin type %s not declared", name)
		}
		if _, isType := prog.Arena.Symbol(id).(*TypeSymbol); !isType {
			t.Errorf("%s is a %T, want *TypeSymbol", name, prog.Arena.Symbol(id))
		}
	}
	if _, ok := prog.Table.Lookup("word"); ok {
		t.Error("word must not be declared")
	}

	id, _ := prog.Table.Lookup("print")
	fs, ok := prog.Arena.Symbol(id).(*FunctionSymbol)
	if !ok || len(fs.Defs) != 2 {
		t.Fatalf("print = %#v, want a function with 2 overloads", prog.Arena.Symbol(id))
	}
	if got := prog.Arena.Def(fs.Defs[1]).Intrinsic; got != bytecode.IntrinsicPrintBool {
		t.Errorf("print overload 1 intrinsic = %s, want print-bool", got)
	}
}

func TestResolveFunction(t *testing.T) {
	prog := mustResolve(t, `
function f(a: int, b: bool) -> int {
	var x: int;
	{ var y: bool; }
	while (b) { var z: int; }
	return a;
}`)

	fn := prog.Functions()[0]
	if fn.Def == NoDef {
		t.Fatal("function definition not attached")
	}
	def := prog.Arena.Def(fn.Def)
	if def.Decl != fn {
		t.Error("definition not bound to its declaration")
	}
	if got := def.Type.String(); got != "(int, bool) -> int" {
		t.Errorf("type = %s", got)
	}
	if len(def.Params) != 2 {
		t.Fatalf("params = %d, want 2", len(def.Params))
	}
	if fn.Params[1].Symbol != def.Params[1] {
		t.Error("param symbol not recorded on the AST")
	}

	var locals []string
	for _, id := range def.Locals {
		locals = append(locals, prog.Arena.Variable(id).Name)
	}
	if strings.Join(locals, ",") != "x,y,z" {
		t.Errorf("locals = %v, want x,y,z in visitation order", locals)
	}
	if _, ok := fn.Table.Lookup("y"); ok {
		t.Error("block local y leaked into the function table")
	}
}

func TestResolveGlobals(t *testing.T) {
	prog := mustResolve(t, `var a: int; var b: bool = true; print(a);`)
	if len(prog.Globals) != 2 {
		t.Fatalf("globals = %d, want 2", len(prog.Globals))
	}
	for _, id := range prog.Globals {
		if !prog.Arena.Variable(id).Global {
			t.Errorf("%s not marked global", prog.Arena.Variable(id).Name)
		}
	}
}

func TestResolveOverloads(t *testing.T) {
	prog := mustResolve(t, `
function f(a: int) {}
function f(a: bool) {}
function f(a: int, b: int) {}`)

	id, _ := prog.Table.Lookup("f")
	fs := prog.Arena.Symbol(id).(*FunctionSymbol)
	if len(fs.Defs) != 3 {
		t.Errorf("f has %d overloads, want 3", len(fs.Defs))
	}
}

func TestResolveNestedShadowing(t *testing.T) {
	mustResolve(t, `var x: int; { var x: bool; { var x: int; } }`)
}

func TestResolveErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"duplicate variable", `var x: int; var x: bool;`, `duplicate declaration of "x"`},
		{"duplicate param", `function f(a: int, a: int) {}`, `duplicate declaration of "a"`},
		{"local redeclares param", `function f(a: int) { var a: int; }`, `duplicate declaration of "a"`},
		{"duplicate overload", `function f(a: int) {} function f(b: int) {}`, "duplicate declaration of f(int)"},
		{"overload of intrinsic", `function print(x: int) {}`, "duplicate declaration of print(int)"},
		{"function over variable", `var f: int; function f() {}`, `duplicate declaration of "f"`},
		{"variable over function", `function f() {} var f: int;`, `duplicate declaration of "f"`},
		{"shadow type", `var int: int;`, `"int" shadows a type name`},
		{"shadow type in block", `{ var bool: int; }`, `"bool" shadows a type name`},
		{"shadow type with function", `function void() {}`, `"void" shadows a type name`},
		{"unknown type", `var x: float;`, `unresolved identifier "float"`},
		{"not a type", `var x: int; var y: x;`, `"x" is not a type`},
		{"function is not a type", `var y: print;`, `"print" is not a type`},
		{"void variable", `var x: void;`, `cannot have type void`},
		{"void param", `function f(a: void) {}`, `cannot have type void`},
		{"word is internal", `var x: word;`, `unresolved identifier "word"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog := mustParse(t, tt.src)
			err := Resolve(prog, DefaultIntrinsics())
			if err == nil {
				t.Fatalf("Resolve(%q) should fail", tt.src)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want %q", err, tt.want)
			}
		})
	}
}

func TestArenaDescribeAndDeclarations(t *testing.T) {
	prog := mustResolve(t, "var x: int = 1;\nfunction f(a: int) {}\nfunction f(a: bool) {}\n")

	if got := prog.Arena.Describe("x"); len(got) != 1 || got[0] != "var x: int" {
		t.Errorf("Describe(x) = %v", got)
	}
	if got := prog.Arena.Describe("int"); len(got) != 1 || got[0] != "type int" {
		t.Errorf("Describe(int) = %v", got)
	}
	got := strings.Join(prog.Arena.Describe("f"), "\n")
	if got != "function f(int) -> void\nfunction f(bool) -> void" {
		t.Errorf("Describe(f) = %q", got)
	}

	decls := prog.Arena.Declarations("f")
	if len(decls) != 2 || decls[0].Line != 2 || decls[1].Line != 3 || decls[0].Column != 1 {
		t.Errorf("Declarations(f) = %v", decls)
	}
	if decls := prog.Arena.Declarations("x"); len(decls) != 1 || decls[0].Line != 1 {
		t.Errorf("Declarations(x) = %v", decls)
	}
	if decls := prog.Arena.Declarations("print"); len(decls) != 0 {
		t.Errorf("intrinsics have no source declaration, got %v", decls)
	}
}
