package compiler

import (
	"strconv"
	"strings"
	"testing"

	"github.com/chazu/pix/pkg/bytecode"
)

func mustCompile(t *testing.T, src string) *Result {
	t.Helper()
	res, err := Compile(src, Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	return res
}

func listing(res *Result) string {
	return bytecode.FormatEntries(res.Entries)
}

func TestCodegenPrintLiteral(t *testing.T) {
	res := mustCompile(t, `print(1);`)
	want := `L0:
  push 1
  ecall print-int
  pop
  push 0
  ecall exit
`
	if got := listing(res); got != want {
		t.Errorf("listing =\n%s\nwant\n%s", got, want)
	}
}

func TestCodegenFunctionCall(t *testing.T) {
	res := mustCompile(t, `function add(a: int, b: int) -> int { return a + b; } print(add(2, 3));`)
	want := `L0:
  push 2
  push 3
  call L1
  ecall print-int
  pop
  push 0
  ecall exit
L1:
  load-rel 3
  load-rel 2
  iadd
  ret 2
  push 0
  ret 2
`
	if got := listing(res); got != want {
		t.Errorf("listing =\n%s\nwant\n%s", got, want)
	}

	def := res.Program.Arena.Def(res.Program.Functions()[0].Def)
	a, _ := res.Program.Arena.Variable(def.Params[0]).Offset()
	b, _ := res.Program.Arena.Variable(def.Params[1]).Offset()
	if a <= 0 || b <= 0 || a == b {
		t.Errorf("param offsets a=%d b=%d, want positive and distinct", a, b)
	}
}

func TestCodegenLocalsAndGlobals(t *testing.T) {
	res := mustCompile(t, `
var g: int = 7;
function f(p: int) -> int {
	var x: int = p;
	{ var y: int = g; x = x + y; }
	return x;
}
print(f(1));`)

	words := DefaultMemorySize / bytecode.WordSize
	arena := res.Program.Arena

	off, ok := arena.Variable(res.Program.Globals[0]).Offset()
	if !ok || off != -1 {
		t.Errorf("global offset = %d, %v; want -1", off, ok)
	}

	def := arena.Def(res.Program.Functions()[0].Def)
	for j, id := range def.Locals {
		off, _ := arena.Variable(id).Offset()
		if off != int32(-(j + 1)) {
			t.Errorf("local %d offset = %d, want %d", j, off, -(j + 1))
		}
	}

	got := listing(res)
	for _, line := range []string{
		"  enter 1\n",
		"  store-abs " + strconv.Itoa(words-1) + "\n",
		"  load-abs " + strconv.Itoa(words-1) + "\n",
		"  enter 2\n",
		"  store-rel -1\n",
		"  load-rel -2\n",
	} {
		if !strings.Contains(got, line) {
			t.Errorf("listing missing %q:\n%s", line, got)
		}
	}
}

func TestCodegenIfElse(t *testing.T) {
	res := mustCompile(t, `if (1 < 2) print(1); else print(2);`)
	want := `L0:
  push 1
  push 2
  ilt
  jump-if-not L1
  push 1
  ecall print-int
  pop
  jump L2
L1:
  push 2
  ecall print-int
  pop
L2:
  push 0
  ecall exit
`
	if got := listing(res); got != want {
		t.Errorf("listing =\n%s\nwant\n%s", got, want)
	}
}

func TestCodegenWhileBreakContinue(t *testing.T) {
	res := mustCompile(t, `while (true) { if (false) continue; break; }`)
	want := `L0:
L1:
  push 1
  jump-if-not L2
  push 0
  jump-if-not L3
  jump L1
L3:
L4:
  jump L2
  jump L1
L2:
  push 0
  ecall exit
`
	if got := listing(res); got != want {
		t.Errorf("listing =\n%s\nwant\n%s", got, want)
	}
}

func TestCodegenUnary(t *testing.T) {
	res := mustCompile(t, `print(-5); print(!true);`)
	got := listing(res)
	for _, seq := range []string{
		"  push 0\n  push 5\n  isub\n",
		"  push 1\n  push 0\n  equ\n",
	} {
		if !strings.Contains(got, seq) {
			t.Errorf("listing missing %q:\n%s", seq, got)
		}
	}
}

func TestCodegenLoopControlOutsideLoop(t *testing.T) {
	tests := []struct {
		src  string
		want string
		line int
	}{
		{"print(1);\nbreak;", "no loop to break from", 2},
		{"continue;", "no loop to continue", 1},
		{"function f() { break; }\nf();", "no loop to break from", 1},
	}

	for _, tt := range tests {
		_, err := Compile(tt.src, Options{})
		perr, ok := AsError(err)
		if !ok {
			t.Errorf("Compile(%q) = %v, want positioned error", tt.src, err)
			continue
		}
		if !strings.Contains(perr.Msg, tt.want) || perr.Pos.Line != tt.line {
			t.Errorf("Compile(%q) = %v, want %q on line %d", tt.src, err, tt.want, tt.line)
		}
	}
}

func TestCodegenUncalledFunctionIsNotGenerated(t *testing.T) {
	res := mustCompile(t, `function unused() { print(99); } print(1);`)
	if strings.Contains(listing(res), "push 99") {
		t.Error("uncalled function should not be generated")
	}
}

func TestCodegenMutualRecursionCompiledOnce(t *testing.T) {
	src := `
function even(n: int) -> bool { if (n == 0) { return true; } return odd(n - 1); }
function odd(n: int) -> bool { if (n == 0) { return false; } return even(n - 1); }
print(odd(3));
print(even(10));
print(even(7));`

	prog, err := Analyze(src, Options{})
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	g := NewGenerator(prog.Arena, DefaultMemorySize)
	entries, err := g.Generate(prog)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if len(g.labels) != 2 {
		t.Fatalf("generated %d functions, want 2", len(g.labels))
	}
	for id, label := range g.labels {
		count := 0
		for _, e := range entries {
			if l, ok := e.(bytecode.Label); ok && l == label {
				count++
			}
		}
		if count != 1 {
			t.Errorf("%s emitted %d times, want once", prog.Arena.Def(id).Name, count)
		}
	}

	mem, err := bytecode.NewMemory(DefaultMemorySize)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := bytecode.Assemble(entries, mem); err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
}

func TestCodegenLiteralOutOfRange(t *testing.T) {
	_, err := Compile(`print(8388608);`, Options{})
	if err == nil || !strings.Contains(err.Error(), "does not fit in 24 bits") {
		t.Fatalf("expected literal range error, got %v", err)
	}

	if _, err := Compile(`print(8388607);`, Options{}); err != nil {
		t.Errorf("largest literal rejected: %v", err)
	}
}

func TestCodegenBadMemorySize(t *testing.T) {
	if _, err := Compile(`print(1);`, Options{MemorySize: 6}); err == nil {
		t.Fatal("expected error for a memory size that is not word aligned")
	}
}

func TestCodegenLabelsAreFresh(t *testing.T) {
	res := mustCompile(t, `
var i: int;
while (i < 2) { if (i == 0) print(i); i = i + 1; }
while (i > 0) { i = i - 1; }`)

	seen := make(map[int]bool)
	for _, e := range res.Entries {
		if l, ok := e.(bytecode.Label); ok {
			if seen[l.ID] {
				t.Errorf("label %s defined twice", l)
			}
			seen[l.ID] = true
		}
	}
}
