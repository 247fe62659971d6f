package compiler

import (
	"bytes"
	"context"
	"testing"

	"github.com/chazu/pix/pkg/bytecode"
)

// Integration tests: compile, assemble and execute real programs

func run(t *testing.T, src string) (string, *bytecode.VM) {
	t.Helper()
	mem, _, err := Build(src, Options{MemorySize: 4096})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	var out bytes.Buffer
	vm := bytecode.NewVM(mem, bytecode.WithOutput(&out))
	if err := vm.Run(context.Background(), 100, 1_000_000); err != nil {
		t.Fatalf("Run failed: %v\noutput so far: %q", err, out.String())
	}
	return out.String(), vm
}

func expectOutput(t *testing.T, src, want string) *bytecode.VM {
	t.Helper()
	got, vm := run(t, src)
	if got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	return vm
}

func TestIntegrationPrint(t *testing.T) {
	vm := expectOutput(t, `print(1);`, "1\n")
	if !vm.Terminated() || vm.ExitCode() != 0 {
		t.Errorf("terminated=%v exit=%d", vm.Terminated(), vm.ExitCode())
	}
}

func TestIntegrationAdd(t *testing.T) {
	vm := expectOutput(t, `function add(a: int, b: int) -> int { return a + b; } print(add(2, 3));`, "5\n")
	if vm.Memory().Top() != 4096 || vm.Base() != 4096 {
		t.Errorf("stack not balanced: top=%d base=%d", vm.Memory().Top(), vm.Base())
	}
}

func TestIntegrationOverloadedPrint(t *testing.T) {
	expectOutput(t, `print(7); print(true); print(1 > 2);`, "7\ntrue\nfalse\n")
}

func TestIntegrationArithmetic(t *testing.T) {
	expectOutput(t, `print(2 + 3 * 4); print((2 + 3) * 4); print(17 / 5); print(17 % 5); print(-7 + 2);`,
		"14\n20\n3\n2\n-5\n")
}

func TestIntegrationComparisons(t *testing.T) {
	expectOutput(t, `print(1 < 2); print(2 <= 2); print(3 > 4); print(4 >= 5); print(1 == 1); print(1 != 1); print(!(1 == 1));`,
		"true\ntrue\nfalse\nfalse\ntrue\nfalse\nfalse\n")
}

func TestIntegrationFactorial(t *testing.T) {
	src := `
function fact(n: int) -> int {
	if (n <= 1) { return 1; }
	return n * fact(n - 1);
}
print(fact(5));
print(fact(10));`
	expectOutput(t, src, "120\n3628800\n")
}

func TestIntegrationFibonacci(t *testing.T) {
	src := `
function fib(n: int) -> int {
	if (n < 2) return n;
	return fib(n - 1) + fib(n - 2);
}
var i: int = 0;
while (i < 10) {
	print(fib(i));
	i = i + 1;
}`
	expectOutput(t, src, "0\n1\n1\n2\n3\n5\n8\n13\n21\n34\n")
}

func TestIntegrationMutualRecursion(t *testing.T) {
	src := `
function even(n: int) -> bool { if (n == 0) { return true; } return odd(n - 1); }
function odd(n: int) -> bool { if (n == 0) { return false; } return even(n - 1); }
print(even(10));
print(odd(7));
print(even(3));`
	expectOutput(t, src, "true\ntrue\nfalse\n")
}

func TestIntegrationBreakContinue(t *testing.T) {
	src := `
var i: int = 0;
while (true) {
	i = i + 1;
	if (i % 2 == 0) continue;
	if (i > 7) break;
	print(i);
}
print(i);`
	expectOutput(t, src, "1\n3\n5\n7\n9\n")
}

func TestIntegrationNestedLoops(t *testing.T) {
	src := `
var i: int = 0;
while (i < 3) {
	var j: int = 0;
	while (true) {
		if (j == i) break;
		j = j + 1;
	}
	print(j);
	i = i + 1;
}`
	expectOutput(t, src, "0\n1\n2\n")
}

func TestIntegrationGlobalsFromFunctions(t *testing.T) {
	src := `
var counter: int;
function bump(by: int) { counter = counter + by; }
bump(3);
bump(4);
print(counter);`
	expectOutput(t, src, "7\n")
}

func TestIntegrationLocalsAndShadowing(t *testing.T) {
	src := `
function f(x: int) -> int {
	var y: int = x * 2;
	{
		var x: int = 100;
		y = y + x;
	}
	return y + x;
}
print(f(5));`
	expectOutput(t, src, "115\n")
}

func TestIntegrationVoidFunctionAndBareReturn(t *testing.T) {
	src := `
function show(n: int) {
	if (n < 0) { return; }
	print(n);
}
show(-1);
show(4);`
	expectOutput(t, src, "4\n")
}

func TestIntegrationExitCode(t *testing.T) {
	vm := expectOutput(t, `print(1); exit(3); print(2);`, "1\n")
	if vm.ExitCode() != 3 {
		t.Errorf("ExitCode() = %d, want 3", vm.ExitCode())
	}
}

func TestIntegrationManyArguments(t *testing.T) {
	src := `
function pick(a: int, b: int, c: int, d: bool) -> int {
	if (d) return a - b;
	return c;
}
print(pick(10, 4, 99, true));
print(pick(10, 4, 99, false));`
	expectOutput(t, src, "6\n99\n")
}

func TestIntegrationDivisionByZeroIsFatal(t *testing.T) {
	mem, _, err := Build(`var z: int; print(1 / z);`, Options{MemorySize: 1024})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	vm := bytecode.NewVM(mem, bytecode.WithOutput(&bytes.Buffer{}))
	if err := vm.Run(context.Background(), 10, 0); !bytecode.IsFatal(err) {
		t.Fatalf("expected fatal division error, got %v", err)
	}
}

func TestIntegrationDeepRecursionOverflows(t *testing.T) {
	mem, _, err := Build(`function down(n: int) -> int { return down(n + 1); } print(down(0));`, Options{MemorySize: 1024})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	vm := bytecode.NewVM(mem, bytecode.WithOutput(&bytes.Buffer{}))
	if err := vm.Run(context.Background(), 100, 0); !bytecode.IsFatal(err) {
		t.Fatalf("expected fatal stack overflow, got %v", err)
	}
}

func TestIntegrationImageRoundTrip(t *testing.T) {
	res, err := Compile(`print(42);`, Options{MemorySize: 512})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	img, err := res.Image("answer")
	if err != nil {
		t.Fatalf("Image failed: %v", err)
	}
	data, err := img.Marshal()
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	decoded, err := bytecode.UnmarshalImage(data)
	if err != nil {
		t.Fatalf("UnmarshalImage failed: %v", err)
	}
	mem, err := decoded.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	var out bytes.Buffer
	vm := bytecode.NewVM(mem, bytecode.WithOutput(&out))
	if err := vm.Run(context.Background(), 10, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("output = %q", out.String())
	}
}
