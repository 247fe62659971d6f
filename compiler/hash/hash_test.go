package hash

import (
	"testing"

	"github.com/chazu/pix/compiler"
)

func analyze(t *testing.T, src string) *compiler.Program {
	t.Helper()
	prog, err := compiler.Analyze(src, compiler.Options{})
	if err != nil {
		t.Fatalf("Analyze(%q) failed: %v", src, err)
	}
	return prog
}

func hashOf(t *testing.T, src string) string {
	t.Helper()
	return Key(HashProgram(analyze(t, src), 4096))
}

func TestHashIgnoresNamesAndLayout(t *testing.T) {
	a := `function add(a: int, b: int) -> int { return a + b; }
var total: int = add(2, 3);
print(total);`
	b := `# same program, different names
function plus(x: int, y: int) -> int {
	return x + y;
}
var sum: int = plus(2,3);   print(sum);`

	if hashOf(t, a) != hashOf(t, b) {
		t.Error("renamed, reformatted program should hash the same")
	}
}

func TestHashDistinguishesPrograms(t *testing.T) {
	base := hashOf(t, `print(1);`)
	for _, src := range []string{
		`print(2);`,
		`print(true);`,
		`print(-1);`,
		`print(1); print(1);`,
		`var x: int = 1; print(x);`,
		`if (true) print(1);`,
		`while (false) print(1);`,
	} {
		if hashOf(t, src) == base {
			t.Errorf("%q hashes like print(1);", src)
		}
	}
}

func TestHashDistinguishesOperators(t *testing.T) {
	seen := make(map[string]string)
	for _, src := range []string{
		`print(1 + 2);`, `print(1 - 2);`, `print(1 * 2);`, `print(1 / 2);`, `print(1 % 2);`,
		`print(1 < 2);`, `print(1 <= 2);`, `print(1 > 2);`, `print(1 >= 2);`, `print(1 == 2);`, `print(1 != 2);`,
	} {
		h := hashOf(t, src)
		if other, dup := seen[h]; dup {
			t.Errorf("%q and %q hash the same", src, other)
		}
		seen[h] = src
	}
}

func TestHashIncludesMemorySize(t *testing.T) {
	prog := analyze(t, `var g: int; print(g);`)
	if HashProgram(prog, 1024) == HashProgram(prog, 2048) {
		t.Error("memory size should change the fingerprint")
	}
}

func TestSerializeVersionPrefix(t *testing.T) {
	data := Serialize(analyze(t, ``))
	if len(data) < 2 || data[0] != HashVersion || data[1] != TagProgram {
		t.Errorf("serialization prefix = %v", data)
	}
}

func TestKeyIsHex(t *testing.T) {
	key := hashOf(t, `print(1);`)
	if len(key) != 64 {
		t.Errorf("key length = %d, want 64", len(key))
	}
}
