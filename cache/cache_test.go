package cache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/pix/compiler"
	"github.com/chazu/pix/pkg/bytecode"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutGet(t *testing.T) {
	s := openStore(t)
	img := &bytecode.Image{Name: "one", MemorySize: 64, Code: []uint32{0x110, 0x301}}

	if err := s.Put("k1", img); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get("k1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Name != "one" || got.MemorySize != 64 || len(got.Code) != 2 || got.Code[1] != 0x301 {
		t.Errorf("Get = %+v", got)
	}

	n, err := s.Len()
	if err != nil || n != 1 {
		t.Errorf("Len() = %d, %v; want 1", n, err)
	}
}

func TestGetMissing(t *testing.T) {
	s := openStore(t)
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) = %v, want ErrNotFound", err)
	}
}

func TestDeleteAndPrune(t *testing.T) {
	s := openStore(t)
	img := &bytecode.Image{MemorySize: 64, Code: []uint32{0}}
	for _, key := range []string{"a", "b"} {
		if err := s.Put(key, img); err != nil {
			t.Fatal(err)
		}
	}

	if err := s.Delete("a"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.Get("a"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted key still present: %v", err)
	}

	removed, err := s.Prune(time.Now().Add(time.Hour))
	if err != nil {
		t.Fatalf("Prune failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("Prune removed %d, want 1", removed)
	}
}

func TestBuildHitsCacheForEquivalentSource(t *testing.T) {
	s := openStore(t)
	opts := compiler.Options{MemorySize: 1024}

	img, hit, err := s.Build("first", `var x: int = 6; print(x * 7);`, opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if hit {
		t.Error("first build should miss")
	}

	again, hit, err := s.Build("second", "# renamed\nvar answer: int = 6;\nprint(answer * 7);", opts)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !hit {
		t.Error("equivalent program should hit the cache")
	}
	if len(again.Code) != len(img.Code) {
		t.Errorf("cached code has %d words, want %d", len(again.Code), len(img.Code))
	}

	mem, err := again.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	var out bytes.Buffer
	vm := bytecode.NewVM(mem, bytecode.WithOutput(&out))
	if err := vm.Run(context.Background(), 100, 0); err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if out.String() != "42\n" {
		t.Errorf("output = %q, want 42", out.String())
	}
}

func TestBuildMissesForOtherMemorySize(t *testing.T) {
	s := openStore(t)
	src := `print(1);`
	if _, _, err := s.Build("a", src, compiler.Options{MemorySize: 1024}); err != nil {
		t.Fatal(err)
	}
	_, hit, err := s.Build("b", src, compiler.Options{MemorySize: 2048})
	if err != nil {
		t.Fatal(err)
	}
	if hit {
		t.Error("different memory size should miss")
	}
}

func TestBuildCompileError(t *testing.T) {
	s := openStore(t)
	if _, _, err := s.Build("bad", `print(true + 1);`, compiler.Options{}); err == nil {
		t.Fatal("expected compile error")
	}
	if n, _ := s.Len(); n != 0 {
		t.Errorf("failed build cached %d images", n)
	}
}
