package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "demo"
entry = "src/main.pix"

[memory]
width = 64
height = 32

[run]
quantum = 50
max-steps = 100000
no-exec = true

[debug]
tokens = true
code = true
trace = false

[cache]
path = "build/images.db"

[server]
addr = "localhost:9000"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "demo" {
		t.Errorf("project name = %q, want demo", m.Project.Name)
	}
	if m.MemorySize() != 64*32 {
		t.Errorf("MemorySize() = %d, want %d", m.MemorySize(), 64*32)
	}
	if m.Run.Quantum != 50 || m.Run.MaxSteps != 100000 || !m.Run.NoExec {
		t.Errorf("run = %+v", m.Run)
	}
	if !m.Debug.Tokens || !m.Debug.Code || m.Debug.Trace {
		t.Errorf("debug = %+v", m.Debug)
	}
	if m.Server.Addr != "localhost:9000" {
		t.Errorf("server addr = %q", m.Server.Addr)
	}

	absDir, _ := filepath.Abs(dir)
	if m.Dir != absDir {
		t.Errorf("Dir = %q, want %q", m.Dir, absDir)
	}
	if m.EntryPath() != filepath.Join(absDir, "src", "main.pix") {
		t.Errorf("EntryPath() = %q", m.EntryPath())
	}
	if m.CachePath() != filepath.Join(absDir, "build", "images.db") {
		t.Errorf("CachePath() = %q", m.CachePath())
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	def := Default()
	if m.MemorySize() != def.MemorySize() {
		t.Errorf("MemorySize() = %d, want default %d", m.MemorySize(), def.MemorySize())
	}
	if m.Run.Quantum != def.Run.Quantum {
		t.Errorf("quantum = %d, want default %d", m.Run.Quantum, def.Run.Quantum)
	}
	if m.Project.Entry != "main.pix" {
		t.Errorf("entry = %q, want main.pix", m.Project.Entry)
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Validate(Default()); err != nil {
		t.Fatalf("Default() does not validate: %v", err)
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero width", "[memory]\nwidth = 0\n"},
		{"unaligned memory", "[memory]\nwidth = 3\nheight = 3\n"},
		{"huge memory", "[memory]\nwidth = 8192\n"},
		{"zero quantum", "[run]\nquantum = 0\n"},
		{"negative steps", "[run]\nmax-steps = -1\n"},
		{"bad addr", "[server]\naddr = \"nowhere\"\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), "invalid manifest") {
				t.Errorf("error = %v", err)
			}
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	_, err := Parse([]byte("[memory\nwidth = 1"))
	if err == nil || !strings.Contains(err.Error(), "parse error") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "[project]\nname = \"walk\"\n")

	nested := filepath.Join(root, "a", "b")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(nested)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil || m.Project.Name != "walk" {
		t.Fatalf("manifest = %+v, want project walk", m)
	}
}

func TestFindAndLoadNone(t *testing.T) {
	m, err := FindAndLoad(t.TempDir())
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Errorf("expected no manifest, got %+v", m)
	}
}
