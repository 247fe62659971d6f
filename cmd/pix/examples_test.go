package main

import (
	"path/filepath"
	"strings"
	"testing"
)

// TestExamples runs every program under examples/ with the project's
// pix.toml and checks its output and exit status.
func TestExamples(t *testing.T) {
	tests := []struct {
		file string
		want string
		code int
	}{
		{"hello.pix", "42\ntrue\n", 0},
		{"fib.pix", strings.Repeat("true\n", 11) + "832040\n", 0},
		{"primes.pix", "2\n3\n5\n7\n11\n13\n17\n19\n23\n29\n31\n37\n41\n43\n47\n", 0},
		{"overload.pix", "40\ntrue\nfalse\n3\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.file, func(t *testing.T) {
			code, out, errOut := runCLI(t, filepath.Join("..", "..", "examples", tt.file))
			if code != tt.code {
				t.Errorf("exit status = %d, want %d (stderr %q)", code, tt.code, errOut)
			}
			if out != tt.want {
				t.Errorf("stdout = %q, want %q", out, tt.want)
			}
		})
	}
}
