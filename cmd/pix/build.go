package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/chazu/pix/cache"
	"github.com/chazu/pix/compiler"
	"github.com/chazu/pix/pkg/bytecode"
)

// runner compiles and executes programs with one set of settings.
type runner struct {
	cfg    settings
	opts   compiler.Options
	stdout io.Writer
	stderr io.Writer
}

// report turns a run outcome into a process exit status: the program's own
// exit code on success, 1 for user errors, 2 for fatal faults.
func (r *runner) report(code int, err error) int {
	switch {
	case err == nil:
		return code
	case bytecode.IsFatal(err):
		fmt.Fprintln(r.stderr, err.Error())
		return 2
	case errors.Is(err, context.Canceled):
		fmt.Fprintln(r.stderr, "interrupted")
		return 130
	default:
		fmt.Fprintf(r.stderr, "Error: %v\n", err)
		return 1
	}
}

// runFile compiles path, optionally writes the image to output, and runs it
// unless execution is disabled.
func (r *runner) runFile(ctx context.Context, path, output string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 1, err
	}

	img, err := r.compile(path, string(data))
	if err != nil {
		return 1, fmt.Errorf("%s: %w", path, err)
	}

	if output != "" {
		if err := writeImage(output, img); err != nil {
			return 1, err
		}
		log.Infof("wrote %s (%d words)", output, len(img.Code))
	}

	if r.cfg.noExec {
		return 0, nil
	}
	return r.execute(ctx, img)
}

// runImage loads a .pxi file and runs it.
func (r *runner) runImage(ctx context.Context, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 1, err
	}
	img, err := bytecode.UnmarshalImage(data)
	if err != nil {
		return 1, fmt.Errorf("%s: %w", path, err)
	}
	if r.cfg.code {
		mem, err := img.Load()
		if err != nil {
			return 1, err
		}
		fmt.Fprint(r.stdout, bytecode.DisassembleMemory(mem, len(img.Code)))
	}
	if r.cfg.noExec {
		return 0, nil
	}
	return r.execute(ctx, img)
}

// compile turns src into an image, printing the requested dumps.
func (r *runner) compile(name, src string) (*bytecode.Image, error) {
	if r.cfg.tokens {
		if err := r.dumpTokens(src); err != nil {
			return nil, err
		}
	}

	if r.cfg.cachePath != "" {
		store, err := cache.Open(r.cfg.cachePath)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		img, hit, err := store.Build(name, src, r.opts)
		if err != nil {
			return nil, err
		}
		if hit {
			log.Infof("using cached image for %s", name)
		}
		if r.cfg.code {
			mem, err := img.Load()
			if err != nil {
				return nil, err
			}
			fmt.Fprint(r.stdout, bytecode.DisassembleMemory(mem, len(img.Code)))
		}
		return img, nil
	}

	res, err := compiler.Compile(src, r.opts)
	if err != nil {
		return nil, err
	}
	if r.cfg.code {
		fmt.Fprint(r.stdout, bytecode.FormatEntries(res.Entries))
	}
	return res.Image(name)
}

func (r *runner) dumpTokens(src string) error {
	tokens, err := compiler.Tokenize(src)
	for _, tok := range tokens {
		fmt.Fprintf(r.stdout, "%d:%d\t%s\n", tok.Pos.Line, tok.Pos.Column, tok)
	}
	return err
}

// execute runs img to completion and returns the program's exit code.
func (r *runner) execute(ctx context.Context, img *bytecode.Image) (int, error) {
	mem, err := img.Load()
	if err != nil {
		return 1, err
	}
	vm := bytecode.NewVM(mem, bytecode.WithOutput(r.stdout), bytecode.WithTrace(r.cfg.trace))
	if err := vm.Run(ctx, r.cfg.quantum, r.cfg.maxSteps); err != nil {
		return 1, err
	}
	log.Debugf("terminated after %d steps with status %d", vm.Steps(), vm.ExitCode())
	return int(vm.ExitCode()), nil
}

func writeImage(path string, img *bytecode.Image) error {
	data, err := img.Marshal()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
