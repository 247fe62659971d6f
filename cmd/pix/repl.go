package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/chazu/pix/compiler"
	"github.com/chazu/pix/pkg/bytecode"
)

const (
	historyFile = ".pix_history"
	promptMain  = "pix> "
	promptCont  = "...> "
)

// session accumulates REPL input into one growing program. Each accepted
// entry recompiles and reruns the whole program and shows only the output
// the entry added.
type session struct {
	r      *runner
	source strings.Builder
	output string // output of the last accepted program
}

// eval compiles the session extended by input. On success the input is
// kept and the new output is returned.
func (s *session) eval(ctx context.Context, input string) (string, error) {
	candidate := s.source.String() + input + "\n"

	res, err := compiler.Compile(candidate, s.r.opts)
	if err != nil {
		return "", err
	}
	mem, _, err := res.Assemble()
	if err != nil {
		return "", err
	}

	var out bytes.Buffer
	vm := bytecode.NewVM(mem, bytecode.WithOutput(&out), bytecode.WithTrace(s.r.cfg.trace))
	if err := vm.Run(ctx, s.r.cfg.quantum, s.r.cfg.maxSteps); err != nil {
		return "", err
	}

	s.source.WriteString(input)
	s.source.WriteString("\n")
	produced := strings.TrimPrefix(out.String(), s.output)
	s.output = out.String()
	return produced, nil
}

func (s *session) reset() {
	s.source.Reset()
	s.output = ""
}

func (s *session) listing() (string, error) {
	res, err := compiler.Compile(s.source.String(), s.r.opts)
	if err != nil {
		return "", err
	}
	return bytecode.FormatEntries(res.Entries), nil
}

// command handles a ":" line. It reports whether the REPL should exit.
func (s *session) command(w io.Writer, line string) bool {
	switch strings.TrimSpace(line) {
	case ":quit", ":q":
		return true
	case ":reset":
		s.reset()
		fmt.Fprintln(w, "session cleared")
	case ":source":
		fmt.Fprint(w, s.source.String())
	case ":code":
		listing, err := s.listing()
		if err != nil {
			fmt.Fprintf(w, "Error: %v\n", err)
			break
		}
		fmt.Fprint(w, listing)
	case ":help":
		fmt.Fprintln(w, "  :source  show the session program")
		fmt.Fprintln(w, "  :code    show the generated code")
		fmt.Fprintln(w, "  :reset   forget every entry")
		fmt.Fprintln(w, "  :quit    leave")
	default:
		fmt.Fprintln(w, "unknown command, try :help")
	}
	return false
}

// incomplete reports whether err means the parser ran out of input, so the
// REPL should keep reading lines.
func incomplete(err error) bool {
	ce, ok := compiler.AsError(err)
	return ok && strings.HasSuffix(ce.Msg, "got end of input")
}

func runREPL(ctx context.Context, r *runner) int {
	fmt.Fprintln(r.stdout, "pix REPL (:help for commands, :quit to exit)")

	home, _ := os.UserHomeDir()
	histPath := filepath.Join(home, historyFile)

	ln := liner.NewLiner()
	defer ln.Close()
	ln.SetCtrlCAborts(true)

	if f, err := os.Open(histPath); err == nil {
		_, _ = ln.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(histPath); err == nil {
			_, _ = ln.WriteHistory(f)
			_ = f.Close()
		}
	}()

	s := &session{r: r}
	for {
		input, ok := readEntry(ln, s)
		if !ok {
			fmt.Fprintln(r.stdout)
			return 0
		}
		trimmed := strings.TrimSpace(input)
		if trimmed == "" {
			continue
		}
		ln.AppendHistory(strings.ReplaceAll(input, "\n", " "))

		if strings.HasPrefix(trimmed, ":") {
			if s.command(r.stdout, trimmed) {
				return 0
			}
			continue
		}

		out, err := s.eval(ctx, input)
		if err != nil {
			fmt.Fprintf(r.stderr, "Error: %v\n", err)
			continue
		}
		fmt.Fprint(r.stdout, out)
	}
}

// readEntry reads lines until they form a complete addition to the session.
func readEntry(ln *liner.State, s *session) (string, bool) {
	var b strings.Builder
	for {
		prompt := promptMain
		if b.Len() > 0 {
			prompt = promptCont
		}
		line, err := ln.Prompt(prompt)
		if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
			return "", false
		}
		if err != nil {
			return "", false
		}

		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(line)

		entry := b.String()
		if strings.HasPrefix(strings.TrimSpace(entry), ":") {
			return entry, true
		}
		_, perr := compiler.Parse(s.source.String() + entry)
		if perr != nil && incomplete(perr) {
			continue
		}
		return entry, true
	}
}
