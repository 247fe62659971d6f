// pix CLI - compile and run pix programs
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/tliron/commonlog"

	"github.com/chazu/pix/cache"
	"github.com/chazu/pix/compiler"
	"github.com/chazu/pix/manifest"
	"github.com/chazu/pix/pkg/bytecode"
	"github.com/chazu/pix/server"

	_ "github.com/tliron/commonlog/simple"
)

var log = commonlog.GetLogger("pix.cli")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

// flags holds the raw command line.
type flags struct {
	verbosity   int
	interactive bool
	tokens      bool
	code        bool
	noExec      bool
	trace       bool
	width       int
	height      int
	quantum     int
	maxSteps    int
	output      string
	image       string
	useCache    bool
	cachePath   string
	serve       bool
	port        int
	grpcAddr    string
	lsp         bool

	set map[string]bool // flags given explicitly
}

func parseFlags(args []string, stderr io.Writer) (*flags, []string, error) {
	f := &flags{set: make(map[string]bool)}
	fs := flag.NewFlagSet("pix", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.IntVar(&f.verbosity, "v", 0, "Log verbosity (0-4)")
	fs.BoolVar(&f.interactive, "i", false, "Start interactive REPL")
	fs.BoolVar(&f.tokens, "tokens", false, "Print the token stream")
	fs.BoolVar(&f.code, "code", false, "Print the generated code")
	fs.BoolVar(&f.noExec, "no-exec", false, "Compile only, do not run")
	fs.BoolVar(&f.trace, "trace", false, "Log every executed instruction (needs -v 4)")
	fs.IntVar(&f.width, "mem-width", 256, "Memory surface width in bytes")
	fs.IntVar(&f.height, "mem-height", 256, "Memory surface height in bytes")
	fs.IntVar(&f.quantum, "quantum", 1000, "Instructions per scheduling quantum")
	fs.IntVar(&f.maxSteps, "max-steps", 0, "Abort after this many instructions (0 = unlimited)")
	fs.StringVar(&f.output, "o", "", "Write the assembled image to this .pxi file")
	fs.StringVar(&f.image, "image", "", "Run a .pxi image instead of compiling source")
	fs.BoolVar(&f.useCache, "cache", false, "Reuse compiled images from the project cache")
	fs.StringVar(&f.cachePath, "cache-path", "", "Image cache database (implies -cache)")
	fs.BoolVar(&f.serve, "serve", false, "Start the compile/run server (Connect over HTTP)")
	fs.IntVar(&f.port, "port", 0, "Server port (used with -serve, overrides pix.toml)")
	fs.StringVar(&f.grpcAddr, "grpc", "", "Also serve gRPC on this address (used with -serve)")
	fs.BoolVar(&f.lsp, "lsp", false, "Start the language server on stdio")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: pix [options] [file.pix]\n\n")
		fmt.Fprintf(stderr, "Compiles and runs a pix program. Without a file, the entry of the\n")
		fmt.Fprintf(stderr, "nearest pix.toml is used; without either, the REPL starts.\n\n")
		fmt.Fprintf(stderr, "Options:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  pix hello.pix                 # Compile and run\n")
		fmt.Fprintf(stderr, "  pix -code -no-exec hello.pix  # Show generated code only\n")
		fmt.Fprintf(stderr, "  pix -o hello.pxi hello.pix    # Write an image\n")
		fmt.Fprintf(stderr, "  pix -image hello.pxi          # Run an image\n")
		fmt.Fprintf(stderr, "  pix -serve -port 8080         # Serve Connect on :8080\n")
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, fs.Args(), nil
}

// settings is the effective configuration: pix.toml values overridden by
// explicit flags.
type settings struct {
	memorySize int
	quantum    int
	maxSteps   uint64
	tokens     bool
	code       bool
	noExec     bool
	trace      bool
	cachePath  string // empty disables the cache
	addr       string
	entry      string
}

func resolveSettings(m *manifest.Manifest, f *flags) settings {
	width, height := m.Memory.Width, m.Memory.Height
	if f.set["mem-width"] {
		width = f.width
	}
	if f.set["mem-height"] {
		height = f.height
	}

	s := settings{
		memorySize: width * height,
		quantum:    m.Run.Quantum,
		maxSteps:   uint64(max(m.Run.MaxSteps, 0)),
		tokens:     m.Debug.Tokens || f.tokens,
		code:       m.Debug.Code || f.code,
		noExec:     m.Run.NoExec || f.noExec,
		trace:      m.Debug.Trace || f.trace,
		addr:       m.Server.Addr,
		entry:      m.EntryPath(),
	}
	if f.set["quantum"] {
		s.quantum = f.quantum
	}
	if f.set["max-steps"] {
		s.maxSteps = uint64(max(f.maxSteps, 0))
	}
	if f.set["port"] {
		s.addr = fmt.Sprintf(":%d", f.port)
	}
	switch {
	case f.cachePath != "":
		s.cachePath = f.cachePath
	case f.useCache:
		s.cachePath = m.CachePath()
	}
	return s
}

// loadManifest finds the pix.toml governing path (a file or directory),
// falling back to the defaults.
func loadManifest(path string) (*manifest.Manifest, error) {
	dir := "."
	if path != "" {
		dir = filepath.Dir(path)
	}
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m == nil {
		m = manifest.Default()
	}
	return m, nil
}

// run is main without the process exit, so tests can drive the CLI.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) (code int) {
	f, rest, err := parseFlags(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}
	commonlog.Configure(f.verbosity, nil)

	defer func() {
		if r := recover(); r != nil {
			switch r := r.(type) {
			case *bytecode.FatalError:
				fmt.Fprintln(stderr, r.Error())
			case *compiler.InternalError:
				fmt.Fprintf(stderr, "fatal: %s\n", r.Error())
			default:
				panic(r)
			}
			code = 2
		}
	}()

	var path string
	if len(rest) > 0 {
		path = rest[0]
	}
	m, err := loadManifest(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	cfg := resolveSettings(m, f)
	opts := compiler.Options{MemorySize: cfg.memorySize}

	if f.lsp {
		if err := server.NewLSP(opts).Run(); err != nil {
			fmt.Fprintf(stderr, "LSP error: %v\n", err)
			return 1
		}
		return 0
	}

	if f.serve {
		return serve(cfg, opts, f.grpcAddr, stderr)
	}

	r := &runner{cfg: cfg, opts: opts, stdout: stdout, stderr: stderr}

	if f.image != "" {
		return r.report(r.runImage(ctx, f.image))
	}

	if path == "" && !f.interactive && m.Dir != "" {
		path = cfg.entry
	}
	if path == "" || f.interactive {
		return runREPL(ctx, r)
	}

	return r.report(r.runFile(ctx, path, f.output))
}

func serve(cfg settings, opts compiler.Options, grpcAddr string, stderr io.Writer) int {
	srvOpts := []server.ServerOption{
		server.WithCompilerOptions(opts),
		server.WithQuantum(cfg.quantum),
		server.WithRunTTL(5*time.Minute, 30*time.Minute),
	}
	if cfg.cachePath != "" {
		store, err := cache.Open(cfg.cachePath)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer store.Close()
		srvOpts = append(srvOpts, server.WithCache(store))
	}

	srv := server.New(srvOpts...)
	defer srv.Stop()

	if grpcAddr != "" {
		lis, err := net.Listen("tcp", grpcAddr)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		go func() {
			if err := srv.ServeGRPC(lis); err != nil {
				log.Errorf("gRPC server: %s", err)
			}
		}()
	}

	if err := srv.ListenAndServe(cfg.addr); err != nil {
		fmt.Fprintf(stderr, "Server error: %v\n", err)
		return 1
	}
	return 0
}
