// Package server exposes the pix compiler and VM over Connect, gRPC and the
// Language Server Protocol.
package server

import (
	"net"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/tliron/commonlog"
	"google.golang.org/grpc"

	"github.com/chazu/pix/cache"
	"github.com/chazu/pix/compiler"
)

var log = commonlog.GetLogger("pix.server")

// Server is the compile/run service. It serves Connect over HTTP and,
// optionally, gRPC on a separate listener.
type Server struct {
	worker  *Worker
	runs    *RunStore
	service *CompilerService
	mux     *http.ServeMux
	grpc    *grpc.Server

	stopSweeper func()
}

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	cache    *cache.Store
	opts     compiler.Options
	quantum  int
	interval time.Duration
	ttl      time.Duration
}

// WithCache routes compilations through an image cache.
func WithCache(store *cache.Store) ServerOption {
	return func(c *serverConfig) { c.cache = store }
}

// WithCompilerOptions sets the default memory size and intrinsics.
func WithCompilerOptions(opts compiler.Options) ServerOption {
	return func(c *serverConfig) { c.opts = opts }
}

// WithQuantum sets the number of steps a Step call executes by default.
func WithQuantum(q int) ServerOption {
	return func(c *serverConfig) { c.quantum = q }
}

// WithRunTTL sets how long an idle run survives and how often idle runs
// are swept.
func WithRunTTL(interval, ttl time.Duration) ServerOption {
	return func(c *serverConfig) {
		c.interval = interval
		c.ttl = ttl
	}
}

// New creates a Server.
func New(opts ...ServerOption) *Server {
	cfg := &serverConfig{
		quantum:  1000,
		interval: 5 * time.Minute,
		ttl:      30 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	worker := NewWorker()
	runs := NewRunStore()
	svc := NewCompilerService(worker, runs, cfg.cache, cfg.opts, cfg.quantum)

	s := &Server{
		worker:  worker,
		runs:    runs,
		service: svc,
		mux:     http.NewServeMux(),
		grpc:    NewGRPCServer(svc),
	}

	codec := connect.WithCodec(Codec{})
	s.mux.Handle(CompileProcedure, connect.NewUnaryHandler(CompileProcedure, svc.Compile, codec))
	s.mux.Handle(StartProcedure, connect.NewUnaryHandler(StartProcedure, svc.Start, codec))
	s.mux.Handle(StepProcedure, connect.NewUnaryHandler(StepProcedure, svc.Step, codec))
	s.mux.Handle(StopProcedure, connect.NewUnaryHandler(StopProcedure, svc.Stop, codec))

	s.stopSweeper = runs.StartSweeper(cfg.interval, cfg.ttl)

	return s
}

// Handler returns the HTTP handler serving the Connect procedures.
func (s *Server) Handler() http.Handler { return s.mux }

// Service returns the underlying compiler service.
func (s *Server) Service() *CompilerService { return s.service }

// Runs returns the run registry.
func (s *Server) Runs() *RunStore { return s.runs }

// ListenAndServe serves Connect on addr ("host:port" or ":port").
func (s *Server) ListenAndServe(addr string) error {
	log.Noticef("pix server listening on %s", addr)
	log.Noticef("  Connect (CBOR): http://%s%s", addr, CompileProcedure)
	return http.ListenAndServe(addr, s.mux)
}

// ServeGRPC serves the gRPC transport on lis until Stop.
func (s *Server) ServeGRPC(lis net.Listener) error {
	log.Noticef("  gRPC (CBOR):    grpc://%s", lis.Addr())
	return s.grpc.Serve(lis)
}

// Stop shuts down the server.
func (s *Server) Stop() {
	if s.stopSweeper != nil {
		s.stopSweeper()
	}
	s.grpc.Stop()
	s.worker.Stop()
}
