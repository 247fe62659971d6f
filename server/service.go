package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/chazu/pix/cache"
	"github.com/chazu/pix/compiler"
	"github.com/chazu/pix/pkg/bytecode"
)

// CompilerService compiles pix programs and runs them in stepped VMs.
// Both the Connect handlers and the gRPC service desc call into it.
type CompilerService struct {
	worker *Worker
	runs   *RunStore
	cache  *cache.Store
	opts   compiler.Options

	quantum int
}

// NewCompilerService creates a CompilerService. store may be nil.
func NewCompilerService(worker *Worker, runs *RunStore, store *cache.Store, opts compiler.Options, quantum int) *CompilerService {
	if quantum <= 0 {
		quantum = 1000
	}
	return &CompilerService{
		worker:  worker,
		runs:    runs,
		cache:   store,
		opts:    opts.WithDefaults(),
		quantum: quantum,
	}
}

// built is what a compilation on the worker hands back.
type built struct {
	img    *bytecode.Image
	cached bool
	err    error
}

// build compiles src on the worker goroutine, going through the image cache
// when one is configured. User errors come back in built.err; the returned
// error is reserved for internal failures.
func (s *CompilerService) build(name, src string, memorySize int) (*built, error) {
	if src == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}
	if memorySize < 0 {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("memory size %d is negative", memorySize))
	}
	opts := s.opts
	if memorySize > 0 {
		opts.MemorySize = memorySize
	}

	result, err := s.worker.Do(func() any {
		if s.cache != nil {
			img, hit, err := s.cache.Build(name, src, opts)
			return &built{img: img, cached: hit, err: err}
		}
		res, err := compiler.Compile(src, opts)
		if err != nil {
			return &built{err: err}
		}
		img, err := res.Image(name)
		return &built{img: img, err: err}
	})
	if err != nil {
		log.Errorf("compiling %s: %s", name, err)
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return result.(*built), nil
}

// diagnosticsFor converts a compile error into diagnostics.
func diagnosticsFor(err error) []Diagnostic {
	if ce, ok := compiler.AsError(err); ok {
		return []Diagnostic{{Line: ce.Pos.Line, Column: ce.Pos.Column, Message: ce.Msg}}
	}
	return []Diagnostic{{Message: err.Error()}}
}

// --- Operations ---

// DoCompile compiles a program and returns its image and listing.
func (s *CompilerService) DoCompile(ctx context.Context, req *CompileRequest) (*CompileResponse, error) {
	b, err := s.build(req.Name, req.Source, req.MemorySize)
	if err != nil {
		return nil, err
	}
	if b.err != nil {
		return &CompileResponse{Diagnostics: diagnosticsFor(b.err)}, nil
	}

	mem, err := b.img.Load()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	data, err := b.img.Marshal()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return &CompileResponse{
		Success: true,
		Words:   len(b.img.Code),
		Listing: bytecode.DisassembleMemory(mem, len(b.img.Code)),
		Image:   data,
		Cached:  b.cached,
	}, nil
}

// DoStart compiles a program and registers a run positioned at its first
// instruction.
func (s *CompilerService) DoStart(ctx context.Context, req *StartRequest) (*StartResponse, error) {
	b, err := s.build(req.Name, req.Source, req.MemorySize)
	if err != nil {
		return nil, err
	}
	if b.err != nil {
		return &StartResponse{Diagnostics: diagnosticsFor(b.err)}, nil
	}

	mem, err := b.img.Load()
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	run := newRun(req.Name, mem, len(b.img.Code), req.Trace)
	id := s.runs.Add(run)
	log.Infof("started run %s (%s, %d words)", id, req.Name, run.Words)
	return &StartResponse{RunID: id, Words: run.Words}, nil
}

// DoStep advances a run by one quantum and collects its new output.
func (s *CompilerService) DoStep(ctx context.Context, req *StepRequest) (*StepResponse, error) {
	run, ok := s.runs.Lookup(req.RunID)
	if !ok {
		return nil, connect.NewError(connect.CodeNotFound, fmt.Errorf("run %q not found", req.RunID))
	}
	q := req.Quantum
	if q <= 0 {
		q = s.quantum
	}

	result, err := s.worker.Do(func() any {
		resp := &StepResponse{}
		if run.fault == "" {
			before := run.vm.Steps()
			func() {
				defer func() {
					if r := recover(); r != nil {
						fe, ok := r.(*bytecode.FatalError)
						if !ok {
							panic(r)
						}
						run.fault = fe.Error()
					}
				}()
				run.vm.ExecuteQuantum(q)
			}()
			resp.Steps = int(run.vm.Steps() - before)
		}
		resp.Output = run.drain()
		resp.Terminated = run.vm.Terminated() || run.fault != ""
		resp.ExitCode = run.vm.ExitCode()
		resp.Fault = run.fault
		return resp
	})
	if err != nil {
		return nil, connect.NewError(connect.CodeInternal, err)
	}
	return result.(*StepResponse), nil
}

// DoStop releases a run.
func (s *CompilerService) DoStop(ctx context.Context, req *StopRequest) (*StopResponse, error) {
	if req.RunID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("run id is required"))
	}
	return &StopResponse{Stopped: s.runs.Release(req.RunID)}, nil
}

// --- Connect handlers ---

func (s *CompilerService) Compile(ctx context.Context, req *connect.Request[CompileRequest]) (*connect.Response[CompileResponse], error) {
	return unary(ctx, req, s.DoCompile)
}

func (s *CompilerService) Start(ctx context.Context, req *connect.Request[StartRequest]) (*connect.Response[StartResponse], error) {
	return unary(ctx, req, s.DoStart)
}

func (s *CompilerService) Step(ctx context.Context, req *connect.Request[StepRequest]) (*connect.Response[StepResponse], error) {
	return unary(ctx, req, s.DoStep)
}

func (s *CompilerService) Stop(ctx context.Context, req *connect.Request[StopRequest]) (*connect.Response[StopResponse], error) {
	return unary(ctx, req, s.DoStop)
}

func unary[Req, Res any](ctx context.Context, req *connect.Request[Req], fn func(context.Context, *Req) (*Res, error)) (*connect.Response[Res], error) {
	res, err := fn(ctx, req.Msg)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(res), nil
}

// errorCode returns the Connect code carried by err, or CodeUnknown.
func errorCode(err error) connect.Code {
	var ce *connect.Error
	if errors.As(err, &ce) {
		return ce.Code()
	}
	return connect.CodeUnknown
}
