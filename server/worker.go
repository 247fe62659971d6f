package server

import (
	"fmt"

	"github.com/chazu/pix/pkg/bytecode"
)

// workRequest is a unit of work to be executed on the worker goroutine.
type workRequest struct {
	fn   func() any
	done chan workResult
}

// workResult holds the return value from a unit of work.
type workResult struct {
	value any
	err   error
}

// Worker serializes all VM access through a single goroutine.
// A bytecode.VM is not safe for concurrent use; every handler that steps
// or inspects a run must go through the worker.
type Worker struct {
	requests chan workRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker() *Worker {
	w := &Worker{
		requests: make(chan workRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs fn, recovering VM faults and compiler panics into errors.
func (w *Worker) execute(fn func() any) (result workResult) {
	defer func() {
		if r := recover(); r != nil {
			switch r := r.(type) {
			case *bytecode.FatalError:
				result.err = r
			case error:
				result.err = fmt.Errorf("panic: %w", r)
			default:
				result.err = fmt.Errorf("panic: %v", r)
			}
		}
	}()
	result.value = fn()
	return result
}

// Do submits fn for execution on the worker goroutine and blocks until it
// completes. A panic inside fn is returned as the error.
func (w *Worker) Do(fn func() any) (any, error) {
	req := workRequest{
		fn:   fn,
		done: make(chan workResult, 1),
	}
	w.requests <- req
	result := <-req.done
	return result.value, result.err
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}
