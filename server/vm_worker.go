package server

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/chazu/clasp/vm"
)

// ErrWorkerStopped is returned for requests made after Stop.
var ErrWorkerStopped = errors.New("vm worker stopped")

// Evaluation is the outcome of running a program to completion.
type Evaluation struct {
	Result      string // Describe of the result value
	Steps       uint64
	Collections int
	Live        int // objects left in the pool
}

// evalRequest is a unit of work for the worker goroutine.
type evalRequest struct {
	ctx  context.Context
	prog *vm.Program
	done chan evalResult
}

type evalResult struct {
	value Evaluation
	err   error
}

// VMWorker runs programs one at a time on a dedicated goroutine, so an
// editor flooding requests never runs more than one machine at once.
// Each request gets a fresh VM built with the worker's options.
type VMWorker struct {
	opts     []vm.Option
	requests chan evalRequest
	quit     chan struct{}
	stop     sync.Once
}

// NewVMWorker creates a VMWorker and starts the processing goroutine.
func NewVMWorker(opts ...vm.Option) *VMWorker {
	w := &VMWorker{
		opts:     opts,
		requests: make(chan evalRequest, 16),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

func (w *VMWorker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req)
		case <-w.quit:
			return
		}
	}
}

// execute runs one program, recovering from panics.
func (w *VMWorker) execute(req evalRequest) (result evalResult) {
	defer func() {
		if r := recover(); r != nil {
			result.err = fmt.Errorf("%v", r)
		}
	}()
	if err := req.ctx.Err(); err != nil {
		return evalResult{err: err}
	}
	m := vm.NewVM(req.prog.Code, w.opts...)
	v, err := m.ExecContext(req.ctx, req.prog.Entry)
	if err != nil {
		return evalResult{err: err}
	}
	return evalResult{value: Evaluation{
		Result:      m.Describe(v),
		Steps:       m.Steps(),
		Collections: m.Collections(),
		Live:        m.Pool().Len(),
	}}
}

// Eval runs prog on the worker goroutine and blocks until it completes or
// ctx is done. Cancelling ctx also stops the running program.
func (w *VMWorker) Eval(ctx context.Context, prog *vm.Program) (Evaluation, error) {
	req := evalRequest{ctx: ctx, prog: prog, done: make(chan evalResult, 1)}
	select {
	case w.requests <- req:
	case <-w.quit:
		return Evaluation{}, ErrWorkerStopped
	case <-ctx.Done():
		return Evaluation{}, ctx.Err()
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-w.quit:
		return Evaluation{}, ErrWorkerStopped
	}
}

// Stop shuts down the worker goroutine. It is safe to call more than once.
func (w *VMWorker) Stop() {
	w.stop.Do(func() { close(w.quit) })
}
