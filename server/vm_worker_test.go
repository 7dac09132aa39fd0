package server

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/chazu/clasp/compiler"
	"github.com/chazu/clasp/vm"
)

func mustCompile(t *testing.T, src string) *vm.Program {
	t.Helper()
	prog, err := compiler.Compile("test", src)
	if err != nil {
		t.Fatal(err)
	}
	return prog
}

func TestWorkerEval(t *testing.T) {
	w := NewVMWorker(vm.WithCollectThreshold(2))
	defer w.Stop()

	eval, err := w.Eval(context.Background(), mustCompile(t, "adder = (x) => (y) => x + y\nadder(2)(1)"))
	if err != nil {
		t.Fatal(err)
	}
	if eval.Result != "3" || eval.Live != 0 || eval.Steps != 14 {
		t.Errorf("Eval = %+v", eval)
	}
	if eval.Collections < 2 {
		t.Errorf("Collections = %d, want safe-point collections", eval.Collections)
	}
}

func TestWorkerSerializesRequests(t *testing.T) {
	w := NewVMWorker()
	defer w.Stop()
	prog := mustCompile(t, "f = (n) => n + n\nf(21)")

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			eval, err := w.Eval(context.Background(), prog)
			if err == nil && eval.Result != "42" {
				err = errors.New("result " + eval.Result)
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestWorkerRuntimeError(t *testing.T) {
	w := NewVMWorker()
	defer w.Stop()

	_, err := w.Eval(context.Background(), mustCompile(t, "f = (x) => x\nf(1 2)"))
	if !errors.Is(err, vm.ArityMismatch) {
		t.Errorf("err = %v, want ArityMismatch", err)
	}
}

func TestWorkerCancelled(t *testing.T) {
	w := NewVMWorker()
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := w.Eval(ctx, mustCompile(t, "1"))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWorkerStopped(t *testing.T) {
	w := NewVMWorker()
	w.Stop()
	w.Stop()

	_, err := w.Eval(context.Background(), mustCompile(t, "1"))
	if !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("err = %v, want ErrWorkerStopped", err)
	}
}
