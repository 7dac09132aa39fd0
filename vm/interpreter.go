package vm

import (
	"context"
	"fmt"
)

// cancelCheckInterval is how many instructions run between context checks.
const cancelCheckInterval = 1024

// ---------------------------------------------------------------------------
// Execution
// ---------------------------------------------------------------------------

// Exec runs from entry until the outermost frame returns and yields the
// result. keep lists external values that must survive the closing
// compaction; they are rewritten in place.
func (m *VM) Exec(entry Address, keep ...*Value) (Value, error) {
	return m.ExecContext(context.Background(), entry, keep...)
}

// ExecContext is Exec with cancellation. The context is polled between
// instructions.
func (m *VM) ExecContext(ctx context.Context, entry Address, keep ...*Value) (Value, error) {
	m.Start(entry, keep...)
	for n := 0; ; n++ {
		if n%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				m.abort(err)
				return Nil, fmt.Errorf("clasp: execution cancelled: %w", err)
			}
		}
		done, err := m.Step()
		if err != nil {
			return Nil, err
		}
		if done {
			return m.Finish()
		}
	}
}

// Start allocates a Context at entry and makes it the running context.
// Use Step to drive it and Finish once Step reports done, or Exec to run it
// to completion.
func (m *VM) Start(entry Address, keep ...*Value) {
	m.start = m.pool.snapshot()
	m.keep = keep
	m.saved = make([]Value, len(keep))
	for i, k := range keep {
		m.saved[i] = *k
	}
	m.thread = m.pool.Allocate(NewContext(entry))
}

// Step executes one instruction of the running context. It reports true
// once the outermost frame has returned. On error the run is aborted and the
// pool is restored to its state at Start.
func (m *VM) Step() (bool, error) {
	if !m.thread.IsHandle() {
		return false, newError(InvalidHandle, "no running context")
	}
	th, err := m.Thread()
	if err != nil {
		return false, err
	}
	pc, ok := th.Advance()
	if !ok {
		return true, nil
	}
	if pc < 0 || int(pc) >= len(m.code) {
		err := &Error{Errno: InvalidAddress, Detail: fmt.Sprintf("no instruction at %d", pc), PC: pc}
		m.abort(err)
		return false, err
	}
	in := m.code[pc]
	if err := m.execute(th, in); err != nil {
		err = at(err, pc, in)
		m.abort(err)
		return false, err
	}
	m.steps++
	if m.tracer != nil {
		m.trace(th, pc, in)
	}
	if th.Done() {
		return true, nil
	}
	if m.collectThreshold > 0 && m.pool.Len() >= m.collectThreshold {
		m.collect()
	}
	return false, nil
}

// Finish ends a run whose outermost frame has returned. It releases the
// Context, compacts the pool rooted at the result and the kept values, and
// returns the remapped result.
func (m *VM) Finish() (Value, error) {
	if !m.thread.IsHandle() {
		return Nil, newError(InvalidHandle, "no running context")
	}
	th, err := m.Thread()
	if err != nil {
		return Nil, err
	}
	if !th.Done() {
		return Nil, newError(InvalidHandle, "context still has %d frames", th.Depth())
	}
	result, err := th.Result()
	if err != nil {
		m.abort(err)
		return Nil, err
	}
	m.thread = Nil
	u := m.collect(result)
	m.start, m.keep, m.saved = nil, nil, nil
	return u.Remap(result), nil
}

// abort discards everything the failed run allocated.
func (m *VM) abort(err error) {
	if m.start != nil {
		m.pool = m.start
		for i, k := range m.keep {
			*k = m.saved[i]
		}
	}
	m.thread = Nil
	m.start, m.keep, m.saved = nil, nil, nil
	m.log.Infof("execution aborted: %s", err)
}

// execute performs one decoded instruction.
func (m *VM) execute(th *Context, in Instruction) error {
	switch in.Op {
	case OpLoad:
		v, err := th.Get(int(in.Operand))
		if err != nil {
			return err
		}
		th.Push(v)

	case OpLiteralInt:
		th.Push(FromInt(in.Operand))

	case OpAdd, OpSub:
		a, b, err := popInts(th)
		if err != nil {
			return err
		}
		if in.Op == OpAdd {
			th.Push(FromInt(a + b))
		} else {
			th.Push(FromInt(a - b))
		}

	case OpMakeClosure:
		closure, err := th.PopN(int(in.Captures))
		if err != nil {
			return err
		}
		fn := &Function{
			Entry:     Address(in.Operand),
			NumParams: in.Params,
			Closure:   closure,
		}
		th.Push(m.pool.Allocate(fn))

	case OpBranch:
		return th.Jump(Address(in.Operand))

	case OpBranchIfNotZero:
		v, err := th.Pop()
		if err != nil {
			return err
		}
		n, err := v.AsInt()
		if err != nil {
			return err
		}
		if n != 0 {
			return th.Jump(Address(in.Operand))
		}

	case OpCall:
		fv, err := th.Peek()
		if err != nil {
			return err
		}
		fn, err := m.pool.Function(fv)
		if err != nil {
			return err
		}
		if in.Params != fn.NumParams {
			return newError(ArityMismatch, "function called with %d args but expected %d", in.Params, fn.NumParams)
		}
		return th.Call(fn)

	case OpReturn:
		return th.Ret()

	default:
		return newError(IllegalInstruction, "opcode 0x%02X", byte(in.Op))
	}
	return nil
}

// popInts pops b then a, both integers.
func popInts(th *Context) (a, b int64, err error) {
	bv, err := th.Pop()
	if err != nil {
		return 0, 0, err
	}
	av, err := th.Pop()
	if err != nil {
		return 0, 0, err
	}
	if b, err = bv.AsInt(); err != nil {
		return 0, 0, err
	}
	if a, err = av.AsInt(); err != nil {
		return 0, 0, err
	}
	return a, b, nil
}

func (m *VM) trace(th *Context, pc Address, in Instruction) {
	ev := TraceEvent{Address: pc, Instruction: in, Depth: th.Depth(), StackLen: th.StackLen()}
	if f, ok := th.Frame(); ok {
		ev.StackBase = f.StackBase
		locals := th.Locals()
		ev.Locals = make([]string, len(locals))
		for i, v := range locals {
			ev.Locals[i] = m.pool.Describe(v)
		}
	}
	m.tracer.Trace(ev)
}
