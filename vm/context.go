package vm

// ---------------------------------------------------------------------------
// Context: a virtual call stack (operand stack + frames)
// ---------------------------------------------------------------------------

// Frame is the activation record of one call.
type Frame struct {
	PC        Address // next instruction to execute in this frame
	StackBase int     // index in the operand stack where this frame's locals begin
}

// Context is one guest-level thread of control. It lives in the Pool like
// any other object so that closures captured on its stack keep it reachable.
//
// Calling convention: before Call, the caller pushes the arguments in order
// and then the function value itself. The callee's locals are therefore
//
//	0 .. n-1    arguments
//	n           the function being called
//	n+1 .. n+m  captured values
//
// so a function can reach itself through local n and recurse without any
// named binding.
type Context struct {
	stack  []Value
	frames []Frame
}

// NewContext creates a context whose single frame starts at entry.
func NewContext(entry Address) *Context {
	return &Context{
		stack:  make([]Value, 0, 64),
		frames: []Frame{{PC: entry}},
	}
}

// Done returns true once the outermost frame has returned.
func (c *Context) Done() bool {
	return len(c.frames) == 0
}

// Depth returns the number of active frames.
func (c *Context) Depth() int {
	return len(c.frames)
}

// StackLen returns the total operand stack length.
func (c *Context) StackLen() int {
	return len(c.stack)
}

// Frame returns the current (topmost) frame.
func (c *Context) Frame() (Frame, bool) {
	if len(c.frames) == 0 {
		return Frame{}, false
	}
	return c.frames[len(c.frames)-1], true
}

func (c *Context) base() int {
	if len(c.frames) == 0 {
		return 0
	}
	return c.frames[len(c.frames)-1].StackBase
}

// Locals returns a copy of the current frame's slice of the operand stack.
func (c *Context) Locals() []Value {
	return append([]Value(nil), c.stack[c.base():]...)
}

// ---------------------------------------------------------------------------
// Stack operations
// ---------------------------------------------------------------------------

// Push appends v to the operand stack.
func (c *Context) Push(v Value) {
	c.stack = append(c.stack, v)
}

// Pop removes and returns the top of the stack. Popping into the caller's
// locals is an underflow.
func (c *Context) Pop() (Value, error) {
	if len(c.stack) <= c.base() {
		return Nil, newError(StackUnderflow, "pop on empty frame")
	}
	v := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	return v, nil
}

// Peek returns the top of the stack without removing it.
func (c *Context) Peek() (Value, error) {
	if len(c.stack) <= c.base() {
		return Nil, newError(StackUnderflow, "peek on empty frame")
	}
	return c.stack[len(c.stack)-1], nil
}

// PopN removes the top n values and returns them in their original order.
func (c *Context) PopN(n int) ([]Value, error) {
	if n < 0 || len(c.stack)-n < c.base() {
		return nil, newError(StackUnderflow, "pop %d with %d in frame", n, len(c.stack)-c.base())
	}
	split := len(c.stack) - n
	values := append([]Value(nil), c.stack[split:]...)
	c.stack = c.stack[:split]
	return values, nil
}

// Get reads local i of the current frame.
func (c *Context) Get(i int) (Value, error) {
	idx := c.base() + i
	if i < 0 || idx >= len(c.stack) {
		return Nil, newError(InvalidLocal, "local %d with %d in frame", i, len(c.stack)-c.base())
	}
	return c.stack[idx], nil
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

// Advance returns the current frame's program counter and moves it to the
// next instruction. It returns false once every frame has returned.
func (c *Context) Advance() (Address, bool) {
	if len(c.frames) == 0 {
		return 0, false
	}
	f := &c.frames[len(c.frames)-1]
	pc := f.PC
	f.PC++
	return pc, true
}

// Jump sets the current frame's program counter.
func (c *Context) Jump(target Address) error {
	if len(c.frames) == 0 {
		return newError(InvalidAddress, "jump to %d with no frame", target)
	}
	c.frames[len(c.frames)-1].PC = target
	return nil
}

// Call enters fn. The arguments and fn's own value must already be on the
// stack; Call appends the captured values and pushes the new frame. Arity
// is checked by the caller.
func (c *Context) Call(fn *Function) error {
	size := int(fn.NumParams) + 1
	if len(c.stack)-size < c.base() {
		return newError(StackUnderflow, "call needs %d values, frame has %d", size, len(c.stack)-c.base())
	}
	base := len(c.stack) - size
	c.stack = append(c.stack, fn.Closure...)
	c.frames = append(c.frames, Frame{PC: fn.Entry, StackBase: base})
	return nil
}

// Ret pops the current frame, discards its locals and leaves the frame's
// return value (the former top of stack) at the frame's stack base. When the
// last frame returns, that value is the context's result.
func (c *Context) Ret() error {
	if len(c.frames) == 0 {
		return newError(StackUnderflow, "return with no frame")
	}
	f := c.frames[len(c.frames)-1]
	if len(c.stack) <= f.StackBase {
		return newError(StackUnderflow, "return with empty frame")
	}
	c.frames = c.frames[:len(c.frames)-1]
	ret := c.stack[len(c.stack)-1]
	c.stack = append(c.stack[:f.StackBase], ret)
	return nil
}

// Result returns the value left by the outermost return.
func (c *Context) Result() (Value, error) {
	if !c.Done() || len(c.stack) == 0 {
		return Nil, newError(StackUnderflow, "context has no result")
	}
	return c.stack[len(c.stack)-1], nil
}
