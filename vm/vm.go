package vm

import (
	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// VM: the clasp virtual machine
// ---------------------------------------------------------------------------

// VM runs one instruction stream against one Pool. It drives a single
// Context to completion per Exec; it is not safe for concurrent use.
type VM struct {
	code []Instruction
	pool *Pool

	// Trace sink, nil when tracing is off.
	tracer Tracer
	log    commonlog.Logger

	// Collect at a safe point once the pool holds this many objects
	// (0 = only when an execution completes).
	collectThreshold int

	// State of the current run.
	thread Value    // handle of the running Context
	start  *Pool    // pool as it was when the run started
	keep   []*Value // external values kept alive and remapped
	saved  []Value  // their values when the run started

	steps       uint64
	collections int
}

// Option configures a VM.
type Option func(*VM)

// WithTracer installs a trace sink notified after every instruction.
func WithTracer(t Tracer) Option {
	return func(m *VM) { m.tracer = t }
}

// WithLogger sets the logger used for collection and failure messages.
func WithLogger(log commonlog.Logger) Option {
	return func(m *VM) { m.log = log }
}

// WithCollectThreshold enables safe-point collection whenever the pool
// reaches n objects. n <= 0 disables it.
func WithCollectThreshold(n int) Option {
	return func(m *VM) { m.collectThreshold = n }
}

// NewVM creates a VM for code.
func NewVM(code []Instruction, opts ...Option) *VM {
	m := &VM{
		code:   code,
		pool:   NewPool(),
		log:    commonlog.GetLogger("clasp.vm"),
		thread: Nil,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Exec runs code from entry on a fresh VM and returns the compacted result
// together with the pool it lives in.
func Exec(code []Instruction, entry Address, opts ...Option) (Value, *Pool, error) {
	m := NewVM(code, opts...)
	v, err := m.Exec(entry)
	return v, m.Pool(), err
}

// Pool returns the VM's current pool generation.
func (m *VM) Pool() *Pool {
	return m.pool
}

// Describe renders v against the VM's current pool.
func (m *VM) Describe(v Value) string {
	return m.pool.Describe(v)
}

// Steps returns the total number of instructions executed.
func (m *VM) Steps() uint64 {
	return m.steps
}

// Collections returns the number of compactions performed.
func (m *VM) Collections() int {
	return m.collections
}

// Running returns true while a started context has frames left.
func (m *VM) Running() bool {
	th, err := m.Thread()
	return err == nil && !th.Done()
}

// Thread returns the running Context.
func (m *VM) Thread() (*Context, error) {
	return m.pool.Context(m.thread)
}

// collect compacts the pool rooted at the running context, roots, and the
// kept external values, then remaps everything the VM holds outside the pool.
func (m *VM) collect(roots ...Value) *Updater {
	all := append([]Value{m.thread}, roots...)
	for _, k := range m.keep {
		all = append(all, *k)
	}
	before := m.pool.Len()
	next, u := m.pool.Compact(all...)
	m.pool = next
	if m.thread.IsHandle() {
		u.Update(&m.thread)
	}
	for _, k := range m.keep {
		u.Update(k)
	}
	m.collections++
	m.log.Debugf("collected generation %d: %d -> %d objects", next.Generation(), before, next.Len())
	return u
}
