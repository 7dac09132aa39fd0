package vm

import (
	"fmt"
	"io"
	"sort"
)

// Profiler counts executed instructions and function invocations. It is a
// Tracer, so it only costs anything when installed with WithTracer.
//
// A function is identified by its entry address: the first instruction
// executed after a call is the callee's entry.
type Profiler struct {
	// Entries invoked at least this many times are reported as hot.
	HotThreshold uint64

	instructions uint64
	opcodes      map[Opcode]uint64
	calls        map[Address]uint64
	afterCall    bool
	maxDepth     int
}

// FunctionProfile is the invocation count of one function.
type FunctionProfile struct {
	Entry Address
	Calls uint64
}

// NewProfiler creates a profiler with the default hot threshold.
func NewProfiler() *Profiler {
	return &Profiler{
		HotThreshold: 100,
		opcodes:      make(map[Opcode]uint64),
		calls:        make(map[Address]uint64),
	}
}

// Trace implements Tracer.
func (p *Profiler) Trace(ev TraceEvent) {
	p.instructions++
	p.opcodes[ev.Instruction.Op]++
	if p.afterCall {
		p.calls[ev.Address]++
	}
	p.afterCall = ev.Instruction.Op == OpCall
	if ev.Depth > p.maxDepth {
		p.maxDepth = ev.Depth
	}
}

// Instructions returns the number of instructions executed.
func (p *Profiler) Instructions() uint64 {
	return p.instructions
}

// OpcodeCount returns how often op was executed.
func (p *Profiler) OpcodeCount(op Opcode) uint64 {
	return p.opcodes[op]
}

// MaxDepth returns the deepest frame count observed.
func (p *Profiler) MaxDepth() int {
	return p.maxDepth
}

// Functions returns the invocation counts of every called function, most
// called first.
func (p *Profiler) Functions() []FunctionProfile {
	out := make([]FunctionProfile, 0, len(p.calls))
	for entry, n := range p.calls {
		out = append(out, FunctionProfile{Entry: entry, Calls: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Calls != out[j].Calls {
			return out[i].Calls > out[j].Calls
		}
		return out[i].Entry < out[j].Entry
	})
	return out
}

// Hot returns the functions invoked at least HotThreshold times.
func (p *Profiler) Hot() []FunctionProfile {
	var hot []FunctionProfile
	for _, f := range p.Functions() {
		if f.Calls >= p.HotThreshold {
			hot = append(hot, f)
		}
	}
	return hot
}

// Report writes a summary. labels names function entries, as in
// Program.Labels, and may be nil.
func (p *Profiler) Report(w io.Writer, labels map[Address]string) {
	fmt.Fprintf(w, "instructions: %d\nmax depth: %d\n", p.instructions, p.maxDepth)

	ops := make([]Opcode, 0, len(p.opcodes))
	for op := range p.opcodes {
		ops = append(ops, op)
	}
	sort.Slice(ops, func(i, j int) bool { return ops[i] < ops[j] })
	for _, op := range ops {
		fmt.Fprintf(w, "  %-16s %d\n", op.Name(), p.opcodes[op])
	}

	for _, f := range p.Functions() {
		name := labels[f.Entry]
		if name == "" {
			name = fmt.Sprintf("%04d", f.Entry)
		}
		hot := ""
		if f.Calls >= p.HotThreshold {
			hot = " (hot)"
		}
		fmt.Fprintf(w, "  call %-11s %d%s\n", name, f.Calls, hot)
	}
}
