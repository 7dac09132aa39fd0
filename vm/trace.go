package vm

import (
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"
)

// ---------------------------------------------------------------------------
// Tracing
// ---------------------------------------------------------------------------

// TraceEvent describes one executed instruction and the state of the
// current frame after it ran.
type TraceEvent struct {
	Address     Address
	Instruction Instruction
	Depth       int      // frames remaining after the instruction
	StackBase   int      // base of the current frame, when Depth > 0
	StackLen    int      // length of the whole operand stack
	Locals      []string // rendered locals of the current frame, bottom first
}

// Tracer receives an event per executed instruction. The machine builds no
// events when no tracer is installed.
type Tracer interface {
	Trace(ev TraceEvent)
}

// TracerFunc adapts a function to Tracer.
type TracerFunc func(ev TraceEvent)

// Trace implements Tracer.
func (f TracerFunc) Trace(ev TraceEvent) { f(ev) }

// WriterTracer prints a line per instruction followed by a dump of the
// current frame, top of stack first.
type WriterTracer struct {
	w io.Writer
}

// NewWriterTracer creates a tracer that writes to w.
func NewWriterTracer(w io.Writer) *WriterTracer {
	return &WriterTracer{w: w}
}

// Trace implements Tracer.
func (t *WriterTracer) Trace(ev TraceEvent) {
	fmt.Fprintf(t.w, "%04d -> %s\n", ev.Address, ev.Instruction)
	if ev.Depth == 0 {
		return
	}
	fmt.Fprintf(t.w, "stack (+%d):\n", ev.StackBase)
	for i := len(ev.Locals) - 1; i >= 0; i-- {
		fmt.Fprintf(t.w, "%4d| %s\n", i, ev.Locals[i])
	}
}

// LogTracer forwards events to a commonlog logger at debug level.
type LogTracer struct {
	log commonlog.Logger
}

// NewLogTracer creates a tracer that logs through log.
func NewLogTracer(log commonlog.Logger) *LogTracer {
	return &LogTracer{log: log}
}

// Trace implements Tracer.
func (t *LogTracer) Trace(ev TraceEvent) {
	if !t.log.AllowLevel(commonlog.Debug) {
		return
	}
	t.log.Debugf("%04d %-28s depth=%d base=%d [%s]",
		ev.Address, ev.Instruction, ev.Depth, ev.StackBase, strings.Join(ev.Locals, " "))
}

// Tee returns a Tracer that forwards every event to each of ts in order.
func Tee(ts ...Tracer) Tracer {
	if len(ts) == 1 {
		return ts[0]
	}
	return TracerFunc(func(ev TraceEvent) {
		for _, t := range ts {
			t.Trace(ev)
		}
	})
}
