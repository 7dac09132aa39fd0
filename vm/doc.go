// Package vm implements the clasp virtual machine.
//
// This package contains:
//   - the Value tagged union (nil, integer, pool handle)
//   - the object Pool with mark-and-compact collection
//   - Contexts: operand stack, frames and the calling convention
//   - the instruction set, a label-resolving Builder and the interpreter
//   - Tracers: an instruction trace writer, a logger bridge and a Profiler
package vm
