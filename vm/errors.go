package vm

import (
	"fmt"
	"strconv"
)

// Errno describes the reason an execution was aborted.
type Errno int

// VM traps. TypeMismatch and ArityMismatch indicate plausibly mis-generated
// bytecode; the rest are violations of the stack or pool contracts.
const (
	TypeMismatch Errno = iota + 1
	ArityMismatch
	StackUnderflow
	InvalidLocal
	InvalidHandle
	InvalidAddress
	IllegalInstruction
)

var strErrno = map[Errno]string{
	TypeMismatch:       "type mismatch",
	ArityMismatch:      "arity mismatch",
	StackUnderflow:     "stack underflow",
	InvalidLocal:       "invalid local index",
	InvalidHandle:      "invalid handle",
	InvalidAddress:     "invalid address",
	IllegalInstruction: "illegal instruction",
}

func (e Errno) Error() string {
	if s, ok := strErrno[e]; ok {
		return s
	}
	return "errno " + strconv.Itoa(int(e))
}

// Internal reports whether e is an internal invariant failure rather than a
// bytecode typing error.
func (e Errno) Internal() bool {
	switch e {
	case StackUnderflow, InvalidLocal, InvalidHandle, InvalidAddress, IllegalInstruction:
		return true
	}
	return false
}

// Error describes the cause and the context of an aborted execution.
type Error struct {
	Errno  Errno       // nature of the trap
	Detail string      // human-readable specifics, may be empty
	PC     Address     // address of the faulting instruction, -1 if unknown
	Instr  Instruction // faulting instruction when PC >= 0
}

func (e *Error) Error() string {
	msg := "clasp: " + e.Errno.Error()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.PC >= 0 {
		msg += fmt.Sprintf(" at %04d (%s)", e.PC, e.Instr)
	}
	return msg
}

// Unwrap allows errors.Is(err, vm.ArityMismatch).
func (e *Error) Unwrap() error {
	return e.Errno
}

func newError(errno Errno, format string, args ...any) *Error {
	return &Error{Errno: errno, Detail: fmt.Sprintf(format, args...), PC: -1}
}

func typeMismatch(format string, args ...any) *Error {
	return newError(TypeMismatch, format, args...)
}

// at attaches the faulting location to err if it is a *Error without one.
func at(err error, pc Address, in Instruction) error {
	if e, ok := err.(*Error); ok && e.PC < 0 {
		e.PC = pc
		e.Instr = in
	}
	return err
}
