package vm

import "fmt"

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode identifies an instruction.
type Opcode byte

const (
	OpLoad            Opcode = 0x01 // push local Operand
	OpLiteralInt      Opcode = 0x02 // push integer Operand
	OpAdd             Opcode = 0x10 // pop b, pop a, push a+b
	OpSub             Opcode = 0x11 // pop b, pop a, push a-b
	OpMakeClosure     Opcode = 0x20 // pop Captures values, push Function{Operand, Params, ...}
	OpBranch          Opcode = 0x30 // jump to Operand
	OpBranchIfNotZero Opcode = 0x31 // pop integer, jump to Operand if non-zero
	OpCall            Opcode = 0x40 // call the function on top of stack with Params arguments
	OpReturn          Opcode = 0x41 // return top of stack from the current frame
)

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	StackEffect int    // net effect on the current frame's stack (-1 = variable)
}

var opcodeTable = map[Opcode]OpcodeInfo{
	OpLoad:            {"LOAD", 1},
	OpLiteralInt:      {"LITERAL_INT", 1},
	OpAdd:             {"ADD", -1},
	OpSub:             {"SUB", -1},
	OpMakeClosure:     {"MAKE_CLOSURE", -1}, // pops Captures, pushes 1
	OpBranch:          {"BRANCH", 0},
	OpBranchIfNotZero: {"BRANCH_IF_NOT_ZERO", -1},
	OpCall:            {"CALL", -1}, // enters a new frame
	OpReturn:          {"RETURN", -1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// Name returns the human-readable name for an opcode.
func (op Opcode) Name() string {
	return op.Info().Name
}

// String implements the Stringer interface.
func (op Opcode) String() string {
	return op.Name()
}

// ---------------------------------------------------------------------------
// Instruction
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction. Which fields are meaningful
// depends on Op:
//
//	Load              Operand = local index
//	LiteralInt        Operand = integer
//	MakeClosure       Operand = entry, Params = arity, Captures = closure length
//	Branch*           Operand = target address
//	Call              Params = argument count
type Instruction struct {
	Op       Opcode `cbor:"1,keyasint"`
	Operand  int64  `cbor:"2,keyasint,omitempty"`
	Params   uint32 `cbor:"3,keyasint,omitempty"`
	Captures uint32 `cbor:"4,keyasint,omitempty"`
}

// Load pushes local i of the current frame.
func Load(i int) Instruction { return Instruction{Op: OpLoad, Operand: int64(i)} }

// LiteralInt pushes the integer n.
func LiteralInt(n int64) Instruction { return Instruction{Op: OpLiteralInt, Operand: n} }

// Add pops two integers and pushes their sum.
func Add() Instruction { return Instruction{Op: OpAdd} }

// Sub pops b then a and pushes a-b.
func Sub() Instruction { return Instruction{Op: OpSub} }

// MakeClosure pops closureLen values and pushes a new Function.
func MakeClosure(entry Address, numParams, closureLen uint32) Instruction {
	return Instruction{Op: OpMakeClosure, Operand: int64(entry), Params: numParams, Captures: closureLen}
}

// Branch jumps unconditionally.
func Branch(target Address) Instruction { return Instruction{Op: OpBranch, Operand: int64(target)} }

// BranchIfNotZero pops an integer and jumps if it is not zero.
func BranchIfNotZero(target Address) Instruction {
	return Instruction{Op: OpBranchIfNotZero, Operand: int64(target)}
}

// Call calls the function on top of the stack with numArgs arguments.
func Call(numArgs uint32) Instruction { return Instruction{Op: OpCall, Params: numArgs} }

// Return returns the top of the stack to the caller.
func Return() Instruction { return Instruction{Op: OpReturn} }

// String returns the mnemonic form used by traces and listings.
func (in Instruction) String() string {
	switch in.Op {
	case OpLoad:
		return fmt.Sprintf("load %d", in.Operand)
	case OpLiteralInt:
		return fmt.Sprintf("literal %d", in.Operand)
	case OpAdd:
		return "add"
	case OpSub:
		return "sub"
	case OpMakeClosure:
		return fmt.Sprintf("closure addr:%d params:%d closure:%d", in.Operand, in.Params, in.Captures)
	case OpBranch:
		return fmt.Sprintf("branch %d", in.Operand)
	case OpBranchIfNotZero:
		return fmt.Sprintf("branch_nz %d", in.Operand)
	case OpCall:
		return fmt.Sprintf("call args:%d", in.Params)
	case OpReturn:
		return "return"
	}
	return in.Op.Name()
}

// ---------------------------------------------------------------------------
// Builder: helper for constructing instruction streams
// ---------------------------------------------------------------------------

// Label is a forward reference to an address.
type Label struct {
	resolved bool
	target   Address
	refs     []Address // instructions whose Operand must be patched
}

// Builder assembles an instruction stream with symbolic jump and closure
// targets.
type Builder struct {
	code   []Instruction
	labels []*Label
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{code: make([]Instruction, 0, 32)}
}

// Len returns the address the next instruction will occupy.
func (b *Builder) Len() Address {
	return Address(len(b.code))
}

// Emit appends in and returns its address.
func (b *Builder) Emit(in Instruction) Address {
	addr := b.Len()
	b.code = append(b.code, in)
	return addr
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	l := &Label{}
	b.labels = append(b.labels, l)
	return l
}

// Mark resolves label to the current position.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("label already resolved")
	}
	label.resolved = true
	label.target = b.Len()
	for _, ref := range label.refs {
		b.code[ref].Operand = int64(label.target)
	}
	label.refs = nil
}

// EmitTo emits in with its Operand pointing at label.
func (b *Builder) EmitTo(in Instruction, label *Label) Address {
	if label.resolved {
		in.Operand = int64(label.target)
		return b.Emit(in)
	}
	addr := b.Emit(in)
	label.refs = append(label.refs, addr)
	return addr
}

// Code returns the assembled stream, or an error if a label was referenced
// but never marked.
func (b *Builder) Code() ([]Instruction, error) {
	for _, l := range b.labels {
		if !l.resolved && len(l.refs) > 0 {
			return nil, fmt.Errorf("unresolved label referenced at %d", l.refs[0])
		}
	}
	return b.code, nil
}
