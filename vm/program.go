package vm

import (
	"fmt"
	"strings"
)

// Program is an instruction stream together with its entry address.
type Program struct {
	Name   string             `cbor:"1,keyasint,omitempty"`
	Entry  Address            `cbor:"2,keyasint"`
	Code   []Instruction      `cbor:"3,keyasint"`
	Labels map[Address]string `cbor:"4,keyasint,omitempty"` // optional names for listings
}

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder
	if p.Name != "" {
		sb.WriteString(fmt.Sprintf("; === %s ===\n", p.Name))
	}
	sb.WriteString(fmt.Sprintf("; %d instructions, entry %04d\n\n", len(p.Code), p.Entry))
	for addr, in := range p.Code {
		a := Address(addr)
		if label, ok := p.Labels[a]; ok {
			sb.WriteString(label + ":\n")
		}
		marker := "  "
		if a == p.Entry {
			marker = "> "
		}
		sb.WriteString(fmt.Sprintf("%s%04d  %-20s", marker, a, in.Op.Name()))
		if operands := operandText(in); operands != "" {
			sb.WriteString(" " + operands)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

func operandText(in Instruction) string {
	switch in.Op {
	case OpLoad:
		return fmt.Sprintf("local=%d", in.Operand)
	case OpLiteralInt:
		return fmt.Sprintf("%d", in.Operand)
	case OpMakeClosure:
		return fmt.Sprintf("entry=%04d params=%d captures=%d", in.Operand, in.Params, in.Captures)
	case OpBranch, OpBranchIfNotZero:
		return fmt.Sprintf("-> %04d", in.Operand)
	case OpCall:
		return fmt.Sprintf("args=%d", in.Params)
	}
	return ""
}
