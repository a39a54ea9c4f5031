package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// Instruction is one opcode with its immediate operands. Instructions are
// treated as immutable once constructed and are owned by the program
// sequence they belong to.
type Instruction struct {
	Op       Opcode
	Operands []int64
}

// Inst constructs an instruction, copying the operand list so later
// mutation of the caller's slice cannot reach the program.
func Inst(op Opcode, operands ...int64) Instruction {
	in := Instruction{Op: op}
	if len(operands) > 0 {
		in.Operands = append([]int64(nil), operands...)
	}
	return in
}

// String renders the instruction in assembly form, e.g. "PUSH 5".
func (in Instruction) String() string {
	if len(in.Operands) == 0 {
		return in.Op.String()
	}
	parts := make([]string, 0, len(in.Operands)+1)
	parts = append(parts, in.Op.String())
	for _, operand := range in.Operands {
		parts = append(parts, strconv.FormatInt(operand, 10))
	}
	return strings.Join(parts, " ")
}

// Program is an ordered, finite instruction sequence indexed from 0.
type Program []Instruction

// String renders the program one instruction per line.
func (p Program) String() string {
	var b strings.Builder
	for _, in := range p {
		fmt.Fprintln(&b, in.String())
	}
	return b.String()
}
