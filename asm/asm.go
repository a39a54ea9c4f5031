// Package asm converts between assembly text and executable programs.
// The textual format is the instruction vocabulary itself: one instruction
// per line, a mnemonic followed by its decimal operands.
package asm

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/chazu/pushkin/vm"
)

// Assemble parses assembly text into a program.
//
// Mnemonics are case-insensitive and must carry exactly the operand count
// their opcode declares. ';' starts a comment running to end of line; blank
// lines are skipped. A leading all-digit token is treated as an address
// column and ignored, so disassembler output reassembles unchanged; a line
// holding only such a token is an error.
func Assemble(src string) (vm.Program, error) {
	var prog vm.Program
	for i, raw := range strings.Split(src, "\n") {
		lineNo := i + 1
		line := raw
		if idx := strings.IndexByte(line, ';'); idx >= 0 {
			line = line[:idx]
		}
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if isIndexToken(fields[0]) {
			if len(fields) == 1 {
				return nil, fmt.Errorf("line %d: missing mnemonic after index %q", lineNo, fields[0])
			}
			fields = fields[1:]
		}

		name := strings.ToUpper(fields[0])
		op, ok := vm.OpcodeByName(name)
		if !ok {
			return nil, fmt.Errorf("line %d: unknown mnemonic %q", lineNo, fields[0])
		}
		want := op.OperandCount()
		if got := len(fields) - 1; got != want {
			return nil, fmt.Errorf("line %d: %s takes %d operand(s), got %d", lineNo, name, want, got)
		}

		operands := make([]int64, 0, want)
		for _, field := range fields[1:] {
			v, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d: bad operand %q", lineNo, field)
			}
			operands = append(operands, v)
		}
		prog = append(prog, vm.Inst(op, operands...))
	}
	return prog, nil
}

// isIndexToken reports whether the token is a bare instruction index, as
// emitted by the disassembler's address column.
func isIndexToken(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
