package asm

import (
	"fmt"
	"strings"

	"github.com/chazu/pushkin/vm"
)

// Disassemble renders a program as assembly text, one instruction per line
// behind a four-digit index column. The output reassembles to the same
// program.
func Disassemble(p vm.Program) string {
	return DisassembleWithName(p, "")
}

// DisassembleWithName prepends a comment header naming the listing.
func DisassembleWithName(p vm.Program, name string) string {
	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "; === %s ===\n", name)
	}
	for i, in := range p {
		fmt.Fprintf(&b, "%04d  %s\n", i, in.String())
	}
	return b.String()
}
