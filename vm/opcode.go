package vm

import "fmt"

// Opcode identifies a single machine operation.
type Opcode byte

// Opcode definitions, grouped by category.
const (
	// Stack manipulation (0x00-0x0F)
	OpPush Opcode = 0x00
	OpPop  Opcode = 0x01
	OpDup  Opcode = 0x02
	OpSwap Opcode = 0x03

	// Arithmetic and comparison (0x10-0x1F)
	OpAdd Opcode = 0x10
	OpSub Opcode = 0x11
	OpMul Opcode = 0x12
	OpDiv Opcode = 0x13
	OpMod Opcode = 0x14
	OpCmp Opcode = 0x15

	// Memory access (0x20-0x2F)
	OpLoad  Opcode = 0x20
	OpStore Opcode = 0x21

	// I/O (0x30-0x3F)
	OpPrint Opcode = 0x30

	// Lifecycle (0x40-0x4F)
	OpHalt Opcode = 0x40

	// Control transfer (0x50-0x5F). Reserved mnemonics: they are part of
	// the instruction vocabulary but carry no dispatch semantics, so the
	// engine treats them as unknown instructions.
	OpJmp  Opcode = 0x50
	OpJz   Opcode = 0x51
	OpJnz  Opcode = 0x52
	OpCall Opcode = 0x53
	OpRet  Opcode = 0x54
)

// OpcodeInfo describes the static properties of an opcode.
type OpcodeInfo struct {
	Name     string // assembly mnemonic
	Operands int    // immediate operands the instruction must carry
}

var opcodeInfoTable = map[Opcode]OpcodeInfo{
	OpPush:  {Name: "PUSH", Operands: 1},
	OpPop:   {Name: "POP", Operands: 0},
	OpDup:   {Name: "DUP", Operands: 0},
	OpSwap:  {Name: "SWAP", Operands: 0},
	OpAdd:   {Name: "ADD", Operands: 0},
	OpSub:   {Name: "SUB", Operands: 0},
	OpMul:   {Name: "MUL", Operands: 0},
	OpDiv:   {Name: "DIV", Operands: 0},
	OpMod:   {Name: "MOD", Operands: 0},
	OpCmp:   {Name: "CMP", Operands: 0},
	OpLoad:  {Name: "LOAD", Operands: 1},
	OpStore: {Name: "STORE", Operands: 1},
	OpPrint: {Name: "PRINT", Operands: 0},
	OpHalt:  {Name: "HALT", Operands: 0},
	OpJmp:   {Name: "JMP", Operands: 1},
	OpJz:    {Name: "JZ", Operands: 1},
	OpJnz:   {Name: "JNZ", Operands: 1},
	OpCall:  {Name: "CALL", Operands: 1},
	OpRet:   {Name: "RET", Operands: 0},
}

// opcodesByName maps mnemonics back to opcodes, for assemblers and loaders.
var opcodesByName = make(map[string]Opcode, len(opcodeInfoTable))

func init() {
	for op, info := range opcodeInfoTable {
		opcodesByName[info.Name] = op
	}
}

// GetOpcodeInfo returns the metadata for an opcode. Unknown opcodes get a
// synthetic UNKNOWN entry rather than an error.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op)), Operands: 0}
}

// OpcodeByName looks up an opcode by its mnemonic.
func OpcodeByName(name string) (Opcode, bool) {
	op, ok := opcodesByName[name]
	return op, ok
}

// String returns the opcode's mnemonic.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// OperandCount returns the number of immediate operands the opcode requires.
func (op Opcode) OperandCount() int {
	return GetOpcodeInfo(op).Operands
}

// Known reports whether the opcode is part of the instruction vocabulary.
// Reserved control-transfer opcodes are known even though they do not
// dispatch.
func (op Opcode) Known() bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// IsControlTransfer reports whether the opcode is one of the reserved
// branching operations.
func (op Opcode) IsControlTransfer() bool {
	switch op {
	case OpJmp, OpJz, OpJnz, OpCall, OpRet:
		return true
	}
	return false
}

// AllOpcodes returns every opcode in the vocabulary in definition order.
func AllOpcodes() []Opcode {
	return []Opcode{
		OpPush, OpPop, OpDup, OpSwap,
		OpAdd, OpSub, OpMul, OpDiv, OpMod, OpCmp,
		OpLoad, OpStore,
		OpPrint,
		OpHalt,
		OpJmp, OpJz, OpJnz, OpCall, OpRet,
	}
}
