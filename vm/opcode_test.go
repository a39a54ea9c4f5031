package vm

import (
	"strings"
	"testing"
)

func TestOpcodeNames(t *testing.T) {
	tests := []struct {
		op   Opcode
		want string
	}{
		{OpPush, "PUSH"},
		{OpPop, "POP"},
		{OpDup, "DUP"},
		{OpSwap, "SWAP"},
		{OpAdd, "ADD"},
		{OpSub, "SUB"},
		{OpMul, "MUL"},
		{OpDiv, "DIV"},
		{OpMod, "MOD"},
		{OpCmp, "CMP"},
		{OpLoad, "LOAD"},
		{OpStore, "STORE"},
		{OpPrint, "PRINT"},
		{OpHalt, "HALT"},
		{OpJmp, "JMP"},
		{OpJz, "JZ"},
		{OpJnz, "JNZ"},
		{OpCall, "CALL"},
		{OpRet, "RET"},
	}
	for _, tt := range tests {
		if got := tt.op.String(); got != tt.want {
			t.Errorf("Opcode(0x%02X).String() = %q, want %q", byte(tt.op), got, tt.want)
		}
	}
}

func TestOpcodeByNameRoundTrip(t *testing.T) {
	for _, op := range AllOpcodes() {
		back, ok := OpcodeByName(op.String())
		if !ok {
			t.Errorf("OpcodeByName(%q) not found", op.String())
			continue
		}
		if back != op {
			t.Errorf("OpcodeByName(%q) = 0x%02X, want 0x%02X", op.String(), byte(back), byte(op))
		}
	}
	if _, ok := OpcodeByName("FROB"); ok {
		t.Error("OpcodeByName accepted a mnemonic outside the vocabulary")
	}
}

func TestOpcodeOperandCounts(t *testing.T) {
	withOperand := map[Opcode]bool{
		OpPush: true, OpLoad: true, OpStore: true,
		OpJmp: true, OpJz: true, OpJnz: true, OpCall: true,
	}
	for _, op := range AllOpcodes() {
		want := 0
		if withOperand[op] {
			want = 1
		}
		if got := op.OperandCount(); got != want {
			t.Errorf("%s.OperandCount() = %d, want %d", op, got, want)
		}
	}
}

func TestOpcodeControlTransferSet(t *testing.T) {
	control := map[Opcode]bool{
		OpJmp: true, OpJz: true, OpJnz: true, OpCall: true, OpRet: true,
	}
	for _, op := range AllOpcodes() {
		if got := op.IsControlTransfer(); got != control[op] {
			t.Errorf("%s.IsControlTransfer() = %v, want %v", op, got, control[op])
		}
	}
}

func TestOpcodeUnknown(t *testing.T) {
	op := Opcode(0xEE)
	if op.Known() {
		t.Error("Opcode(0xEE).Known() = true, want false")
	}
	if !strings.HasPrefix(op.String(), "UNKNOWN(0x") {
		t.Errorf("Opcode(0xEE).String() = %q, want UNKNOWN(0x..) form", op.String())
	}
	if op.OperandCount() != 0 {
		t.Errorf("unknown opcode OperandCount = %d, want 0", op.OperandCount())
	}
}

func TestAllOpcodesComplete(t *testing.T) {
	all := AllOpcodes()
	if len(all) != len(opcodeInfoTable) {
		t.Fatalf("AllOpcodes returned %d opcodes, table has %d", len(all), len(opcodeInfoTable))
	}
	seen := make(map[Opcode]bool, len(all))
	for _, op := range all {
		if !op.Known() {
			t.Errorf("AllOpcodes contains unknown opcode 0x%02X", byte(op))
		}
		if seen[op] {
			t.Errorf("AllOpcodes contains 0x%02X twice", byte(op))
		}
		seen[op] = true
	}
}

func TestInstructionString(t *testing.T) {
	tests := []struct {
		in   Instruction
		want string
	}{
		{Inst(OpPush, 5), "PUSH 5"},
		{Inst(OpPush, -17), "PUSH -17"},
		{Inst(OpHalt), "HALT"},
		{Inst(OpStore, 0), "STORE 0"},
	}
	for _, tt := range tests {
		if got := tt.in.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestInstructionCopiesOperands(t *testing.T) {
	operands := []int64{3}
	in := Inst(OpPush, operands...)
	operands[0] = 99
	if in.Operands[0] != 3 {
		t.Errorf("instruction shares caller's operand slice: got %d, want 3", in.Operands[0])
	}
}
