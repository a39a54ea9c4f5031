// Package bytecode reads and writes the on-disk program container: a
// four-byte magic, a big-endian format version, and a CBOR payload
// carrying the named instruction sequence.
package bytecode

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/chazu/pushkin/vm"
)

// Magic identifies a pushkin bytecode file.
var Magic = [4]byte{'P', 'K', 'B', 'C'}

// Version is the container format version this package writes.
const Version uint16 = 1

// headerLen is the byte length of magic plus version.
const headerLen = 6

// File is the decoded container payload.
type File struct {
	Name string        `cbor:"1,keyasint,omitempty"`
	Code []Instruction `cbor:"2,keyasint"`
}

// Instruction is the wire form of one instruction.
type Instruction struct {
	Op       byte    `cbor:"1,keyasint"`
	Operands []int64 `cbor:"2,keyasint,omitempty"`
}

var encMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("bytecode: failed to create CBOR enc mode: %v", err))
	}
	encMode = em
}

// FromProgram wraps a program in a container.
func FromProgram(name string, p vm.Program) *File {
	f := &File{Name: name, Code: make([]Instruction, 0, len(p))}
	for _, in := range p {
		f.Code = append(f.Code, Instruction{
			Op:       byte(in.Op),
			Operands: append([]int64(nil), in.Operands...),
		})
	}
	return f
}

// Program validates the payload against the opcode vocabulary and converts
// it to an executable program. Corrupt files fail here, at load time; the
// engine still performs its own lazy checks at dispatch.
func (f *File) Program() (vm.Program, error) {
	prog := make(vm.Program, 0, len(f.Code))
	for i, in := range f.Code {
		op := vm.Opcode(in.Op)
		if !op.Known() {
			return nil, fmt.Errorf("bytecode: instruction %d: unknown opcode 0x%02X", i, in.Op)
		}
		if got, want := len(in.Operands), op.OperandCount(); got != want {
			return nil, fmt.Errorf("bytecode: instruction %d: %s takes %d operand(s), got %d", i, op, want, got)
		}
		prog = append(prog, vm.Inst(op, in.Operands...))
	}
	return prog, nil
}

// Marshal serializes a container: magic, version, canonical CBOR payload.
func Marshal(f *File) ([]byte, error) {
	payload, err := encMode.Marshal(f)
	if err != nil {
		return nil, fmt.Errorf("bytecode: marshal payload: %w", err)
	}
	buf := make([]byte, 0, headerLen+len(payload))
	buf = append(buf, Magic[:]...)
	buf = binary.BigEndian.AppendUint16(buf, Version)
	return append(buf, payload...), nil
}

// Unmarshal deserializes a container, checking magic and version first.
func Unmarshal(data []byte) (*File, error) {
	if len(data) < headerLen {
		return nil, fmt.Errorf("bytecode: unexpected end of file reading header")
	}
	if !bytes.Equal(data[:len(Magic)], Magic[:]) {
		return nil, fmt.Errorf("bytecode: bad magic %q", data[:len(Magic)])
	}
	if v := binary.BigEndian.Uint16(data[len(Magic):headerLen]); v != Version {
		return nil, fmt.Errorf("bytecode: unsupported version %d (want %d)", v, Version)
	}
	var f File
	if err := cbor.Unmarshal(data[headerLen:], &f); err != nil {
		return nil, fmt.Errorf("bytecode: unmarshal payload: %w", err)
	}
	return &f, nil
}

// IsBytecode reports whether data starts with the container magic. Useful
// for telling binary programs apart from assembly text.
func IsBytecode(data []byte) bool {
	return len(data) >= len(Magic) && bytes.Equal(data[:len(Magic)], Magic[:])
}
