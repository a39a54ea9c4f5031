package vm

import (
	"errors"
	"fmt"
)

// Dispatch errors. All of them are local to a single instruction: the
// engine catches them at the dispatch boundary, records a Fault, and halts.
// None of them ever propagate out of Run.
var (
	// ErrStackOverflow is raised by a push onto a full operand stack.
	ErrStackOverflow = errors.New("stack overflow")

	// ErrStackUnderflow is raised when an operation needs more stack
	// elements than are present.
	ErrStackUnderflow = errors.New("stack underflow")

	// ErrEmptyStack is raised by peeking an empty stack.
	ErrEmptyStack = errors.New("stack is empty")

	// ErrDivisionByZero is raised by DIV with a zero divisor.
	ErrDivisionByZero = errors.New("division by zero")

	// ErrModuloByZero is raised by MOD with a zero divisor.
	ErrModuloByZero = errors.New("modulo by zero")

	// ErrAddressOutOfBounds is raised by memory access outside [0, MaxAddress].
	ErrAddressOutOfBounds = errors.New("memory address out of bounds")

	// ErrUnknownInstruction is raised for opcodes without dispatch
	// semantics, including the reserved control-transfer opcodes.
	ErrUnknownInstruction = errors.New("unknown instruction")

	// ErrMalformedInstruction is raised when an instruction carries fewer
	// operands than its opcode requires.
	ErrMalformedInstruction = errors.New("malformed instruction")

	// ErrCallStackOverflow and ErrReturnWithoutCall are reserved for a
	// future CALL/RET implementation. The call stack raises them, but no
	// dispatched opcode reaches it.
	ErrCallStackOverflow = errors.New("call stack overflow")
	ErrReturnWithoutCall = errors.New("return without call")
)

// Fault records one contained dispatch error: the instruction index it
// occurred at, the opcode being dispatched, and the underlying error.
type Fault struct {
	PC  int
	Op  Opcode
	Err error
}

// Error implements the error interface.
func (f *Fault) Error() string {
	return fmt.Sprintf("runtime error at pc=%d: %v", f.PC, f.Err)
}

// Unwrap exposes the underlying dispatch error to errors.Is / errors.As.
func (f *Fault) Unwrap() error {
	return f.Err
}
