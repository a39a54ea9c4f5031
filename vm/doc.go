// Package vm implements the pushkin stack machine.
//
// This package contains:
//   - Opcode vocabulary and per-opcode metadata
//   - Immutable instruction and program representation
//   - Bounded operand stack and sparse addressed memory
//   - Fetch-decode-execute engine with fault containment
//   - Machine facade (load / run / dump state)
package vm
