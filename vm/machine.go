package vm

import (
	"io"

	"github.com/rs/zerolog"
)

// Machine is the consumer-facing facade: one engine behind the three
// operations callers actually use. It carries no state of its own.
type Machine struct {
	engine *Engine
}

// MachineOption configures a Machine at construction time.
type MachineOption func(*Machine)

// WithOutput directs PRINT output and state dumps to w.
func WithOutput(w io.Writer) MachineOption {
	return func(m *Machine) { m.engine.SetOutput(w) }
}

// WithLogger installs the diagnostic logger.
func WithLogger(log zerolog.Logger) MachineOption {
	return func(m *Machine) { m.engine.SetLogger(log) }
}

// WithTrace enables per-instruction trace logging.
func WithTrace(on bool) MachineOption {
	return func(m *Machine) { m.engine.SetTrace(on) }
}

// NewMachine builds a machine around a fresh engine.
func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{engine: NewEngine()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// LoadProgram hands a program to the engine. Loading cannot fail;
// malformed instructions surface lazily at dispatch time.
func (m *Machine) LoadProgram(p Program) {
	m.engine.Load(p)
}

// Run executes until the engine halts, faults, or runs off the end of the
// program. It never returns an error; inspect Fault afterwards.
func (m *Machine) Run() {
	m.engine.Run()
}

// DumpState writes the operand stack size and top value to the output
// writer. Purely observational.
func (m *Machine) DumpState() {
	m.engine.DumpStack()
}

// Fault returns the error that ended the last run, if any.
func (m *Machine) Fault() *Fault {
	return m.engine.Fault()
}

// Running reports whether the engine still has the running flag set.
func (m *Machine) Running() bool {
	return m.engine.Running()
}

// Engine exposes the underlying engine for inspection and single-stepping.
func (m *Machine) Engine() *Engine {
	return m.engine
}
