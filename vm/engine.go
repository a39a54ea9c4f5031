package vm

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
)

// Engine owns one program and the state it executes against: operand
// stack, memory, call stack, program counter, and running flag. All of
// that state lives on the struct, so any number of engines can coexist.
//
// The engine is single-threaded and synchronous: Run loops on the calling
// goroutine until the program halts, faults, or runs off the end. There is
// no cancellation point; drive the engine from a dedicated goroutine if
// callers must not block.
type Engine struct {
	prog    Program
	pc      int
	running bool

	stack *OperandStack
	mem   *Memory
	calls *CallStack

	out   io.Writer
	log   zerolog.Logger
	trace bool
	fault *Fault
}

// NewEngine returns an engine with empty state. PRINT and state dumps go
// to stdout and diagnostics to stderr until reconfigured.
func NewEngine() *Engine {
	return &Engine{
		stack: NewOperandStack(),
		mem:   NewMemory(),
		calls: NewCallStack(),
		out:   os.Stdout,
		log:   zerolog.New(os.Stderr).With().Timestamp().Logger(),
	}
}

// SetOutput redirects PRINT output and state dumps.
func (e *Engine) SetOutput(w io.Writer) {
	e.out = w
}

// SetLogger replaces the diagnostic logger.
func (e *Engine) SetLogger(log zerolog.Logger) {
	e.log = log
}

// SetTrace toggles per-instruction trace logging.
func (e *Engine) SetTrace(on bool) {
	e.trace = on
}

// Load replaces the program and rewinds: pc returns to 0, the running flag
// is set, the call stack is cleared, and any previous fault is discarded.
// The operand stack and memory are deliberately left alone; their contents
// persist across loads.
func (e *Engine) Load(p Program) {
	e.prog = append(Program(nil), p...)
	e.pc = 0
	e.running = true
	e.calls.Clear()
	e.fault = nil
}

// Run drives the dispatch loop until the running flag clears or the
// program counter passes the end of the program. It never returns an
// error: a dispatch failure is contained at the faulting instruction,
// logged with its pc, and turned into a halt. Inspect Fault afterwards.
func (e *Engine) Run() {
	for e.running && e.pc < len(e.prog) {
		e.step()
	}
}

// Step dispatches a single instruction if the engine can make progress,
// reporting whether it did.
func (e *Engine) Step() bool {
	if !e.running || e.pc >= len(e.prog) {
		return false
	}
	e.step()
	return true
}

// step dispatches program[pc] and advances pc exactly once, faulted
// instructions included. This is the containment boundary: whatever
// execute returns is recorded, logged, and ends the run.
func (e *Engine) step() {
	in := e.prog[e.pc]
	if e.trace {
		e.log.Trace().
			Int("pc", e.pc).
			Str("opcode", in.Op.String()).
			Int("stack", e.stack.Len()).
			Msg("dispatch")
	}
	if err := e.execute(in); err != nil {
		e.fault = &Fault{PC: e.pc, Op: in.Op, Err: err}
		e.log.Error().
			Int("pc", e.pc).
			Str("opcode", in.Op.String()).
			Err(err).
			Msg("runtime error")
		e.running = false
	}
	e.pc++
}

// execute interprets one instruction. Binary operations pop the right
// operand first, then the left; a partially completed instruction is not
// rolled back on failure.
func (e *Engine) execute(in Instruction) error {
	op := in.Op
	if !op.Known() || op.IsControlTransfer() {
		// Reserved control-transfer mnemonics have no semantics yet and
		// share the unknown-opcode path.
		return ErrUnknownInstruction
	}
	if len(in.Operands) < op.OperandCount() {
		return ErrMalformedInstruction
	}

	switch op {
	case OpPush:
		return e.stack.Push(in.Operands[0])

	case OpPop:
		_, err := e.stack.Pop()
		return err

	case OpDup:
		return e.stack.Dup()

	case OpSwap:
		return e.stack.Swap()

	case OpAdd:
		b, a, err := e.popPair()
		if err != nil {
			return err
		}
		return e.stack.Push(a + b)

	case OpSub:
		b, a, err := e.popPair()
		if err != nil {
			return err
		}
		return e.stack.Push(a - b)

	case OpMul:
		b, a, err := e.popPair()
		if err != nil {
			return err
		}
		return e.stack.Push(a * b)

	case OpDiv:
		b, err := e.stack.Pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return ErrDivisionByZero
		}
		a, err := e.stack.Pop()
		if err != nil {
			return err
		}
		return e.stack.Push(a / b)

	case OpMod:
		b, err := e.stack.Pop()
		if err != nil {
			return err
		}
		if b == 0 {
			return ErrModuloByZero
		}
		a, err := e.stack.Pop()
		if err != nil {
			return err
		}
		return e.stack.Push(a % b)

	case OpCmp:
		b, a, err := e.popPair()
		if err != nil {
			return err
		}
		switch {
		case a < b:
			return e.stack.Push(-1)
		case a > b:
			return e.stack.Push(1)
		default:
			return e.stack.Push(0)
		}

	case OpLoad:
		v, err := e.mem.Load(in.Operands[0])
		if err != nil {
			return err
		}
		return e.stack.Push(v)

	case OpStore:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		return e.mem.Store(in.Operands[0], v)

	case OpPrint:
		v, err := e.stack.Pop()
		if err != nil {
			return err
		}
		fmt.Fprintln(e.out, v)
		return nil

	case OpHalt:
		e.running = false
		return nil

	default:
		return ErrUnknownInstruction
	}
}

// popPair pops the two operands of a binary operation: right first, then
// left, consistent with the most recent push being the second operand.
func (e *Engine) popPair() (b, a int64, err error) {
	if b, err = e.stack.Pop(); err != nil {
		return 0, 0, err
	}
	if a, err = e.stack.Pop(); err != nil {
		return 0, 0, err
	}
	return b, a, nil
}

// DumpStack writes the operand stack size and, when non-empty, the top
// value to the engine's output writer.
func (e *Engine) DumpStack() {
	fmt.Fprintf(e.out, "Stack size: %d\n", e.stack.Len())
	if top, err := e.stack.Peek(); err == nil {
		fmt.Fprintf(e.out, "Top of stack: %d\n", top)
	}
}

// PC returns the current program counter.
func (e *Engine) PC() int {
	return e.pc
}

// Running reports whether the engine would keep fetching instructions.
func (e *Engine) Running() bool {
	return e.running
}

// Fault returns the contained error that ended the last run, or nil if the
// program completed without one.
func (e *Engine) Fault() *Fault {
	return e.fault
}

// Stack exposes the operand stack for inspection.
func (e *Engine) Stack() *OperandStack {
	return e.stack
}

// Memory exposes the addressed memory for inspection.
func (e *Engine) Memory() *Memory {
	return e.mem
}

// CallStack exposes the reserved call stack for inspection.
func (e *Engine) CallStack() *CallStack {
	return e.calls
}
