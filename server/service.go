package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/chazu/pushkin/asm"
	"github.com/chazu/pushkin/journal"
	"github.com/chazu/pushkin/vm"
)

// Procedure paths for the machine service.
const (
	ProcedureEval      = "/pushkin.v1.MachineService/Eval"
	ProcedureLoad      = "/pushkin.v1.MachineService/Load"
	ProcedureRun       = "/pushkin.v1.MachineService/Run"
	ProcedureDumpState = "/pushkin.v1.MachineService/DumpState"
)

// EvalRequest assembles and runs a program in one shot.
type EvalRequest struct {
	Source string `json:"source"`
	Name   string `json:"name,omitempty"`
	Trace  bool   `json:"trace,omitempty"`
}

// LoadRequest assembles a program and loads it without running.
// Operand stack and memory survive the load.
type LoadRequest struct {
	Source string `json:"source"`
	Name   string `json:"name,omitempty"`
}

// LoadResponse reports what was loaded.
type LoadResponse struct {
	Name         string `json:"name"`
	Instructions int    `json:"instructions"`
}

// RunRequest runs whatever program is currently loaded.
type RunRequest struct {
	Name  string `json:"name,omitempty"`
	Trace bool   `json:"trace,omitempty"`
}

// EvalResponse describes a finished run. A contained fault is a normal
// response, not a transport error.
type EvalResponse struct {
	Output     string `json:"output"`
	Outcome    string `json:"outcome"`
	PC         int    `json:"pc"`
	StackSize  int    `json:"stack_size"`
	Top        *int64 `json:"top,omitempty"`
	Fault      string `json:"fault,omitempty"`
	RunID      string `json:"run_id,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// DumpStateRequest asks for a machine state snapshot.
type DumpStateRequest struct{}

// DumpStateResponse is a machine state snapshot.
type DumpStateResponse struct {
	PC          int    `json:"pc"`
	Running     bool   `json:"running"`
	StackSize   int    `json:"stack_size"`
	Top         *int64 `json:"top,omitempty"`
	MemoryCells int    `json:"memory_cells"`
	Fault       string `json:"fault,omitempty"`
}

// MachineService implements the connect handlers for one machine.
type MachineService struct {
	worker      *Worker
	log         zerolog.Logger
	journal     *journal.Journal
	evalTimeout time.Duration
}

// NewMachineService creates a MachineService on the given worker.
func NewMachineService(worker *Worker, log zerolog.Logger, j *journal.Journal, evalTimeout time.Duration) *MachineService {
	return &MachineService{
		worker:      worker,
		log:         log,
		journal:     j,
		evalTimeout: evalTimeout,
	}
}

// Eval assembles source, loads it and runs it to completion.
func (s *MachineService) Eval(
	ctx context.Context,
	req *connect.Request[EvalRequest],
) (*connect.Response[EvalResponse], error) {
	source := req.Msg.Source
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	prog, err := asm.Assemble(source)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	res, err := s.run(ctx, programName(req.Msg.Name), prog, req.Msg.Trace)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(res), nil
}

// Load assembles source and loads it without running. Machine state other
// than the program counter and run flag persists across loads.
func (s *MachineService) Load(
	ctx context.Context,
	req *connect.Request[LoadRequest],
) (*connect.Response[LoadResponse], error) {
	source := req.Msg.Source
	if source == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("source is required"))
	}

	prog, err := asm.Assemble(source)
	if err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if _, err := s.worker.DoCtx(ctx, func(m *vm.Machine) interface{} {
		m.LoadProgram(prog)
		return nil
	}); err != nil {
		return nil, workerError(err)
	}

	name := programName(req.Msg.Name)
	s.log.Info().Str("program", name).Int("instructions", len(prog)).Msg("program loaded")
	return connect.NewResponse(&LoadResponse{
		Name:         name,
		Instructions: len(prog),
	}), nil
}

// Run resumes the currently loaded program.
func (s *MachineService) Run(
	ctx context.Context,
	req *connect.Request[RunRequest],
) (*connect.Response[EvalResponse], error) {
	res, err := s.run(ctx, programName(req.Msg.Name), nil, req.Msg.Trace)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(res), nil
}

// DumpState returns a snapshot of the machine without touching it.
func (s *MachineService) DumpState(
	ctx context.Context,
	req *connect.Request[DumpStateRequest],
) (*connect.Response[DumpStateResponse], error) {
	value, err := s.worker.DoCtx(ctx, func(m *vm.Machine) interface{} {
		eng := m.Engine()
		resp := &DumpStateResponse{
			PC:          eng.PC(),
			Running:     eng.Running(),
			StackSize:   eng.Stack().Len(),
			MemoryCells: eng.Memory().Len(),
		}
		if top, err := eng.Stack().Peek(); err == nil {
			resp.Top = &top
		}
		if f := eng.Fault(); f != nil {
			resp.Fault = f.Error()
		}
		return resp
	})
	if err != nil {
		return nil, workerError(err)
	}
	return connect.NewResponse(value.(*DumpStateResponse)), nil
}

// runResult is what a run closure hands back from the machine goroutine.
type runResult struct {
	output  string
	outcome string
	pc      int
	stack   int
	top     *int64
	fault   string
}

// run executes on the machine goroutine: an optional load, then a run to
// completion. The engine is never interrupted; an expired deadline only
// abandons the wait.
func (s *MachineService) run(ctx context.Context, name string, prog vm.Program, trace bool) (*EvalResponse, error) {
	if s.evalTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.evalTimeout)
		defer cancel()
	}

	started := time.Now()
	value, err := s.worker.DoCtx(ctx, func(m *vm.Machine) interface{} {
		eng := m.Engine()
		var buf bytes.Buffer
		eng.SetOutput(&buf)
		eng.SetTrace(trace)
		if prog != nil {
			eng.Load(prog)
		}
		eng.Run()

		res := &runResult{
			output:  buf.String(),
			outcome: outcomeOf(eng),
			pc:      eng.PC(),
			stack:   eng.Stack().Len(),
		}
		if top, err := eng.Stack().Peek(); err == nil {
			res.top = &top
		}
		if f := eng.Fault(); f != nil {
			res.fault = f.Error()
		}
		return res
	})
	if err != nil {
		return nil, workerError(err)
	}
	duration := time.Since(started)

	res := value.(*runResult)
	resp := &EvalResponse{
		Output:     res.output,
		Outcome:    res.outcome,
		PC:         res.pc,
		StackSize:  res.stack,
		Top:        res.top,
		Fault:      res.fault,
		DurationMS: duration.Milliseconds(),
	}

	if s.journal != nil {
		entry := &journal.Entry{
			Program:   name,
			Outcome:   res.outcome,
			PC:        res.pc,
			Fault:     res.fault,
			Output:    res.output,
			StartedAt: started,
			Duration:  duration,
		}
		if err := s.journal.Append(entry); err != nil {
			s.log.Error().Err(err).Msg("journal append failed")
		} else {
			resp.RunID = entry.ID
		}
	}

	s.log.Info().
		Str("program", name).
		Str("outcome", res.outcome).
		Int("pc", res.pc).
		Dur("duration", duration).
		Msg("run complete")

	return resp, nil
}

// outcomeOf classifies a finished run for the journal and the response.
func outcomeOf(eng *vm.Engine) string {
	switch {
	case eng.Fault() != nil:
		return journal.OutcomeFault
	case eng.Running():
		// Ran off the end of the program without HALT.
		return journal.OutcomeCompleted
	default:
		return journal.OutcomeHalted
	}
}

// workerError maps a worker failure to a connect error.
func workerError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}
	if errors.Is(err, context.Canceled) {
		return connect.NewError(connect.CodeCanceled, err)
	}
	return connect.NewError(connect.CodeInternal, err)
}

func programName(name string) string {
	if name == "" {
		return "inline"
	}
	return name
}
