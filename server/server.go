package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"connectrpc.com/connect"
	"github.com/rs/zerolog"

	"github.com/chazu/pushkin/journal"
	"github.com/chazu/pushkin/vm"
)

// Server is the execution service wrapping a single machine. All machine
// access is serialized through a worker goroutine; connect handlers speak
// JSON over the unary protocol.
type Server struct {
	worker *Worker
	svc    *MachineService
	mux    *http.ServeMux
	log    zerolog.Logger
}

// Option configures a Server.
type Option func(*config)

type config struct {
	journal     *journal.Journal
	log         zerolog.Logger
	evalTimeout time.Duration
}

// WithJournal records every Eval and Run in the given journal. The caller
// keeps ownership and closes it after Stop.
func WithJournal(j *journal.Journal) Option {
	return func(c *config) { c.journal = j }
}

// WithLogger sets the server logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *config) { c.log = log }
}

// WithEvalTimeout bounds how long Eval and Run wait for the machine.
// The machine itself is never interrupted; on expiry the wait is
// abandoned and the request fails with a deadline error.
func WithEvalTimeout(d time.Duration) Option {
	return func(c *config) { c.evalTimeout = d }
}

// New creates a Server around a fresh machine.
func New(opts ...Option) *Server {
	cfg := &config{
		log: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	machine := vm.NewMachine(vm.WithOutput(io.Discard), vm.WithLogger(cfg.log))
	worker := NewWorker(machine)
	svc := NewMachineService(worker, cfg.log, cfg.journal, cfg.evalTimeout)

	s := &Server{
		worker: worker,
		svc:    svc,
		mux:    http.NewServeMux(),
		log:    cfg.log,
	}

	// Register connect handlers with the JSON codec
	codec := connect.WithCodec(jsonCodec{})
	s.mux.Handle(ProcedureEval, connect.NewUnaryHandler(ProcedureEval, svc.Eval, codec))
	s.mux.Handle(ProcedureLoad, connect.NewUnaryHandler(ProcedureLoad, svc.Load, codec))
	s.mux.Handle(ProcedureRun, connect.NewUnaryHandler(ProcedureRun, svc.Run, codec))
	s.mux.Handle(ProcedureDumpState, connect.NewUnaryHandler(ProcedureDumpState, svc.DumpState, codec))

	s.mux.HandleFunc("/healthz", s.handleHealthz)

	return s
}

// Handler returns the HTTP handler for mounting or testing.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Service returns the machine service for in-process use.
func (s *Server) Service() *MachineService {
	return s.svc
}

// ListenAndServe starts the HTTP server on the given address.
// The address should be in the form "host:port" or ":port".
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info().
		Str("addr", addr).
		Str("eval", ProcedureEval).
		Msg("machine service listening")
	if err := http.ListenAndServe(addr, s.mux); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	return nil
}

// Stop shuts down the worker goroutine.
func (s *Server) Stop() {
	s.worker.Stop()
}

// handleHealthz reports liveness.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
