package server

import (
	"context"
	"fmt"

	"github.com/chazu/pushkin/vm"
)

// machineRequest represents a unit of work to be executed on the machine
// goroutine.
type machineRequest struct {
	fn   func(*vm.Machine) interface{}
	done chan machineResult
}

// machineResult holds the return value from a machine operation.
type machineResult struct {
	value interface{}
	err   error
}

// Worker serializes all machine access through a single goroutine.
// The engine is single-threaded; all handlers must go through the
// worker to avoid data races.
type Worker struct {
	machine  *vm.Machine
	requests chan machineRequest
	quit     chan struct{}
}

// NewWorker creates a Worker and starts the processing goroutine.
func NewWorker(m *vm.Machine) *Worker {
	w := &Worker{
		machine:  m,
		requests: make(chan machineRequest, 64),
		quit:     make(chan struct{}),
	}
	go w.loop()
	return w
}

// loop processes machine requests sequentially on a dedicated goroutine.
func (w *Worker) loop() {
	for {
		select {
		case req := <-w.requests:
			req.done <- w.execute(req.fn)
		case <-w.quit:
			return
		}
	}
}

// execute runs a function on the machine, recovering from panics.
func (w *Worker) execute(fn func(*vm.Machine) interface{}) machineResult {
	var result machineResult
	func() {
		defer func() {
			if r := recover(); r != nil {
				result.err = fmt.Errorf("%v", r)
			}
		}()
		result.value = fn(w.machine)
	}()
	return result
}

// Do submits a function for execution on the machine goroutine and blocks
// until it completes. Returns the result and any error (including panics).
func (w *Worker) Do(fn func(*vm.Machine) interface{}) (interface{}, error) {
	return w.DoCtx(context.Background(), fn)
}

// DoCtx is Do with a deadline on the wait. A submitted function is never
// interrupted: when the context expires the wait is abandoned and the
// function still runs to completion on the machine goroutine.
func (w *Worker) DoCtx(ctx context.Context, fn func(*vm.Machine) interface{}) (interface{}, error) {
	req := machineRequest{
		fn:   fn,
		done: make(chan machineResult, 1),
	}
	select {
	case w.requests <- req:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	select {
	case result := <-req.done:
		return result.value, result.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Stop shuts down the worker goroutine.
func (w *Worker) Stop() {
	close(w.quit)
}

// Machine returns the underlying machine. Callers must not touch engine
// state outside the worker while requests are in flight.
func (w *Worker) Machine() *vm.Machine {
	return w.machine
}
