package server

import (
	"context"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"

	"github.com/chazu/pushkin/journal"
)

// ---------------------------------------------------------------------------
// Shared test infrastructure for server package tests.
// ---------------------------------------------------------------------------

// newTestServer creates a Server and registers its shutdown.
func newTestServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	s := New(opts...)
	t.Cleanup(s.Stop)
	return s
}

// newTestJournal opens a throwaway sqlite journal.
func newTestJournal(t *testing.T) *journal.Journal {
	t.Helper()
	j, err := journal.Open("sqlite", filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

// ---------------------------------------------------------------------------
// Request builder helpers.
// ---------------------------------------------------------------------------

func connectReq[T any](msg *T) *connect.Request[T] {
	return connect.NewRequest(msg)
}

func bg() context.Context {
	return context.Background()
}

// demoSource adds 5 and 10 through memory and prints the sum.
const demoSource = `PUSH 5
PUSH 10
ADD
STORE 100
LOAD 100
PRINT
HALT
`
