package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chazu/pushkin/journal"
)

func TestHealthz(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	var body map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %q, want ok", body["status"])
	}
}

func TestHealthzMethodNotAllowed(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/healthz", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /healthz: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestEvalOverHTTP(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	payload, err := json.Marshal(&EvalRequest{Source: demoSource, Name: "demo"})
	if err != nil {
		t.Fatal(err)
	}

	resp, err := http.Post(ts.URL+ProcedureEval, "application/json", bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("POST Eval: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var evalResp EvalResponse
	if err := json.NewDecoder(resp.Body).Decode(&evalResp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	if evalResp.Output != "15\n" {
		t.Errorf("output = %q, want %q", evalResp.Output, "15\n")
	}
	if evalResp.Outcome != journal.OutcomeHalted {
		t.Errorf("outcome = %q, want %q", evalResp.Outcome, journal.OutcomeHalted)
	}
}

func TestEvalOverHTTPInvalidSource(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+ProcedureEval, "application/json", bytes.NewReader([]byte(`{"source":""}`)))
	if err != nil {
		t.Fatalf("POST Eval: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		t.Fatal("status = 200 for empty source, want error status")
	}

	var body bytes.Buffer
	if _, err := body.ReadFrom(resp.Body); err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(body.Bytes(), []byte("invalid_argument")) {
		t.Errorf("body = %q, want invalid_argument code", body.String())
	}
}

func TestStateSharedAcrossRequests(t *testing.T) {
	s := newTestServer(t)
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	post := func(path string, req interface{}) *http.Response {
		t.Helper()
		payload, err := json.Marshal(req)
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(payload))
		if err != nil {
			t.Fatalf("POST %s: %v", path, err)
		}
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST %s status = %d", path, resp.StatusCode)
		}
		return resp
	}

	post("/pushkin.v1.MachineService/Eval", &EvalRequest{Source: "PUSH 41\n"}).Body.Close()

	resp := post(ProcedureDumpState, &DumpStateRequest{})
	defer resp.Body.Close()
	var state DumpStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		t.Fatal(err)
	}
	if state.StackSize != 1 {
		t.Errorf("stack size = %d, want 1", state.StackSize)
	}
	if state.Top == nil || *state.Top != 41 {
		t.Errorf("top = %v, want 41", state.Top)
	}
}
