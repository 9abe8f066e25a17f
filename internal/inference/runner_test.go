package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"strings"
	"testing"
	"time"
)

// echoScript replies to each request line in order. Request IDs are issued
// sequentially starting at 1, so the line counter matches the request ID.
const echoScript = `i=0
while read line; do
  i=$((i+1))
  echo "{\"id\":$i,\"result\":{\"n\":$i}}"
done`

// slowFirstScript delays the first reply past the client timeout, then
// answers everything in order.
const slowFirstScript = `i=0
while read line; do
  i=$((i+1))
  if [ "$i" -eq 1 ]; then sleep 2; fi
  echo "{\"id\":$i,\"result\":{\"n\":$i}}"
done`

func shRunner(t *testing.T, script string, timeout time.Duration) *Runner {
	t.Helper()
	r := NewRunner("sh", []string{"-c", script}, timeout)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func resultN(t *testing.T, raw json.RawMessage) int {
	t.Helper()
	var out struct {
		N int `json:"n"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("bad result %s: %v", raw, err)
	}
	return out.N
}

func TestRunner_RoundTrip(t *testing.T) {
	r := shRunner(t, echoScript, 5*time.Second)

	raw, err := r.Infer(context.Background(), Request{Prompt: "hello"})
	if err != nil {
		t.Fatalf("Infer: %v", err)
	}
	if n := resultN(t, raw); n != 1 {
		t.Errorf("result n = %d, want 1", n)
	}

	raw, err = r.Infer(context.Background(), Request{Prompt: "again"})
	if err != nil {
		t.Fatalf("second Infer: %v", err)
	}
	if n := resultN(t, raw); n != 2 {
		t.Errorf("result n = %d, want 2", n)
	}
}

// A request that times out must not poison the stream: its late response is
// discarded and the next request receives its own answer.
func TestRunner_TimeoutThenRecovery(t *testing.T) {
	r := shRunner(t, slowFirstScript, 1200*time.Millisecond)

	_, err := r.Infer(context.Background(), Request{Prompt: "slow"})
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !strings.Contains(err.Error(), "timeout") {
		t.Fatalf("err = %v, want timeout", err)
	}

	raw, err := r.Infer(context.Background(), Request{Prompt: "fast"})
	if err != nil {
		t.Fatalf("Infer after timeout: %v", err)
	}
	if n := resultN(t, raw); n != 2 {
		t.Errorf("result n = %d, want the second request's answer", n)
	}
}

func TestRunner_ErrorResponse(t *testing.T) {
	r := shRunner(t, `read line; echo '{"id":1,"error":"boom"}'`, 5*time.Second)

	_, err := r.Infer(context.Background(), Request{Prompt: "x"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want runner error", err)
	}
}

func TestRunner_ContextCancel(t *testing.T) {
	r := shRunner(t, slowFirstScript, 30*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := r.Infer(ctx, Request{Prompt: "slow"})
	if err != context.DeadlineExceeded {
		t.Errorf("err = %v, want deadline exceeded", err)
	}
}

// pipeProcess builds a process whose read loop is fed directly, without a
// child, so dispatch behavior can be checked deterministically.
func pipeProcess(t *testing.T) (*process, *io.PipeWriter) {
	t.Helper()
	pr, pw := io.Pipe()
	p := &process{
		done:    make(chan struct{}),
		pending: make(map[int64]chan runnerResponse),
	}
	go p.readLoop(bufio.NewReader(pr))
	t.Cleanup(func() { _ = pw.Close() })
	return p, pw
}

func TestReadLoop_DiscardsUnmatchedResponse(t *testing.T) {
	p, pw := pipeProcess(t)

	ch, err := p.register(2)
	if err != nil {
		t.Fatal(err)
	}

	// A stale response (nobody registered for ID 1) must be dropped, and
	// junk between responses skipped.
	for _, line := range []string{
		`{"id":1,"result":{"n":1}}`,
		`model loading noise`,
		`{"id":2,"result":{"n":2}}`,
	} {
		if _, err := pw.Write([]byte(line + "\n")); err != nil {
			t.Fatal(err)
		}
	}

	select {
	case resp := <-ch:
		if resp.ID != 2 {
			t.Errorf("delivered ID = %d, want 2", resp.ID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("response never delivered")
	}
}

func TestReadLoop_StreamCloseFailsWaiters(t *testing.T) {
	p, pw := pipeProcess(t)

	ch, err := p.register(1)
	if err != nil {
		t.Fatal(err)
	}
	_ = pw.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel, got a response")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("waiter never released")
	}

	if p.readError() == nil {
		t.Error("expected a recorded read error")
	}
	if _, err := p.register(2); err == nil {
		t.Error("register after stream close should fail")
	}
}
