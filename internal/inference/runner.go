package inference

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"sync"
	"time"
)

// DefaultTimeout is the maximum time to wait for a runner response.
// Generous because local models can be slow on first load.
const DefaultTimeout = 60 * time.Second

// Runner runs inference against a child model-runner process speaking
// newline-delimited JSON over stdio.
type Runner struct {
	command string
	args    []string
	timeout time.Duration

	mu   sync.Mutex
	proc *process
}

// process is one spawned runner instance. A single reader goroutine owns the
// stdout stream and dispatches responses to waiting requests by ID.
type process struct {
	cmd   *exec.Cmd
	stdin io.WriteCloser
	reqID int64
	done  chan struct{} // closed when the process exits

	pmu     sync.Mutex
	pending map[int64]chan runnerResponse
	readErr error
}

// runnerRequest is the wire format sent to the child process.
type runnerRequest struct {
	ID     int64           `json:"id"`
	Prompt string          `json:"prompt"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// runnerResponse is the wire format received from the child process.
type runnerResponse struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// NewRunner creates a runner client. The child process is spawned lazily on
// the first call that needs it.
func NewRunner(command string, args []string, timeout time.Duration) *Runner {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Runner{command: command, args: args, timeout: timeout}
}

// Infer sends one request to the runner and waits for its response. A
// timed-out request is unregistered so its late response is discarded by the
// read loop instead of being misdelivered to the next call.
func (r *Runner) Infer(ctx context.Context, req Request) (json.RawMessage, error) {
	r.mu.Lock()
	proc, err := r.ensureProcess()
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}

	proc.reqID++
	id := proc.reqID
	wire := runnerRequest{ID: id, Prompt: req.Prompt, Schema: req.Schema}
	line, err := json.Marshal(wire)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	line = append(line, '\n')

	ch, err := proc.register(id)
	if err != nil {
		r.mu.Unlock()
		return nil, err
	}
	if _, err := proc.stdin.Write(line); err != nil {
		proc.unregister(id)
		r.mu.Unlock()
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	r.mu.Unlock()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case resp, ok := <-ch:
		if !ok {
			return nil, proc.readError()
		}
		if resp.Error != "" {
			return nil, fmt.Errorf("runner error: %s", resp.Error)
		}
		return resp.Result, nil
	case <-ctx.Done():
		proc.unregister(id)
		return nil, ctx.Err()
	case <-timer.C:
		proc.unregister(id)
		return nil, fmt.Errorf("timeout after %v waiting for runner response", r.timeout)
	}
}

// Healthy reports whether the runner process is alive, spawning it if needed.
func (r *Runner) Healthy(ctx context.Context) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	proc, err := r.ensureProcess()
	if err != nil {
		return false
	}
	select {
	case <-proc.done:
		return false
	default:
		return true
	}
}

// Recreate kills the current process (if any) and spawns a fresh one.
func (r *Runner) Recreate(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.killLocked()
	_, err := r.ensureProcess()
	return err
}

// Close terminates the runner process.
// Closes stdin first for a graceful exit, then force kills after 2s.
func (r *Runner) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	proc := r.proc
	if proc == nil {
		return nil
	}
	r.proc = nil

	if proc.stdin != nil {
		_ = proc.stdin.Close()
	}
	select {
	case <-proc.done:
	case <-time.After(2 * time.Second):
		if proc.cmd.Process != nil {
			_ = proc.cmd.Process.Kill()
		}
	}
	return nil
}

// execCommand is a variable that allows tests to mock exec.Command
var execCommand = exec.Command

// ensureProcess spawns the child process if none is running.
// Caller must hold r.mu.
func (r *Runner) ensureProcess() (*process, error) {
	if r.proc != nil {
		select {
		case <-r.proc.done:
			// Process died; drop it and respawn below
			r.proc = nil
		default:
			return r.proc, nil
		}
	}

	cmd := execCommand(r.command, r.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	// Drain stderr in background to prevent pipe buffer deadlock; model
	// runners are chatty on stderr during load.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start runner: %w", err)
	}

	go func() {
		_, _ = io.Copy(io.Discard, stderr)
	}()

	proc := &process{
		cmd:     cmd,
		stdin:   stdin,
		done:    make(chan struct{}),
		pending: make(map[int64]chan runnerResponse),
	}
	go proc.readLoop(bufio.NewReader(stdout))
	go func() {
		_ = cmd.Wait()
		close(proc.done)
	}()

	r.proc = proc
	return proc, nil
}

// readLoop is the sole reader of the stdout stream. Each response is matched
// to its waiting request by ID; a response nobody waits for (late arrival
// after a timeout, or an unknown ID) is dropped.
func (p *process) readLoop(r *bufio.Reader) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			p.failPending(fmt.Errorf("runner stream closed: %w", err))
			return
		}

		var resp runnerResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			// Non-protocol noise on stdout
			continue
		}

		p.pmu.Lock()
		ch, ok := p.pending[resp.ID]
		if ok {
			delete(p.pending, resp.ID)
		}
		p.pmu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// register adds a waiter for the given request ID. The returned channel is
// buffered so the read loop never blocks on delivery.
func (p *process) register(id int64) (chan runnerResponse, error) {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	if p.readErr != nil {
		return nil, p.readErr
	}
	ch := make(chan runnerResponse, 1)
	p.pending[id] = ch
	return ch, nil
}

// unregister abandons a waiter after timeout or cancellation.
func (p *process) unregister(id int64) {
	p.pmu.Lock()
	delete(p.pending, id)
	p.pmu.Unlock()
}

// failPending closes all waiter channels after the stream dies.
func (p *process) failPending(err error) {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	p.readErr = err
	for id, ch := range p.pending {
		delete(p.pending, id)
		close(ch)
	}
}

func (p *process) readError() error {
	p.pmu.Lock()
	defer p.pmu.Unlock()
	if p.readErr != nil {
		return p.readErr
	}
	return fmt.Errorf("runner stream closed")
}

// killLocked terminates the current process. Caller must hold r.mu.
func (r *Runner) killLocked() {
	if r.proc == nil {
		return
	}
	if r.proc.stdin != nil {
		_ = r.proc.stdin.Close()
	}
	if r.proc.cmd.Process != nil {
		_ = r.proc.cmd.Process.Kill()
	}
	r.proc = nil
}
