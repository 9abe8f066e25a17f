package scheduler

import (
	"container/heap"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/halvext/drift/internal/errors"
	"github.com/halvext/drift/internal/inference"
)

// Executor runs one task to completion. Implementations may block on
// inference; the scheduler guarantees at most one execution at a time.
type Executor func(ctx context.Context, t Task) (any, error)

// Scheduler serializes all inference work through a single worker.
// Tasks drain in (priority, submission time) order. When the inference
// service goes unhealthy and one recreation attempt fails, processing
// pauses until the next Submit or Tick.
type Scheduler struct {
	svc    inference.Service
	exec   Executor
	logger *log.Logger

	mu      sync.Mutex
	queue   taskQueue
	seq     uint64
	busy    bool
	running bool
	halted  bool
}

// New creates a scheduler. svc may be nil, in which case health checks
// always pass and executors run heuristics only.
func New(svc inference.Service, exec Executor, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Scheduler{svc: svc, exec: exec, logger: logger}
}

// Submit validates and enqueues a task, returning a channel that delivers
// exactly one Result. The channel is buffered; the caller may drop it.
func (s *Scheduler) Submit(t Task) (<-chan Result, error) {
	if err := validateTask(t); err != nil {
		return nil, err
	}
	if s.exec == nil {
		return nil, errors.NewInternal(fmt.Errorf("scheduler has no executor"))
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now()
	}

	ch := make(chan Result, 1)

	s.mu.Lock()
	s.seq++
	heap.Push(&s.queue, &item{task: t, ch: ch, seq: s.seq})
	s.halted = false
	s.startLocked()
	s.mu.Unlock()

	return ch, nil
}

// Tick re-attempts processing after a halt without enqueuing anything.
func (s *Scheduler) Tick() {
	s.mu.Lock()
	if len(s.queue) > 0 {
		s.halted = false
		s.startLocked()
	}
	s.mu.Unlock()
}

// Stats reports queue depth, whether a task is executing, and whether
// processing is halted on an unhealthy service.
func (s *Scheduler) Stats() (depth int, busy, halted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue), s.busy, s.halted
}

// startLocked launches the worker if it is not already running.
// Caller holds s.mu.
func (s *Scheduler) startLocked() {
	if s.running || s.halted {
		return
	}
	s.running = true
	go s.loop()
}

func (s *Scheduler) loop() {
	for {
		if !s.ensureHealthy() {
			s.mu.Lock()
			s.halted = true
			s.running = false
			s.mu.Unlock()
			s.logger.Error("inference service unhealthy after recreate, pausing task processing")
			return
		}

		s.mu.Lock()
		if len(s.queue) == 0 {
			s.running = false
			s.mu.Unlock()
			return
		}
		it := heap.Pop(&s.queue).(*item)
		s.busy = true
		s.mu.Unlock()

		res := s.run(it.task)
		it.ch <- res
		close(it.ch)

		s.mu.Lock()
		s.busy = false
		s.mu.Unlock()
	}
}

// ensureHealthy checks the service before each dequeue, attempting one
// recreation when the check fails.
func (s *Scheduler) ensureHealthy() bool {
	if s.svc == nil {
		return true
	}
	ctx := context.Background()
	if s.svc.Healthy(ctx) {
		return true
	}
	s.logger.Warn("inference service unhealthy, recreating")
	if err := s.svc.Recreate(ctx); err != nil {
		s.logger.Error("inference recreate failed", "err", err)
		return false
	}
	return s.svc.Healthy(ctx)
}

// run executes one task, converting panics into failed Results so the
// worker survives handler bugs.
func (s *Scheduler) run(t Task) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("task handler panicked", "task", t.ID, "type", t.Type, "panic", r)
			res = Result{OK: false, Err: fmt.Sprintf("panic: %v", r)}
		}
	}()

	data, err := s.exec(context.Background(), t)
	if err != nil {
		return Result{OK: false, Err: err.Error()}
	}
	return Result{OK: true, Data: data}
}
