package scheduler

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultPollInterval is how often the poller checks for releasable work.
const DefaultPollInterval = 30 * time.Second

// BatchSource supplies accumulated background tasks. Implementations
// return the current pending set; released tasks must stop appearing in
// later calls once their handlers persist results.
type BatchSource interface {
	PendingBatch(ctx context.Context) ([]Task, error)
}

// Poller periodically drains background work through the gate and nudges
// a halted scheduler back to life.
type Poller struct {
	sched    *Scheduler
	gate     *Gate
	source   BatchSource
	interval time.Duration
	logger   *log.Logger
}

// NewPoller creates a poller. A zero interval uses DefaultPollInterval.
func NewPoller(sched *Scheduler, gate *Gate, source BatchSource, interval time.Duration, logger *log.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Poller{sched: sched, gate: gate, source: source, interval: interval, logger: logger}
}

// Run blocks until ctx is cancelled, ticking at the configured interval.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	p.sched.Tick()

	batch, err := p.source.PendingBatch(ctx)
	if err != nil {
		p.logger.Warn("pending batch lookup failed", "err", err)
		return
	}
	if !p.gate.ShouldRelease(len(batch)) {
		return
	}

	released := 0
	for _, t := range batch {
		if _, err := p.sched.Submit(t); err != nil {
			p.logger.Warn("background task rejected", "task", t.ID, "err", err)
			continue
		}
		released++
	}
	if released > 0 {
		p.logger.Debug("released background batch", "tasks", released)
	}
}
