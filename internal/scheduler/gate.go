package scheduler

// Gate decides when accumulated background work may enter the queue.
// Low-priority batches release only while the worker is idle, the queue
// is shallow, and enough work has accumulated to be worth an inference
// round trip.
type Gate struct {
	sched          *Scheduler
	depthThreshold int
	minBatch       int
}

// NewGate creates a gate over the scheduler.
func NewGate(sched *Scheduler, depthThreshold, minBatch int) *Gate {
	return &Gate{sched: sched, depthThreshold: depthThreshold, minBatch: minBatch}
}

// ShouldRelease reports whether a pending batch of the given size may be
// submitted now.
func (g *Gate) ShouldRelease(pending int) bool {
	depth, busy, halted := g.sched.Stats()
	if busy || halted {
		return false
	}
	if depth >= g.depthThreshold {
		return false
	}
	return pending >= g.minBatch
}
