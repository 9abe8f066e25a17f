package scheduler

import "container/heap"

// item is a queued task plus its result channel.
type item struct {
	task Task
	ch   chan Result
	seq  uint64
}

// taskQueue orders items by priority band, then submission time, then
// arrival order. Implements heap.Interface.
type taskQueue []*item

func (q taskQueue) Len() int { return len(q) }

func (q taskQueue) Less(i, j int) bool {
	if q[i].task.Priority != q[j].task.Priority {
		return q[i].task.Priority < q[j].task.Priority
	}
	if !q[i].task.CreatedAt.Equal(q[j].task.CreatedAt) {
		return q[i].task.CreatedAt.Before(q[j].task.CreatedAt)
	}
	return q[i].seq < q[j].seq
}

func (q taskQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }

func (q *taskQueue) Push(x any) { *q = append(*q, x.(*item)) }

func (q *taskQueue) Pop() any {
	old := *q
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*q = old[:n-1]
	return it
}

var _ heap.Interface = (*taskQueue)(nil)
