package core

import (
	"context"
	"sync"
)

const (
	defaultQueueCap     = 16
	compactMinCap       = 64 // Don't compact if capacity is less than this
	compactShrinkFactor = 4  // Trigger compaction when len < cap/4
)

// WorkFunc is the unit of blocking work executed by a worker pool. The
// context is cancelled when the handle is cancelled or the pool stops;
// work defines its cancellation checkpoints by observing ctx.
type WorkFunc func(ctx context.Context) (any, error)

// WorkItem pairs queued work with the handle that tracks its outcome.
type WorkItem struct {
	Handle *Handle
	Fn     WorkFunc
}

// WorkQueue is a mutex-protected FIFO of pending work items shared by
// the pool's workers. An item is dequeued by exactly one worker.
type WorkQueue struct {
	mu    sync.Mutex
	items []WorkItem
}

// NewWorkQueue creates an empty WorkQueue.
func NewWorkQueue() *WorkQueue {
	return &WorkQueue{
		items: make([]WorkItem, 0, defaultQueueCap),
	}
}

// Push appends an item to the tail of the queue.
func (q *WorkQueue) Push(item WorkItem) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, item)
}

// Pop removes and returns the head of the queue.
func (q *WorkQueue) Pop() (WorkItem, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return WorkItem{}, false
	}

	item := q.items[0]
	// Zero out the element in the underlying array to prevent memory leak
	q.items[0] = WorkItem{}
	q.items = q.items[1:]
	q.maybeCompactLocked()

	return item, true
}

func (q *WorkQueue) maybeCompactLocked() {
	n := len(q.items)
	c := cap(q.items)

	if c < compactMinCap {
		return
	}
	if n == 0 {
		q.items = make([]WorkItem, 0, defaultQueueCap)
		return
	}
	if n*compactShrinkFactor >= c {
		return
	}

	newCap := max(max(c/2, defaultQueueCap), n)

	newSlice := make([]WorkItem, n, newCap)
	copy(newSlice, q.items)
	q.items = newSlice
}

// Len returns the number of queued items.
func (q *WorkQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty reports whether the queue is empty.
func (q *WorkQueue) IsEmpty() bool {
	return q.Len() == 0
}

// Remove deletes the queued item owned by h, preserving the order of
// the rest. It reports whether the item was still queued; false means a
// worker or a drain already claimed it.
func (q *WorkQueue) Remove(h *Handle) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i := range q.items {
		if q.items[i].Handle == h {
			copy(q.items[i:], q.items[i+1:])
			q.items[len(q.items)-1] = WorkItem{}
			q.items = q.items[:len(q.items)-1]
			return true
		}
	}
	return false
}

// Drain removes and returns all queued items, releasing the backing
// references. Used by non-waiting shutdown to fail pending handles.
func (q *WorkQueue) Drain() []WorkItem {
	q.mu.Lock()
	defer q.mu.Unlock()

	drained := q.items
	q.items = make([]WorkItem, 0, defaultQueueCap)
	return drained
}
