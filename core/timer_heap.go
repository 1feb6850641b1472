package core

import "time"

// timerEntry is a (deadline, continuation) registration in the
// scheduler's timer heap. waitSeq snapshots the unit's wait generation
// so entries left behind by a won race or a cancellation are ignored
// when they expire.
type timerEntry struct {
	deadline time.Time
	unit     *unit
	waitSeq  uint64
	index    int // for heap interface
}

// timerHeap implements heap.Interface ordered by deadline ascending;
// ties resolve by the unit's registration order.
type timerHeap []*timerEntry

func (h timerHeap) Len() int { return len(h) }

func (h timerHeap) Less(i, j int) bool {
	if !h[i].deadline.Equal(h[j].deadline) {
		return h[i].deadline.Before(h[j].deadline)
	}
	return h[i].unit.seq < h[j].unit.seq
}

func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *timerHeap) Push(x any) {
	n := len(*h)
	item := x.(*timerEntry)
	item.index = n
	*h = append(*h, item)
}

func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil // avoid memory leak
	item.index = -1
	*h = old[0 : n-1]
	return item
}

func (h *timerHeap) Peek() *timerEntry {
	if len(*h) == 0 {
		return nil
	}
	return (*h)[0]
}
