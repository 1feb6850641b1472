package core

import "sync"

const defaultHistoryCapacity = 100

// ExecutionHistory is a fixed-capacity ring of recent execution
// records, newest first on read.
type ExecutionHistory struct {
	mu    sync.Mutex
	items []ExecutionRecord
	head  int
	count int
}

// NewExecutionHistory creates a history ring with the given capacity.
// Non-positive capacities fall back to the default.
func NewExecutionHistory(capacity int) *ExecutionHistory {
	if capacity < 1 {
		capacity = defaultHistoryCapacity
	}
	return &ExecutionHistory{items: make([]ExecutionRecord, capacity)}
}

// Add appends a record, overwriting the oldest entry when full.
func (h *ExecutionHistory) Add(record ExecutionRecord) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.items) == 0 {
		return
	}

	h.items[h.head] = record
	h.head = (h.head + 1) % len(h.items)
	if h.count < len(h.items) {
		h.count++
	}
}

// Recent returns up to limit records, most recent first. limit <= 0
// returns everything retained.
func (h *ExecutionHistory) Recent(limit int) []ExecutionRecord {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return nil
	}

	if limit <= 0 || limit > h.count {
		limit = h.count
	}

	out := make([]ExecutionRecord, 0, limit)
	for i := 0; i < limit; i++ {
		idx := (h.head - 1 - i + len(h.items)) % len(h.items)
		out = append(out, h.items[idx])
	}
	return out
}

// Last returns the most recent record, if any.
func (h *ExecutionHistory) Last() (ExecutionRecord, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.count == 0 {
		return ExecutionRecord{}, false
	}

	idx := (h.head - 1 + len(h.items)) % len(h.items)
	return h.items[idx], true
}
