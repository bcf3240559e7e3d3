package audit

import (
	"context"
	"encoding/json"
	"sync"
)

// DefaultMemoryCapacity bounds a MemorySink created with capacity <= 0.
const DefaultMemoryCapacity = 1000

// MemorySink keeps the most recent entries in a ring buffer.
type MemorySink struct {
	mu       sync.Mutex
	entries  []Entry
	next     int
	full     bool
	capacity int
}

// NewMemorySink returns a ring of the given capacity.
func NewMemorySink(capacity int) *MemorySink {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemorySink{entries: make([]Entry, capacity), capacity: capacity}
}

// Record stores a copy of entry, overwriting the oldest when full.
func (m *MemorySink) Record(ctx context.Context, entry Entry) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	stored, err := copyEntry(entry)
	if err != nil {
		return Entry{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[m.next] = stored
	m.next = (m.next + 1) % m.capacity
	if m.next == 0 {
		m.full = true
	}
	return entry, nil
}

// Query returns matching entries, newest first.
func (m *MemorySink) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	limit := filter.EffectiveLimit()

	m.mu.Lock()
	defer m.mu.Unlock()

	count := m.next
	if m.full {
		count = m.capacity
	}
	out := make([]Entry, 0, min(limit, count))
	for i := 0; i < count && len(out) < limit; i++ {
		idx := (m.next - 1 - i + m.capacity) % m.capacity
		if entry := m.entries[idx]; filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}

// copyEntry detaches the stored entry from caller-owned maps.
func copyEntry(entry Entry) (Entry, error) {
	raw, err := json.Marshal(entry)
	if err != nil {
		return Entry{}, err
	}
	var out Entry
	if err := json.Unmarshal(raw, &out); err != nil {
		return Entry{}, err
	}
	return out, nil
}
