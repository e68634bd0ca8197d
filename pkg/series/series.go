// Package series provides the bounded, ordered reading buffers the engine
// owns: the short full-resolution detailed buffer and the long downsampled
// aggregated series. Both share one FIFO type with drop-oldest eviction.
package series

import (
	"github.com/tinysense/sensord/pkg/reading"
)

// Buffer is a bounded FIFO of readings. Oldest entries are dropped when
// capacity is exceeded. Buffer is not safe for concurrent use; the owning
// engine serializes access.
type Buffer struct {
	entries  []reading.Reading
	capacity int
}

// New creates an empty buffer with the given capacity. Capacities below one
// are clamped to one.
func New(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		entries:  make([]reading.Reading, 0, capacity),
		capacity: capacity,
	}
}

// Append adds a reading, evicting the oldest entry if the buffer is full.
// It returns the number of evicted entries (0 or 1).
func (b *Buffer) Append(r reading.Reading) int {
	evicted := 0
	if len(b.entries) >= b.capacity {
		copy(b.entries, b.entries[1:])
		b.entries = b.entries[:len(b.entries)-1]
		evicted = 1
	}
	b.entries = append(b.entries, r)
	return evicted
}

// Len returns the number of stored readings.
func (b *Buffer) Len() int {
	return len(b.entries)
}

// Cap returns the configured capacity.
func (b *Buffer) Cap() int {
	return b.capacity
}

// At returns the reading at index i, oldest first.
func (b *Buffer) At(i int) reading.Reading {
	return b.entries[i]
}

// Latest returns the most recent reading, if any.
func (b *Buffer) Latest() (reading.Reading, bool) {
	if len(b.entries) == 0 {
		return reading.Reading{}, false
	}
	return b.entries[len(b.entries)-1], true
}

// Snapshot returns a copy of the stored readings, oldest first. Callers may
// mutate the copy freely.
func (b *Buffer) Snapshot() []reading.Reading {
	out := make([]reading.Reading, len(b.entries))
	copy(out, b.entries)
	return out
}

// Tail returns a copy of at most n of the most recent readings, oldest first.
func (b *Buffer) Tail(n int) []reading.Reading {
	if n <= 0 || n > len(b.entries) {
		n = len(b.entries)
	}
	out := make([]reading.Reading, n)
	copy(out, b.entries[len(b.entries)-n:])
	return out
}

// RemovePrefix drops the oldest n readings. It is how the aggregator consumes
// the drained prefix after bucketing.
func (b *Buffer) RemovePrefix(n int) {
	if n <= 0 {
		return
	}
	if n >= len(b.entries) {
		b.entries = b.entries[:0]
		return
	}
	copy(b.entries, b.entries[n:])
	b.entries = b.entries[:len(b.entries)-n]
}

// TruncateToOldest drops oldest entries until at most n remain. Used by the
// memory governor's emergency compression. Returns the number dropped.
func (b *Buffer) TruncateToOldest(n int) int {
	if n < 0 {
		n = 0
	}
	drop := len(b.entries) - n
	if drop <= 0 {
		return 0
	}
	b.RemovePrefix(drop)
	return drop
}

// EnforceCapacity drops oldest entries until the buffer fits its capacity.
// Returns the number dropped.
func (b *Buffer) EnforceCapacity() int {
	return b.TruncateToOldest(b.capacity)
}
