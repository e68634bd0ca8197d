// Package clock abstracts the node's two time regimes: a network-synchronized
// wall clock when one is available, and a monotonically increasing
// boot-relative counter when it is not.
package clock

import (
	"sync"
	"time"

	"github.com/tinysense/sensord/pkg/reading"
)

// Source supplies the current time as integer seconds plus a flag reporting
// whether the value is network-synchronized calendar time.
type Source interface {
	Now() (ts int64, synchronized bool)
}

// System reads the host wall clock. It reports synchronized only when the
// value is plausibly calendar time; a host booted without NTP can sit near
// the epoch.
type System struct{}

// Now returns the wall clock in unix seconds.
func (System) Now() (int64, bool) {
	ts := time.Now().Unix()
	return ts, ts >= reading.EpochThreshold
}

// Fallback wraps a Source and substitutes a boot-relative counter whenever
// the source is unsynchronized or reports zero. The boot offset is captured
// on first fallback use and only ever grows, so fallback timestamps are
// non-decreasing for the process lifetime even if the underlying counter
// resets.
type Fallback struct {
	src Source

	mu         sync.Mutex
	bootStart  time.Time
	bootOffset int64
	offsetSet  bool
	last       int64
}

// NewFallback wraps src with boot-relative fallback behavior.
func NewFallback(src Source) *Fallback {
	return &Fallback{
		src:       src,
		bootStart: time.Now(), // monotonic reading
	}
}

// Now returns the source's time when synchronized, otherwise a boot-relative
// timestamp.
func (f *Fallback) Now() (int64, bool) {
	if ts, ok := f.src.Now(); ok && ts > 0 {
		return ts, true
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.offsetSet {
		// Anchor the relative regime at the last relative value handed out,
		// so repeated fallback episodes never move relative time backwards.
		f.bootOffset = f.last
		f.bootStart = time.Now()
		f.offsetSet = true
	}

	ts := f.bootOffset + int64(time.Since(f.bootStart)/time.Second)
	if ts < f.last {
		// Underlying counter reset; grow the offset to keep monotonicity.
		f.bootOffset += f.last - ts
		ts = f.last
	}
	f.last = ts
	return ts, false
}

// Manual is a settable clock for tests.
type Manual struct {
	mu           sync.Mutex
	ts           int64
	synchronized bool
}

// NewManual creates a manual clock starting at ts.
func NewManual(ts int64, synchronized bool) *Manual {
	return &Manual{ts: ts, synchronized: synchronized}
}

// Now returns the configured time.
func (m *Manual) Now() (int64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ts, m.synchronized
}

// Set replaces the clock's current value.
func (m *Manual) Set(ts int64, synchronized bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ts = ts
	m.synchronized = synchronized
}

// Advance moves the clock forward by d seconds worth of time.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ts += int64(d / time.Second)
}
