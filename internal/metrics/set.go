package metrics

import (
	"sync/atomic"
	"time"
)

// BucketCount is the number of histogram buckets, +Inf included.
const BucketCount = 8

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

type histogram struct {
	buckets [BucketCount]uint64
	sumNS   uint64
}

// Set is a fixed-size collection of counters and histograms addressed by
// index. Out-of-range indexes are ignored.
type Set struct {
	enabled    bool
	latency    bool
	counters   []paddedCounter
	histograms []histogram
}

// New allocates n counters and h histograms. A disabled Set records
// nothing; latency=false records counters only.
func New(n, h int, enabled, latency bool) *Set {
	if n < 0 {
		n = 0
	}
	if h < 0 {
		h = 0
	}
	return &Set{
		enabled:    enabled,
		latency:    enabled && latency,
		counters:   make([]paddedCounter, n),
		histograms: make([]histogram, h),
	}
}

// Enabled reports whether counters are recorded.
func (s *Set) Enabled() bool { return s != nil && s.enabled }

// LatencyEnabled reports whether histograms are recorded.
func (s *Set) LatencyEnabled() bool { return s != nil && s.latency }

// Inc adds one to counter i.
func (s *Set) Inc(i int) {
	if !s.Enabled() || i < 0 || i >= len(s.counters) {
		return
	}
	atomic.AddUint64(&s.counters[i].value, 1)
}

// Observe records d in histogram i.
func (s *Set) Observe(i int, d time.Duration) {
	if !s.LatencyEnabled() || i < 0 || i >= len(s.histograms) {
		return
	}
	if d < 0 {
		d = 0
	}
	h := &s.histograms[i]
	atomic.AddUint64(&h.buckets[BucketIndex(d)], 1)
	atomic.AddUint64(&h.sumNS, uint64(d))
}

// Counter reads counter i; it is zero when the set is disabled.
func (s *Set) Counter(i int) uint64 {
	if s == nil || i < 0 || i >= len(s.counters) {
		return 0
	}
	return atomic.LoadUint64(&s.counters[i].value)
}

// Buckets returns non-cumulative bucket counts and the observed sum.
func (s *Set) Buckets(i int) ([BucketCount]uint64, time.Duration) {
	var out [BucketCount]uint64
	if s == nil || i < 0 || i >= len(s.histograms) {
		return out, 0
	}
	h := &s.histograms[i]
	for b := range out {
		out[b] = atomic.LoadUint64(&h.buckets[b])
	}
	return out, time.Duration(atomic.LoadUint64(&h.sumNS))
}

// BucketIndex maps d onto the fixed bucket layout.
func BucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
