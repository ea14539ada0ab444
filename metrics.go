package authcore

import (
	"time"

	"github.com/civicpulse/authcore/internal/metrics"
)

// MetricID names one counter or histogram.
type MetricID uint16

const (
	MetricCodeIssued MetricID = iota
	MetricCodeCooldown
	MetricCodeThrottled
	MetricCodeVerified
	MetricCodeMismatch
	MetricCodeExpired
	MetricCodeExhausted
	MetricCodeNotFound
	MetricLoginSuccess
	MetricLoginFailure
	MetricLoginLocked
	MetricLoginUnverified
	MetricAccountLocked
	MetricAccountCreated
	MetricAccountVerified
	MetricPasswordReset
	MetricEmailChanged
	MetricDeliveryFailure
	MetricStoreUnavailable
	metricCounterCount
)

const (
	MetricIssueLatency MetricID = metricCounterCount + iota
	MetricVerifyLatency
	MetricAuthenticateLatency
	metricIDCount
)

const metricHistogramCount = int(metricIDCount - metricCounterCount)

// IsHistogram reports whether id names a latency histogram.
func (id MetricID) IsHistogram() bool {
	return id >= metricCounterCount && id < metricIDCount
}

// Metrics is the engine's in-process metric set.
type Metrics struct {
	set *metrics.Set
}

// HistogramSnapshot holds non-cumulative bucket counts (<=5ms ... +Inf)
// and the sum of observations.
type HistogramSnapshot struct {
	Buckets []uint64
	Sum     time.Duration
}

// MetricsSnapshot is a point-in-time copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID]HistogramSnapshot
}

// NewMetrics allocates every metric; cfg decides which ones record.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		set: metrics.New(int(metricCounterCount), metricHistogramCount, cfg.Enabled, cfg.EnableLatencyHistograms),
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.set.Enabled()
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || id >= metricCounterCount {
		return
	}
	m.set.Inc(int(id))
}

// Observe records d for id when histograms are on.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !id.IsHistogram() {
		return
	}
	m.set.Observe(int(id-metricCounterCount), d)
}

// Value reads counter id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricCounterCount {
		return 0
	}
	return m.set.Counter(int(id))
}

// Snapshot copies current values. A disabled set yields empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if !m.Enabled() {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID]HistogramSnapshot{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricCounterCount)),
		Histograms: make(map[MetricID]HistogramSnapshot, metricHistogramCount),
	}
	for id := MetricID(0); id < metricCounterCount; id++ {
		s.Counters[id] = m.set.Counter(int(id))
	}
	if m.set.LatencyEnabled() {
		for id := metricCounterCount; id < metricIDCount; id++ {
			b, sum := m.set.Buckets(int(id - metricCounterCount))
			s.Histograms[id] = HistogramSnapshot{Buckets: b[:], Sum: sum}
		}
	}
	return s
}
