package goSession

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one counter or histogram in [Metrics].
//
// MetricID values are stable for the lifetime of a process; exporters map
// them to names through metrics/export/internaldefs.
type MetricID uint16

const (
	// MetricHydrateRestored counts startups that adopted a persisted session.
	MetricHydrateRestored MetricID = iota
	// MetricHydrateEmpty counts startups with no usable persisted session.
	MetricHydrateEmpty
	// MetricPersistedStateInvalid counts persisted envelopes purged on read.
	MetricPersistedStateInvalid
	MetricLogin
	MetricLogout
	MetricSilentAcquisitionSuccess
	MetricSilentAcquisitionFailure
	// MetricInteractiveRedirect counts interactive fallbacks started.
	MetricInteractiveRedirect
	MetricInteractiveFailure
	// MetricNoAccount counts AccessToken calls made without a provider account.
	MetricNoAccount
	MetricInvalidTokenFormat
	MetricIdentitySyncSuccess
	MetricIdentitySyncFailure
	MetricRedirectCompleted
	MetricRedirectFailure
	// MetricStorageWriteFailure counts mutations whose write-through failed.
	MetricStorageWriteFailure
	// MetricTokenAcquireLatency is the only histogram.
	MetricTokenAcquireLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
	sumNS   int64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters plus one latency histogram.
// A nil or disabled *Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of all counters and histogram
// buckets. HistogramSums holds the total observed duration per histogram.
type MetricsSnapshot struct {
	Counters      map[MetricID]uint64
	Histograms    map[MetricID][]uint64
	HistogramSums map[MetricID]time.Duration
}

// NewMetrics returns metrics configured by cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether counters are recorded.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is recorded.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram for id. Only
// [MetricTokenAcquireLatency] has a histogram.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricTokenAcquireLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
	atomic.AddInt64(&m.histograms[id].sumNS, int64(d))
}

// Value returns the current counter for id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter and, when enabled, the latency histogram.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:      map[MetricID]uint64{},
			Histograms:    map[MetricID][]uint64{},
			HistogramSums: map[MetricID]time.Duration{},
		}
	}

	s := MetricsSnapshot{
		Counters:      make(map[MetricID]uint64, int(metricIDCount)),
		Histograms:    make(map[MetricID][]uint64, 1),
		HistogramSums: make(map[MetricID]time.Duration, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricTokenAcquireLatency].buckets[i])
		}
		s.Histograms[MetricTokenAcquireLatency] = buckets
		s.HistogramSums[MetricTokenAcquireLatency] = time.Duration(atomic.LoadInt64(&m.histograms[MetricTokenAcquireLatency].sumNS))
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 10:
		return 0
	case ms <= 25:
		return 1
	case ms <= 50:
		return 2
	case ms <= 100:
		return 3
	case ms <= 250:
		return 4
	case ms <= 500:
		return 5
	case ms <= 1000:
		return 6
	default:
		return 7
	}
}
