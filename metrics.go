package connectshare

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one engine counter.
type MetricID uint16

const (
	// MetricSessionFetch counts outbound current-session fetch sequences.
	MetricSessionFetch MetricID = iota
	// MetricSessionFetchFailure counts fetch sequences that ended in an error.
	MetricSessionFetchFailure
	// MetricSessionFetchRetry counts automatic fetch retries.
	MetricSessionFetchRetry
	// MetricAuthSignedIn counts SIGNED_IN events applied to the cache.
	MetricAuthSignedIn
	// MetricAuthSignedOut counts SIGNED_OUT events applied to the cache.
	MetricAuthSignedOut
	// MetricAuthTokenRefreshed counts TOKEN_REFRESHED events applied to the cache.
	MetricAuthTokenRefreshed
	// MetricAuthEventIgnored counts auth events of kinds that do not touch the cache.
	MetricAuthEventIgnored
	// MetricListenerSubscribeFailure counts failures opening the auth-state stream.
	MetricListenerSubscribeFailure
	// MetricProfilePatched counts realtime patches applied to the cached session.
	MetricProfilePatched
	// MetricPatchOnAbsentSession counts realtime patches dropped because no session was cached.
	MetricPatchOnAbsentSession
	// MetricRealtimeOpened counts realtime channels opened.
	MetricRealtimeOpened
	// MetricRealtimeOpenFailure counts realtime channels that failed to open.
	MetricRealtimeOpenFailure
	// MetricRealtimeClosed counts realtime channels closed.
	MetricRealtimeClosed
	// MetricTeardownError counts swallowed unsubscribe failures.
	MetricTeardownError
	// MetricFocusRefetch counts refetches triggered by a focus signal.
	MetricFocusRefetch
	// MetricMountRefetch counts refetches triggered by a consumer mount.
	MetricMountRefetch
	// MetricFetchLatency is the fetch latency histogram.
	MetricFetchLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a set of lock-free counters and one latency histogram. A nil or
// disabled Metrics ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] honoring cfg.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to id.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d in the histogram of id. Only [MetricFetchLatency] has one.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricFetchLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current count of id.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies every counter. Disabled metrics return empty maps.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		if id == MetricFetchLatency {
			continue
		}
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricFetchLatency].buckets[i])
		}
		s.Histograms[MetricFetchLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
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
