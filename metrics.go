package rapidauth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies a counter or histogram in the in-process metrics
// system.
type MetricID uint16

const (
	// MetricLoginSuccess counts successful logins.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected logins (bad password, locked,
	// unknown account).
	MetricLoginFailure
	// MetricLoginRateLimited counts logins denied by the throttle.
	MetricLoginRateLimited
	// MetricAccountLocked counts lockout transitions.
	MetricAccountLocked
	// MetricRefreshSuccess counts successful rotations.
	MetricRefreshSuccess
	// MetricRefreshInvalid counts rejected rotation attempts.
	MetricRefreshInvalid
	// MetricRefreshReuseDetected counts replay detections; each one revoked
	// a whole token family.
	MetricRefreshReuseDetected
	// MetricRefreshRateLimited counts rotations denied by the throttle.
	MetricRefreshRateLimited
	// MetricSessionCreated counts sessions minted at login.
	MetricSessionCreated
	// MetricSessionRevoked counts individual session revocations of any
	// cause.
	MetricSessionRevoked
	// MetricLogout counts single-session logouts.
	MetricLogout
	// MetricLogoutAll counts logout-all operations.
	MetricLogoutAll
	// MetricLogoutDevice counts per-device logouts.
	MetricLogoutDevice
	// MetricOTPIssued counts issued one-time codes.
	MetricOTPIssued
	// MetricOTPVerified counts successful code verifications.
	MetricOTPVerified
	// MetricOTPFailure counts mismatched, expired, and replayed codes.
	MetricOTPFailure
	// MetricOTPBlocked counts codes killed by the attempt cap.
	MetricOTPBlocked
	// MetricOTPRateLimited counts issuance attempts denied by the throttle.
	MetricOTPRateLimited
	// MetricAccountCreated counts successful signups.
	MetricAccountCreated
	// MetricAccountCreationDuplicate counts signups rejected on duplicate
	// email.
	MetricAccountCreationDuplicate
	// MetricEmailVerified counts PENDING→ACTIVE transitions.
	MetricEmailVerified
	// MetricPasswordChangeSuccess counts completed password changes.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld counts changes rejected on the old
	// password check.
	MetricPasswordChangeInvalidOld
	// MetricPasswordResetRequest counts reset requests.
	MetricPasswordResetRequest
	// MetricPasswordResetConfirmSuccess counts completed resets.
	MetricPasswordResetConfirmSuccess
	// MetricPasswordResetConfirmFailure counts rejected reset confirmations.
	MetricPasswordResetConfirmFailure
	// MetricValidateLatency is the access-token validation latency
	// histogram.
	MetricValidateLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

// paddedCounter keeps each counter on its own cache line so hot counters
// don't false-share under concurrent increments.
type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics holds lock-free counters and an optional latency histogram.
// All methods are safe for concurrent use; a nil *Metrics is a no-op.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time deep copy of all metrics.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics creates a [Metrics] instance. When cfg.Enabled is false, all
// operations are no-ops.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

// Enabled reports whether metric collection is active.
func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

// LatencyEnabled reports whether the latency histogram is active.
func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc increments a counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records a latency sample for [MetricValidateLatency].
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricValidateLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

// Value returns the current value of a counter.
func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot returns a deep copy of all counters and histogram buckets.
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
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricValidateLatency].buckets[i])
		}
		s.Histograms[MetricValidateLatency] = buckets
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
