package authcore

import "sync/atomic"

// MetricID defines a public type used by authcore APIs.
//
// MetricID instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricID uint16

const (
	// MetricLoginSuccess is an exported constant or variable used by the session controller.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure is an exported constant or variable used by the session controller.
	MetricLoginFailure
	// MetricLoginLockedOut is an exported constant or variable used by the session controller.
	MetricLoginLockedOut
	// MetricLockoutTriggered is an exported constant or variable used by the session controller.
	MetricLockoutTriggered
	// MetricLogout is an exported constant or variable used by the session controller.
	MetricLogout
	// MetricSessionExpired is an exported constant or variable used by the session controller.
	MetricSessionExpired
	// MetricSessionResumed is an exported constant or variable used by the session controller.
	MetricSessionResumed
	// MetricBootstrapCompleted is an exported constant or variable used by the session controller.
	MetricBootstrapCompleted
	// MetricInviteAccepted is an exported constant or variable used by the session controller.
	MetricInviteAccepted
	// MetricResetRequested is an exported constant or variable used by the session controller.
	MetricResetRequested
	// MetricResetCompleted is an exported constant or variable used by the session controller.
	MetricResetCompleted
	// MetricTwoFactorVerified is an exported constant or variable used by the session controller.
	MetricTwoFactorVerified
	// MetricBackupRegenerated is an exported constant or variable used by the session controller.
	MetricBackupRegenerated
	// MetricFlowExpired is an exported constant or variable used by the session controller.
	MetricFlowExpired
	// MetricServerSignal is an exported constant or variable used by the session controller.
	MetricServerSignal
	metricIDCount
)

const cacheLineSize = 64

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics defines a public type used by authcore APIs.
//
// Metrics instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Metrics struct {
	enabled  bool
	counters [metricIDCount]paddedCounter
}

// MetricsSnapshot defines a public type used by authcore APIs.
//
// MetricsSnapshot instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type MetricsSnapshot struct {
	Counters map[MetricID]uint64
}

// NewMetrics describes the newmetrics operation and its observable behavior.
//
// NewMetrics does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{enabled: cfg.Enabled}
}

// Inc describes the inc operation and its observable behavior.
//
// Inc does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Snapshot describes the snapshot operation and its observable behavior.
//
// Snapshot does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *Metrics) Snapshot() MetricsSnapshot {
	out := MetricsSnapshot{Counters: make(map[MetricID]uint64, int(metricIDCount))}
	if m == nil || !m.enabled {
		return out
	}
	for id := MetricID(0); id < metricIDCount; id++ {
		if v := atomic.LoadUint64(&m.counters[id].value); v > 0 {
			out.Counters[id] = v
		}
	}
	return out
}
