package telemetry

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector aggregates metrics across handshakes, tunnel traffic, route
// changes, and the anchor DAG. It never reads from or writes to the
// tunnel core directly — callers record into it explicitly after a core
// operation returns.
type Collector struct {
	// Handshake metrics
	handshakesInitiated atomic.Uint64
	handshakesCompleted atomic.Uint64
	handshakesFailed    atomic.Uint64
	handshakeLatency    *Histogram

	// Tunnel traffic metrics
	framesSealed   atomic.Uint64
	framesOpened   atomic.Uint64
	bytesSealed    atomic.Uint64
	bytesOpened    atomic.Uint64
	sealLatency    *Histogram
	openLatency    *Histogram

	// Security / routing metrics
	replayRejected    atomic.Uint64
	authFailures      atomic.Uint64
	wrongRouteDrops   atomic.Uint64
	rekeysApplied     atomic.Uint64
	reroutesApplied   atomic.Uint64

	// Anchor DAG metrics
	anchorsInserted       atomic.Uint64
	anchorInsertRejected  atomic.Uint64
	anchorVerifyFailures  atomic.Uint64
	canonicalHeadChanges  atomic.Uint64

	// Rate limiting metrics
	handshakeRateLimited atomic.Uint64

	// Creation time for uptime tracking
	createdAt time.Time

	// Labels for this collector instance
	labels Labels
}

// Labels represents key-value pairs for metric labeling.
type Labels map[string]string

// NewCollector creates a new metrics collector.
func NewCollector(labels Labels) *Collector {
	if labels == nil {
		labels = make(Labels)
	}

	return &Collector{
		handshakeLatency: NewHistogram(HandshakeLatencyBuckets),
		sealLatency:      NewHistogram(FrameLatencyBuckets),
		openLatency:      NewHistogram(FrameLatencyBuckets),
		createdAt:        time.Now(),
		labels:           labels,
	}
}

// Default bucket configurations for histograms.
var (
	// HandshakeLatencyBuckets for handshake duration (milliseconds).
	HandshakeLatencyBuckets = []float64{10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// FrameLatencyBuckets for Seal/Open operations (microseconds).
	FrameLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}
)

// --- Handshake Metrics ---

// HandshakeInitiated records that a party began InitHandshake or RespondHandshake.
func (c *Collector) HandshakeInitiated() { c.handshakesInitiated.Add(1) }

// HandshakeCompleted records a handshake that reached CompleteInitiator successfully.
func (c *Collector) HandshakeCompleted() { c.handshakesCompleted.Add(1) }

// HandshakeFailed records a handshake abandoned on signature or transcript failure.
func (c *Collector) HandshakeFailed() { c.handshakesFailed.Add(1) }

// RecordHandshakeLatency records the wall-clock duration of a handshake leg.
func (c *Collector) RecordHandshakeLatency(d time.Duration) {
	c.handshakeLatency.Observe(float64(d.Milliseconds()))
}

// --- Tunnel Traffic Metrics ---

// FrameSealed records a successful Seal call.
func (c *Collector) FrameSealed(n int) {
	c.framesSealed.Add(1)
	c.bytesSealed.Add(uint64(n))
}

// FrameOpened records a successful Open call.
func (c *Collector) FrameOpened(n int) {
	c.framesOpened.Add(1)
	c.bytesOpened.Add(uint64(n))
}

// RecordSealLatency records Seal operation latency.
func (c *Collector) RecordSealLatency(d time.Duration) {
	c.sealLatency.Observe(float64(d.Microseconds()))
}

// RecordOpenLatency records Open operation latency.
func (c *Collector) RecordOpenLatency(d time.Duration) {
	c.openLatency.Observe(float64(d.Microseconds()))
}

// --- Security / Routing Metrics ---

// RecordReplayRejected increments the replay-window rejection counter.
func (c *Collector) RecordReplayRejected() { c.replayRejected.Add(1) }

// RecordAuthFailure increments the AEAD authentication failure counter.
func (c *Collector) RecordAuthFailure() { c.authFailures.Add(1) }

// RecordWrongRouteDrop increments the counter for frames dropped on a stale route binding.
func (c *Collector) RecordWrongRouteDrop() { c.wrongRouteDrops.Add(1) }

// RecordRekeyApplied records a completed Rekey action.
func (c *Collector) RecordRekeyApplied() { c.rekeysApplied.Add(1) }

// RecordRerouteApplied records a completed Reroute action.
func (c *Collector) RecordRerouteApplied() { c.reroutesApplied.Add(1) }

// --- Anchor DAG Metrics ---

// RecordAnchorInserted records a StateDiff accepted into the DAG.
func (c *Collector) RecordAnchorInserted() { c.anchorsInserted.Add(1) }

// RecordAnchorInsertRejected records a StateDiff rejected by Insert.
func (c *Collector) RecordAnchorInsertRejected() { c.anchorInsertRejected.Add(1) }

// RecordAnchorVerifyFailure records a VerifyAndAnchor call that failed verification.
func (c *Collector) RecordAnchorVerifyFailure() { c.anchorVerifyFailures.Add(1) }

// RecordCanonicalHeadChange records a CanonicalHead result that differs from the previous call.
func (c *Collector) RecordCanonicalHeadChange() { c.canonicalHeadChanges.Add(1) }

// --- Rate Limiting Metrics ---

// RecordHandshakeRateLimit records a handshake attempt rejected by a Limiter.
func (c *Collector) RecordHandshakeRateLimit() { c.handshakeRateLimited.Add(1) }

// --- Snapshot ---

// Snapshot is a point-in-time view of every counter and histogram summary.
type Snapshot struct {
	Timestamp time.Time
	Uptime    time.Duration

	HandshakesInitiated uint64
	HandshakesCompleted uint64
	HandshakesFailed    uint64

	FramesSealed uint64
	FramesOpened uint64
	BytesSealed  uint64
	BytesOpened  uint64

	ReplayRejected   uint64
	AuthFailures     uint64
	WrongRouteDrops  uint64
	RekeysApplied    uint64
	ReroutesApplied  uint64

	AnchorsInserted      uint64
	AnchorInsertRejected uint64
	AnchorVerifyFailures uint64
	CanonicalHeadChanges uint64

	HandshakeRateLimited uint64

	HandshakeLatency HistogramSummary
	SealLatency      HistogramSummary
	OpenLatency      HistogramSummary

	Labels Labels
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (c *Collector) Snapshot() Snapshot {
	return Snapshot{
		Timestamp: time.Now(),
		Uptime:    time.Since(c.createdAt),

		HandshakesInitiated: c.handshakesInitiated.Load(),
		HandshakesCompleted: c.handshakesCompleted.Load(),
		HandshakesFailed:    c.handshakesFailed.Load(),

		FramesSealed: c.framesSealed.Load(),
		FramesOpened: c.framesOpened.Load(),
		BytesSealed:  c.bytesSealed.Load(),
		BytesOpened:  c.bytesOpened.Load(),

		ReplayRejected:  c.replayRejected.Load(),
		AuthFailures:    c.authFailures.Load(),
		WrongRouteDrops: c.wrongRouteDrops.Load(),
		RekeysApplied:   c.rekeysApplied.Load(),
		ReroutesApplied: c.reroutesApplied.Load(),

		AnchorsInserted:      c.anchorsInserted.Load(),
		AnchorInsertRejected: c.anchorInsertRejected.Load(),
		AnchorVerifyFailures: c.anchorVerifyFailures.Load(),
		CanonicalHeadChanges: c.canonicalHeadChanges.Load(),

		HandshakeRateLimited: c.handshakeRateLimited.Load(),

		HandshakeLatency: c.handshakeLatency.Summary(),
		SealLatency:      c.sealLatency.Summary(),
		OpenLatency:      c.openLatency.Summary(),

		Labels: c.labels,
	}
}

// Reset clears all metrics. Useful for testing.
func (c *Collector) Reset() {
	c.handshakesInitiated.Store(0)
	c.handshakesCompleted.Store(0)
	c.handshakesFailed.Store(0)
	c.framesSealed.Store(0)
	c.framesOpened.Store(0)
	c.bytesSealed.Store(0)
	c.bytesOpened.Store(0)
	c.replayRejected.Store(0)
	c.authFailures.Store(0)
	c.wrongRouteDrops.Store(0)
	c.rekeysApplied.Store(0)
	c.reroutesApplied.Store(0)
	c.anchorsInserted.Store(0)
	c.anchorInsertRejected.Store(0)
	c.anchorVerifyFailures.Store(0)
	c.canonicalHeadChanges.Store(0)
	c.handshakeRateLimited.Store(0)
	c.handshakeLatency.Reset()
	c.sealLatency.Reset()
	c.openLatency.Reset()
	c.createdAt = time.Now()
}

// --- Global Collector ---

var (
	globalCollector     *Collector
	globalCollectorOnce sync.Once
)

// Global returns the global metrics collector, creating one with default
// settings on first use.
func Global() *Collector {
	globalCollectorOnce.Do(func() {
		globalCollector = NewCollector(Labels{"instance": "default"})
	})
	return globalCollector
}

// SetGlobal sets the global metrics collector. Call during initialization,
// before any metrics are recorded.
func SetGlobal(c *Collector) {
	globalCollector = c
}
