package telemetry

import (
	"sync/atomic"
	"time"
)

// RegistryObserver records gauges and counters describing a tunnel
// registry's lifecycle: how many tunnels are tracked, how many were
// added/removed, and how long pruning sweeps take. It has no dependency
// on pkg/tunnel — callers report into it from their own registry
// maintenance loop.
type RegistryObserver struct {
	// Gauges (current state)
	tunnelsTracked atomic.Int64

	// Counters (cumulative)
	tunnelsAdded   atomic.Uint64
	tunnelsRemoved atomic.Uint64
	prunesRun      atomic.Uint64
	tunnelsPruned  atomic.Uint64

	// Histogram
	pruneLatency *Histogram

	logger       *Logger
	registryName string
}

// RegistryPruneLatencyBuckets bucket a prune sweep's duration (milliseconds).
var RegistryPruneLatencyBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000}

// RegistryObserverConfig configures a RegistryObserver.
type RegistryObserverConfig struct {
	Logger       *Logger
	RegistryName string
}

// NewRegistryObserver creates a new registry observer.
func NewRegistryObserver(cfg RegistryObserverConfig) *RegistryObserver {
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}
	if cfg.RegistryName == "" {
		cfg.RegistryName = "default"
	}

	return &RegistryObserver{
		pruneLatency: NewHistogram(RegistryPruneLatencyBuckets),
		logger:       cfg.Logger.Named("registry").With(Fields{"registry": cfg.RegistryName}),
		registryName: cfg.RegistryName,
	}
}

// OnTunnelAdded should be called after Registry.Add.
func (o *RegistryObserver) OnTunnelAdded() {
	o.tunnelsAdded.Add(1)
	o.tunnelsTracked.Add(1)
	o.logger.Debug("tunnel registered")
}

// OnTunnelRemoved should be called after Registry.Remove.
func (o *RegistryObserver) OnTunnelRemoved() {
	o.tunnelsRemoved.Add(1)
	if current := o.tunnelsTracked.Add(-1); current < 0 {
		o.tunnelsTracked.Store(0)
	}
	o.logger.Debug("tunnel deregistered")
}

// OnPruneCompleted should be called after Registry.PruneClosed, with the
// sweep's duration and the number of tunnels it evicted.
func (o *RegistryObserver) OnPruneCompleted(d time.Duration, evicted int) {
	o.prunesRun.Add(1)
	o.tunnelsPruned.Add(uint64(evicted))
	if current := o.tunnelsTracked.Add(-int64(evicted)); current < 0 {
		o.tunnelsTracked.Store(0)
	}
	o.pruneLatency.Observe(float64(d.Milliseconds()))

	o.logger.Info("prune sweep completed", Fields{
		"evicted":  evicted,
		"duration": d.String(),
	})
}

// RegistryMetricsSnapshot is a snapshot of registry metrics.
type RegistryMetricsSnapshot struct {
	TunnelsTracked int64
	TunnelsAdded   uint64
	TunnelsRemoved uint64
	PrunesRun      uint64
	TunnelsPruned  uint64
	PruneLatency   HistogramSummary
	RegistryName   string
}

// Snapshot returns a point-in-time snapshot of registry metrics.
func (o *RegistryObserver) Snapshot() RegistryMetricsSnapshot {
	return RegistryMetricsSnapshot{
		TunnelsTracked: o.tunnelsTracked.Load(),
		TunnelsAdded:   o.tunnelsAdded.Load(),
		TunnelsRemoved: o.tunnelsRemoved.Load(),
		PrunesRun:      o.prunesRun.Load(),
		TunnelsPruned:  o.tunnelsPruned.Load(),
		PruneLatency:   o.pruneLatency.Summary(),
		RegistryName:   o.registryName,
	}
}

// Reset clears all metrics. Useful for testing.
func (o *RegistryObserver) Reset() {
	o.tunnelsTracked.Store(0)
	o.tunnelsAdded.Store(0)
	o.tunnelsRemoved.Store(0)
	o.prunesRun.Store(0)
	o.tunnelsPruned.Store(0)
	o.pruneLatency.Reset()
}
