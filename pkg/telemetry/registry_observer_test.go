package telemetry

import (
	"testing"
	"time"
)

func TestRegistryObserverTracksGauge(t *testing.T) {
	o := NewRegistryObserver(RegistryObserverConfig{Logger: NullLogger()})

	o.OnTunnelAdded()
	o.OnTunnelAdded()
	o.OnTunnelRemoved()

	snap := o.Snapshot()
	if snap.TunnelsTracked != 1 {
		t.Fatalf("TunnelsTracked = %d, want 1", snap.TunnelsTracked)
	}
	if snap.TunnelsAdded != 2 || snap.TunnelsRemoved != 1 {
		t.Fatalf("unexpected counters: %+v", snap)
	}
}

func TestRegistryObserverPruneDecrementsGauge(t *testing.T) {
	o := NewRegistryObserver(RegistryObserverConfig{Logger: NullLogger()})
	o.OnTunnelAdded()
	o.OnTunnelAdded()
	o.OnTunnelAdded()

	o.OnPruneCompleted(5*time.Millisecond, 2)

	snap := o.Snapshot()
	if snap.TunnelsTracked != 1 {
		t.Fatalf("TunnelsTracked = %d, want 1 after pruning 2 of 3", snap.TunnelsTracked)
	}
	if snap.PrunesRun != 1 || snap.TunnelsPruned != 2 {
		t.Fatalf("unexpected prune counters: %+v", snap)
	}
	if snap.PruneLatency.Count != 1 {
		t.Fatal("expected a prune latency observation")
	}
}

func TestRegistryObserverGaugeNeverGoesNegative(t *testing.T) {
	o := NewRegistryObserver(RegistryObserverConfig{Logger: NullLogger()})
	o.OnTunnelRemoved()
	if snap := o.Snapshot(); snap.TunnelsTracked != 0 {
		t.Fatalf("expected gauge clamped at 0, got %d", snap.TunnelsTracked)
	}
}
