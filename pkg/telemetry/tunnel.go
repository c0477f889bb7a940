package telemetry

import (
	"context"
	"encoding/hex"
	"time"
)

// TunnelObserver provides observability hooks for tunnel and handshake
// operations. Attach this to a tunnel to automatically record metrics,
// traces, and structured log entries around the core's operations; the
// core itself stays silent and only returns errors.
type TunnelObserver struct {
	collector *Collector
	tracer    Tracer
	logger    *Logger
	tunnelID  string
	role      string
}

// TunnelObserverConfig configures a tunnel observer.
type TunnelObserverConfig struct {
	Collector *Collector
	Tracer    Tracer
	Logger    *Logger
	TunnelID  []byte
	Role      string // "initiator" or "responder"
}

// NewTunnelObserver creates a new tunnel observer.
func NewTunnelObserver(cfg TunnelObserverConfig) *TunnelObserver {
	if cfg.Collector == nil {
		cfg.Collector = Global()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = GetTracer()
	}
	if cfg.Logger == nil {
		cfg.Logger = GetLogger()
	}

	tunnelID := ""
	if len(cfg.TunnelID) > 0 {
		tunnelID = hex.EncodeToString(cfg.TunnelID[:min(8, len(cfg.TunnelID))])
	}

	return &TunnelObserver{
		collector: cfg.Collector,
		tracer:    cfg.Tracer,
		logger: cfg.Logger.Named("tunnel").With(Fields{
			"tunnel_id": tunnelID,
			"role":      cfg.Role,
		}),
		tunnelID: tunnelID,
		role:     cfg.Role,
	}
}

// OnHandshakeStart returns a context and completion function for handshake tracing.
func (o *TunnelObserver) OnHandshakeStart(ctx context.Context) (context.Context, func(error)) {
	spanName := SpanHandshakeInit
	if o.role == "responder" {
		spanName = SpanHandshakeRespond
	}

	o.collector.HandshakeInitiated()
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, spanName, WithSpanKind(SpanKindServer))

	o.logger.Debug("handshake started")

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordHandshakeLatency(duration)

		if err != nil {
			o.collector.HandshakeFailed()
			o.logger.Error("handshake failed", Fields{
				"error":    err.Error(),
				"duration": duration.String(),
			})
		} else {
			o.collector.HandshakeCompleted()
			o.logger.Info("handshake completed", Fields{"duration": duration.String()})
		}

		endSpan(err)
	}
}

// OnSeal starts a Seal span and returns a completion function that records
// the latency and, on success, the sealed frame and its byte count.
func (o *TunnelObserver) OnSeal(ctx context.Context, plaintextLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanTunnelSeal)

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordSealLatency(duration)

		if err != nil {
			o.logger.Debug("seal failed", Fields{"error": err.Error()})
		} else {
			o.collector.FrameSealed(plaintextLen)
		}

		endSpan(err)
	}
}

// OnOpen starts an Open span and returns a completion function that records
// the latency and, on success, the opened frame and its byte count.
func (o *TunnelObserver) OnOpen(ctx context.Context, ciphertextLen int) (context.Context, func(error)) {
	start := time.Now()
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanTunnelOpen)

	return ctx, func(err error) {
		duration := time.Since(start)
		o.collector.RecordOpenLatency(duration)

		if err != nil {
			o.logger.Debug("open failed", Fields{"error": err.Error()})
		} else {
			o.collector.FrameOpened(ciphertextLen)
		}

		endSpan(err)
	}
}

// OnReplayRejected records a frame dropped by the replay window.
func (o *TunnelObserver) OnReplayRejected() {
	o.collector.RecordReplayRejected()
	o.logger.Warn("replayed frame rejected")
}

// OnAuthFailure records an AEAD authentication failure. The core closes
// the tunnel permanently on this condition.
func (o *TunnelObserver) OnAuthFailure() {
	o.collector.RecordAuthFailure()
	o.logger.Warn("authentication failed, tunnel closed")
}

// OnWrongRouteDrop records a frame dropped on a stale route binding.
func (o *TunnelObserver) OnWrongRouteDrop() {
	o.collector.RecordWrongRouteDrop()
	o.logger.Warn("frame dropped on stale route binding")
}

// OnRekey records a completed Rekey action.
func (o *TunnelObserver) OnRekey(ctx context.Context, newEpoch uint64) func(error) {
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanTunnelRekey, WithAttributes(map[string]interface{}{
		"route_epoch": newEpoch,
	}))
	_ = ctx
	o.logger.Debug("rekey applied", Fields{"route_epoch": newEpoch})

	return func(err error) {
		if err == nil {
			o.collector.RecordRekeyApplied()
		}
		endSpan(err)
	}
}

// OnReroute records a completed Reroute action.
func (o *TunnelObserver) OnReroute(ctx context.Context, newEpoch uint64) func(error) {
	ctx, endSpan := o.tracer.StartSpan(ctx, SpanTunnelReroute, WithAttributes(map[string]interface{}{
		"route_epoch": newEpoch,
	}))
	_ = ctx
	o.logger.Info("reroute applied", Fields{"route_epoch": newEpoch})

	return func(err error) {
		if err == nil {
			o.collector.RecordRerouteApplied()
		}
		endSpan(err)
	}
}

// Logger returns the observer's logger for custom logging.
func (o *TunnelObserver) Logger() *Logger {
	return o.logger
}

// --- Instrumented Wrappers ---

// InstrumentedTunnel wraps Seal/Open metrics collection around a tunnel.
type InstrumentedTunnel struct {
	observer *TunnelObserver
}

// NewInstrumentedTunnel creates a new instrumented tunnel wrapper.
func NewInstrumentedTunnel(observer *TunnelObserver) *InstrumentedTunnel {
	return &InstrumentedTunnel{observer: observer}
}

// WrapSeal wraps a Seal operation with metrics.
func (t *InstrumentedTunnel) WrapSeal(ctx context.Context, plaintextLen int, fn func() error) error {
	_, done := t.observer.OnSeal(ctx, plaintextLen)
	err := fn()
	done(err)
	return err
}

// WrapOpen wraps an Open operation with metrics.
func (t *InstrumentedTunnel) WrapOpen(ctx context.Context, ciphertextLen int, fn func() error) error {
	_, done := t.observer.OnOpen(ctx, ciphertextLen)
	err := fn()
	done(err)
	return err
}

// --- Event Types ---

// EventType represents a type of tunnel event for logging.
type EventType string

const (
	EventHandshakeStart EventType = "handshake.start"
	EventHandshakeEnd   EventType = "handshake.end"
	EventFrameSealed    EventType = "frame.sealed"
	EventFrameOpened    EventType = "frame.opened"
	EventRekeyApplied   EventType = "rekey.applied"
	EventRerouteApplied EventType = "reroute.applied"
	EventReplayRejected EventType = "security.replay_rejected"
	EventAuthFailed     EventType = "security.auth_failed"
	EventError          EventType = "error"
)

// Event represents a structured tunnel event.
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	TunnelID  string                 `json:"tunnel_id,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Error     string                 `json:"error,omitempty"`
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}
