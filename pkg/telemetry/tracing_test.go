package telemetry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestNoOpTracer(t *testing.T) {
	tracer := NoOpTracer{}
	ctx := context.Background()

	newCtx, end := tracer.StartSpan(ctx, "test")
	if newCtx != ctx {
		t.Error("NoOpTracer should return same context")
	}

	end(nil)
	end(errors.New("test error"))
}

func TestSimpleTracer(t *testing.T) {
	tracer := NewSimpleTracer()
	ctx := context.Background()

	_, end := tracer.StartSpan(ctx, SpanTunnelSeal, WithSpanKind(SpanKindServer))
	time.Sleep(1 * time.Millisecond)
	end(nil)

	spans := tracer.Spans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	span := spans[0]
	if span.Name != SpanTunnelSeal {
		t.Errorf("expected name %s, got %s", SpanTunnelSeal, span.Name)
	}
	if span.Kind != SpanKindServer {
		t.Errorf("expected kind SpanKindServer, got %v", span.Kind)
	}
	if span.Duration <= 0 {
		t.Error("expected a positive duration")
	}
	if span.Error != nil {
		t.Error("expected no error")
	}
}

func TestSimpleTracerWithError(t *testing.T) {
	tracer := NewSimpleTracer()
	ctx := context.Background()

	expectedErr := errors.New("authentication failed")
	_, end := tracer.StartSpan(ctx, SpanTunnelOpen)
	end(expectedErr)

	spans := tracer.Spans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Error != expectedErr {
		t.Errorf("expected error %v, got %v", expectedErr, spans[0].Error)
	}
}

func TestSimpleTracerAttributes(t *testing.T) {
	tracer := NewSimpleTracer()
	ctx := context.Background()

	attrs := map[string]interface{}{
		"tunnel.id":          "abc123",
		"tunnel.route_epoch": 3,
	}

	_, end := tracer.StartSpan(ctx, SpanHandshakeInit, WithAttributes(attrs))
	end(nil)

	spans := tracer.Spans()
	if spans[0].Attributes["tunnel.id"] != "abc123" {
		t.Error("expected tunnel.id attribute")
	}
	if spans[0].Attributes["tunnel.route_epoch"] != 3 {
		t.Error("expected route_epoch attribute")
	}
}

func TestSimpleTracerParentChildLinking(t *testing.T) {
	tracer := NewSimpleTracer()
	ctx := context.Background()

	ctx, endParent := tracer.StartSpan(ctx, SpanHandshakeInit)
	_, endChild := tracer.StartSpan(ctx, SpanTunnelSeal)
	endChild(nil)
	endParent(nil)

	spans := tracer.Spans()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}

	var parent, child *RecordedSpan
	for i := range spans {
		if spans[i].Name == SpanHandshakeInit {
			parent = &spans[i]
		} else {
			child = &spans[i]
		}
	}
	if parent == nil || child == nil {
		t.Fatal("expected both parent and child spans recorded")
	}
	if child.ParentID != parent.SpanID {
		t.Errorf("child ParentID = %q, want parent SpanID %q", child.ParentID, parent.SpanID)
	}
	if child.TraceID != parent.TraceID {
		t.Error("child should inherit the parent's trace id")
	}
}

func TestSimpleTracerReset(t *testing.T) {
	tracer := NewSimpleTracer()
	_, end := tracer.StartSpan(context.Background(), SpanAnchorInsert)
	end(nil)
	tracer.Reset()
	if len(tracer.Spans()) != 0 {
		t.Fatal("expected no spans after Reset")
	}
}

func TestGlobalTracerDefaultsToNoOp(t *testing.T) {
	SetTracer(NoOpTracer{})
	ctx := context.Background()
	newCtx, end := StartSpan(ctx, SpanTunnelSeal)
	if newCtx != ctx {
		t.Error("expected the default global tracer to be a no-op")
	}
	end(nil)
}

func TestSpanAttributesToMap(t *testing.T) {
	attrs := SpanAttributes{
		TunnelID:    "tun-1",
		Role:        "initiator",
		CipherSuite: "AES-256-GCM",
		RouteEpoch:  2,
		BytesSealed: 512,
		Error:       "",
	}
	m := attrs.ToMap()
	if m["tunnel.id"] != "tun-1" || m["tunnel.route_epoch"] != uint64(2) {
		t.Errorf("unexpected attribute map: %v", m)
	}
	if _, ok := m["error.message"]; ok {
		t.Error("empty Error field should not appear in the map")
	}
}
