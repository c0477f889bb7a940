package telemetry

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestPrometheusExporterWriteMetrics(t *testing.T) {
	c := NewCollector(Labels{"instance": "test"})

	c.HandshakeCompleted()
	c.FrameSealed(1000)
	c.RecordHandshakeLatency(100 * time.Millisecond)

	exp := NewPrometheusExporter(c, "pqcnet")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)
	output := buf.String()

	expectedMetrics := []string{
		"pqcnet_handshakes_completed_total",
		"pqcnet_frames_sealed_total",
		"pqcnet_bytes_sealed_total",
		"pqcnet_handshake_duration_milliseconds",
	}
	for _, metric := range expectedMetrics {
		if !strings.Contains(output, metric) {
			t.Errorf("expected metric %q in output", metric)
		}
	}

	if !strings.Contains(output, `instance="test"`) {
		t.Error(`expected label instance="test" in output`)
	}

	if !strings.Contains(output, "# HELP pqcnet_handshakes_completed_total") {
		t.Error("expected HELP line for handshakes_completed_total")
	}
	if !strings.Contains(output, "# TYPE pqcnet_handshakes_completed_total counter") {
		t.Error("expected TYPE line for handshakes_completed_total")
	}
}

func TestPrometheusExporterHandler(t *testing.T) {
	c := NewCollector(nil)
	c.HandshakeCompleted()

	exp := NewPrometheusExporter(c, "test")
	handler := exp.Handler()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
	if contentType := resp.Header.Get("Content-Type"); !strings.Contains(contentType, "text/plain") {
		t.Errorf("expected text/plain content type, got %s", contentType)
	}

	body := w.Body.String()
	if !strings.Contains(body, "test_handshakes_completed_total") {
		t.Error("expected handshakes_completed_total metric in response")
	}
}

func TestPrometheusExporterHistogramBuckets(t *testing.T) {
	c := NewCollector(nil)
	c.RecordSealLatency(5 * time.Microsecond)
	c.RecordSealLatency(500 * time.Microsecond)

	exp := NewPrometheusExporter(c, "pqcnet")
	var buf bytes.Buffer
	exp.WriteMetrics(&buf)
	output := buf.String()

	if !strings.Contains(output, "pqcnet_seal_duration_microseconds_bucket") {
		t.Error("expected bucket lines for seal latency")
	}
	if !strings.Contains(output, `le="+Inf"`) {
		t.Error("expected the overflow bucket with le=\"+Inf\"")
	}
	if !strings.Contains(output, "pqcnet_seal_duration_microseconds_sum") {
		t.Error("expected a _sum line")
	}
	if !strings.Contains(output, "pqcnet_seal_duration_microseconds_count 2") {
		t.Error("expected a _count line matching the number of observations")
	}
}

func TestPrometheusExporterEscapesLabelValues(t *testing.T) {
	c := NewCollector(Labels{"note": `has "quotes" and \backslash`})
	exp := NewPrometheusExporter(c, "pqcnet")

	var buf bytes.Buffer
	exp.WriteMetrics(&buf)
	output := buf.String()

	if !strings.Contains(output, `note="has \"quotes\" and \\backslash"`) {
		t.Errorf("expected escaped label value, got snippet containing: %q", output[:200])
	}
}

func TestServePrometheusUsesMetricsPath(t *testing.T) {
	// ServePrometheus registers against the default mux; this only confirms
	// the exporter/handler composition it delegates to behaves as expected,
	// since binding to an address would require real network I/O.
	c := NewCollector(nil)
	exp := NewPrometheusExporter(c, "pqcnet")
	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
