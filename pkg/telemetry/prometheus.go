package telemetry

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
)

// PrometheusExporter exports metrics in Prometheus text format.
type PrometheusExporter struct {
	collector *Collector
	namespace string
}

// NewPrometheusExporter creates a new Prometheus exporter for the given
// collector. The namespace is prepended to all metric names (e.g. "pqcnet").
func NewPrometheusExporter(c *Collector, namespace string) *PrometheusExporter {
	return &PrometheusExporter{collector: c, namespace: namespace}
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (e *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		e.WriteMetrics(w)
	})
}

// WriteMetrics writes all metrics in Prometheus text format to the writer.
func (e *PrometheusExporter) WriteMetrics(w io.Writer) {
	snap := e.collector.Snapshot()
	labels := e.formatLabels(snap.Labels)

	// --- Handshake Metrics ---
	e.writeHelp(w, "handshakes_initiated_total", "Total handshakes initiated or responded to")
	e.writeType(w, "handshakes_initiated_total", "counter")
	e.writeMetric(w, "handshakes_initiated_total", labels, float64(snap.HandshakesInitiated))

	e.writeHelp(w, "handshakes_completed_total", "Total handshakes that completed successfully")
	e.writeType(w, "handshakes_completed_total", "counter")
	e.writeMetric(w, "handshakes_completed_total", labels, float64(snap.HandshakesCompleted))

	e.writeHelp(w, "handshakes_failed_total", "Total handshakes abandoned on signature or transcript failure")
	e.writeType(w, "handshakes_failed_total", "counter")
	e.writeMetric(w, "handshakes_failed_total", labels, float64(snap.HandshakesFailed))

	// --- Tunnel Traffic Metrics ---
	e.writeHelp(w, "frames_sealed_total", "Total frames sealed")
	e.writeType(w, "frames_sealed_total", "counter")
	e.writeMetric(w, "frames_sealed_total", labels, float64(snap.FramesSealed))

	e.writeHelp(w, "frames_opened_total", "Total frames opened")
	e.writeType(w, "frames_opened_total", "counter")
	e.writeMetric(w, "frames_opened_total", labels, float64(snap.FramesOpened))

	e.writeHelp(w, "bytes_sealed_total", "Total plaintext bytes sealed")
	e.writeType(w, "bytes_sealed_total", "counter")
	e.writeMetric(w, "bytes_sealed_total", labels, float64(snap.BytesSealed))

	e.writeHelp(w, "bytes_opened_total", "Total plaintext bytes opened")
	e.writeType(w, "bytes_opened_total", "counter")
	e.writeMetric(w, "bytes_opened_total", labels, float64(snap.BytesOpened))

	// --- Security / Routing Metrics ---
	e.writeHelp(w, "replay_rejected_total", "Total frames rejected by the replay window")
	e.writeType(w, "replay_rejected_total", "counter")
	e.writeMetric(w, "replay_rejected_total", labels, float64(snap.ReplayRejected))

	e.writeHelp(w, "auth_failures_total", "Total AEAD authentication failures")
	e.writeType(w, "auth_failures_total", "counter")
	e.writeMetric(w, "auth_failures_total", labels, float64(snap.AuthFailures))

	e.writeHelp(w, "wrong_route_drops_total", "Total frames dropped on a stale route binding")
	e.writeType(w, "wrong_route_drops_total", "counter")
	e.writeMetric(w, "wrong_route_drops_total", labels, float64(snap.WrongRouteDrops))

	e.writeHelp(w, "rekeys_applied_total", "Total Rekey actions applied")
	e.writeType(w, "rekeys_applied_total", "counter")
	e.writeMetric(w, "rekeys_applied_total", labels, float64(snap.RekeysApplied))

	e.writeHelp(w, "reroutes_applied_total", "Total Reroute actions applied")
	e.writeType(w, "reroutes_applied_total", "counter")
	e.writeMetric(w, "reroutes_applied_total", labels, float64(snap.ReroutesApplied))

	// --- Anchor DAG Metrics ---
	e.writeHelp(w, "anchors_inserted_total", "Total state diffs accepted into the anchor DAG")
	e.writeType(w, "anchors_inserted_total", "counter")
	e.writeMetric(w, "anchors_inserted_total", labels, float64(snap.AnchorsInserted))

	e.writeHelp(w, "anchor_insert_rejected_total", "Total state diffs rejected by the anchor DAG")
	e.writeType(w, "anchor_insert_rejected_total", "counter")
	e.writeMetric(w, "anchor_insert_rejected_total", labels, float64(snap.AnchorInsertRejected))

	e.writeHelp(w, "anchor_verify_failures_total", "Total anchor verification failures")
	e.writeType(w, "anchor_verify_failures_total", "counter")
	e.writeMetric(w, "anchor_verify_failures_total", labels, float64(snap.AnchorVerifyFailures))

	e.writeHelp(w, "canonical_head_changes_total", "Total observed changes in the canonical head")
	e.writeType(w, "canonical_head_changes_total", "counter")
	e.writeMetric(w, "canonical_head_changes_total", labels, float64(snap.CanonicalHeadChanges))

	e.writeHelp(w, "handshake_rate_limited_total", "Total handshake attempts rejected by a rate limiter")
	e.writeType(w, "handshake_rate_limited_total", "counter")
	e.writeMetric(w, "handshake_rate_limited_total", labels, float64(snap.HandshakeRateLimited))

	// --- Uptime ---
	e.writeHelp(w, "uptime_seconds", "Time since the collector was created")
	e.writeType(w, "uptime_seconds", "gauge")
	e.writeMetric(w, "uptime_seconds", labels, snap.Uptime.Seconds())

	// --- Histograms ---
	e.writeHistogram(w, "handshake_duration_milliseconds", "Handshake duration in milliseconds", labels, snap.HandshakeLatency)
	e.writeHistogram(w, "seal_duration_microseconds", "Seal operation duration in microseconds", labels, snap.SealLatency)
	e.writeHistogram(w, "open_duration_microseconds", "Open operation duration in microseconds", labels, snap.OpenLatency)
}

func (e *PrometheusExporter) writeHelp(w io.Writer, name, help string) {
	fmt.Fprintf(w, "# HELP %s_%s %s\n", e.namespace, name, help)
}

func (e *PrometheusExporter) writeType(w io.Writer, name, typ string) {
	fmt.Fprintf(w, "# TYPE %s_%s %s\n", e.namespace, name, typ)
}

func (e *PrometheusExporter) writeMetric(w io.Writer, name, labels string, value float64) {
	if labels != "" {
		fmt.Fprintf(w, "%s_%s{%s} %g\n", e.namespace, name, labels, value)
	} else {
		fmt.Fprintf(w, "%s_%s %g\n", e.namespace, name, value)
	}
}

func (e *PrometheusExporter) writeHistogram(w io.Writer, name, help, labels string, h HistogramSummary) {
	e.writeHelp(w, name, help)
	e.writeType(w, name, "histogram")

	fullName := e.namespace + "_" + name

	for _, b := range h.Buckets {
		le := fmt.Sprintf("%g", b.UpperBound)
		if math.IsInf(b.UpperBound, 1) {
			le = "+Inf"
		}
		if labels != "" {
			fmt.Fprintf(w, "%s_bucket{%s,le=\"%s\"} %d\n", fullName, labels, le, b.Count)
		} else {
			fmt.Fprintf(w, "%s_bucket{le=\"%s\"} %d\n", fullName, le, b.Count)
		}
	}

	if labels != "" {
		fmt.Fprintf(w, "%s_sum{%s} %g\n", fullName, labels, h.Sum)
		fmt.Fprintf(w, "%s_count{%s} %d\n", fullName, labels, h.Count)
	} else {
		fmt.Fprintf(w, "%s_sum %g\n", fullName, h.Sum)
		fmt.Fprintf(w, "%s_count %d\n", fullName, h.Count)
	}
}

func (e *PrometheusExporter) formatLabels(labels Labels) string {
	if len(labels) == 0 {
		return ""
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		v := escapePromValue(labels[k])
		parts = append(parts, fmt.Sprintf("%s=\"%s\"", k, v))
	}

	return strings.Join(parts, ",")
}

func escapePromValue(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	return s
}

// ServePrometheus starts an HTTP server serving Prometheus metrics. A
// convenience function for simple use cases; embedders with their own
// mux should use Handler instead.
func ServePrometheus(addr string, c *Collector, namespace string) error {
	exp := NewPrometheusExporter(c, namespace)
	http.Handle("/metrics", exp.Handler())
	return http.ListenAndServe(addr, nil)
}
