// Package telemetry provides the structured logger, metrics collector,
// and tracer that every pqcnet package logs and measures through. The
// tunnel core itself never logs or prints — it returns errors to callers
// — so this package exists for the embedder's own observability, not for
// the core's control flow.
//
// # Overview
//
// The telemetry package offers a complete observability solution including:
//   - Metrics collection (counters, histograms) across handshake, tunnel,
//     and anchor DAG operations
//   - Prometheus-compatible metrics export
//   - Distributed tracing support (OpenTelemetry-compatible interface)
//   - Structured logging with levels
//   - Health check endpoints
//
// # Quick Start
//
//	import "github.com/pqcnet/tunnelcore/pkg/telemetry"
//
//	telemetry.Global().HandshakeCompleted()
//	telemetry.Global().RecordHandshakeLatency(150 * time.Millisecond)
//	telemetry.Global().FrameSealed(len(plaintext))
//
//	go telemetry.ServePrometheus(":9090", telemetry.Global(), "pqcnet")
//
// # Metrics Collection
//
//	collector := telemetry.NewCollector(telemetry.Labels{
//		"instance": "node-1",
//		"region":   "us-west-2",
//	})
//
//	collector.HandshakeCompleted()
//	collector.RecordSealLatency(d)
//	collector.RecordReplayRejected()
//	collector.RecordRekeyApplied()
//
//	snap := collector.Snapshot()
//
// # Prometheus Export
//
//	exporter := telemetry.NewPrometheusExporter(collector, "pqcnet")
//	http.Handle("/metrics", exporter.Handler())
//
// # Tracing
//
//	tracer := telemetry.NewSimpleTracer()
//	telemetry.SetTracer(tracer)
//
//	// OpenTelemetry adapter (uses global provider); build with -tags otel.
//	otelTracer := telemetry.NewOTelTracer("pqcnet")
//	telemetry.SetTracer(otelTracer)
//
//	ctx, end := telemetry.StartSpan(ctx, telemetry.SpanHandshakeInit)
//	defer end(nil) // or end(err) on error
//
// # Structured Logging
//
//	logger := telemetry.NewLogger(
//		telemetry.WithLevel(telemetry.LevelInfo),
//		telemetry.WithFormat(telemetry.FormatJSON),
//		telemetry.WithFields(telemetry.Fields{"service": "pqcnet"}),
//	)
//
//	logger.Info("tunnel established", telemetry.Fields{
//		"tunnel_id": tunnelID,
//		"suite":     "AES-256-GCM",
//	})
//
//	tunnelLog := logger.Named("tunnel").With(telemetry.Fields{"id": tunnelID})
//	tunnelLog.Debug("sealing frame")
//
// # Health Checks
//
//	health := telemetry.NewHealthCheck(collector, "1.0.0")
//	health.AddCheck("anchor-host", telemetry.AnchorHostCheck(host.Ping))
//
//	http.Handle("/health", health.Handler())
//	http.Handle("/healthz", health.LivenessHandler())
//	http.Handle("/readyz", health.ReadinessHandler())
//
// # Observability Server
//
//	server := telemetry.NewServer(telemetry.ServerConfig{
//		Collector:        collector,
//		Version:          "1.0.0",
//		Namespace:        "pqcnet",
//		EnablePrometheus: true,
//		EnableHealth:     true,
//	})
//
//	go server.ListenAndServe(":9090")
//
// This provides:
//   - /metrics - Prometheus metrics
//   - /health  - Detailed health status
//   - /healthz - Kubernetes liveness probe
//   - /readyz  - Kubernetes readiness probe
package telemetry
