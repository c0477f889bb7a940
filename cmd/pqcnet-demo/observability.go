package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/pqcnet/tunnelcore/pkg/telemetry"
)

// setupObservability wires the global logger, tracer, and metrics
// collector the way an embedder would before touching any tunnelcore
// package. Nothing in pkg/handshake, pkg/tunnel, or pkg/anchor imports
// telemetry directly — this command calls the observers explicitly at
// each call site instead.
func setupObservability(logLevel, logFormat, tracing string) (*telemetry.Collector, *telemetry.Logger, error) {
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return nil, nil, err
	}
	format, err := parseLogFormat(logFormat)
	if err != nil {
		return nil, nil, err
	}

	logger := telemetry.NewLogger(
		telemetry.WithOutput(os.Stderr),
		telemetry.WithLevel(level),
		telemetry.WithFormat(format),
		telemetry.WithFields(telemetry.Fields{"app": "pqcnet-demo"}),
	)
	telemetry.SetLogger(logger)

	switch strings.ToLower(tracing) {
	case "none":
		telemetry.SetTracer(telemetry.NoOpTracer{})
	case "simple":
		telemetry.SetTracer(telemetry.NewSimpleTracer())
	case "otel":
		if !telemetry.OTelEnabled() {
			return nil, nil, fmt.Errorf("otel tracing not enabled (build with -tags otel)")
		}
		telemetry.SetTracer(telemetry.NewOTelTracer("pqcnet-demo"))
	default:
		return nil, nil, fmt.Errorf("invalid tracing mode: %s (use none, simple, or otel)", tracing)
	}

	collector := telemetry.NewCollector(telemetry.Labels{"service": "pqcnet-demo"})
	telemetry.SetGlobal(collector)

	return collector, logger, nil
}

func parseLogLevel(level string) (telemetry.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return telemetry.LevelDebug, nil
	case "info":
		return telemetry.LevelInfo, nil
	case "warn", "warning":
		return telemetry.LevelWarn, nil
	case "error":
		return telemetry.LevelError, nil
	case "silent", "off", "none":
		return telemetry.LevelSilent, nil
	default:
		return telemetry.LevelInfo, fmt.Errorf("invalid log level: %s (use debug, info, warn, error, silent)", level)
	}
}

func parseLogFormat(format string) (telemetry.Format, error) {
	switch strings.ToLower(format) {
	case "text":
		return telemetry.FormatText, nil
	case "json":
		return telemetry.FormatJSON, nil
	default:
		return telemetry.FormatText, fmt.Errorf("invalid log format: %s (use text or json)", format)
	}
}
