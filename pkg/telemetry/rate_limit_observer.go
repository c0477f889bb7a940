package telemetry

// RateLimitObserver records metrics and logs when a handshake.Limiter
// rejects an attempt. It takes no dependency on the handshake package —
// callers invoke it from their own accept loop after AllowHandshake
// returns false, keeping the tunnel core itself silent.
type RateLimitObserver struct {
	collector *Collector
	logger    *Logger
}

// NewRateLimitObserver creates a rate limit observer that records metrics
// and logs events.
func NewRateLimitObserver(collector *Collector, logger *Logger) *RateLimitObserver {
	if collector == nil {
		collector = Global()
	}
	if logger == nil {
		logger = GetLogger()
	}

	return &RateLimitObserver{
		collector: collector,
		logger:    logger.Named("rate_limit"),
	}
}

// OnHandshakeRateLimit records a handshake rate limit event.
func (o *RateLimitObserver) OnHandshakeRateLimit(remoteAddr string) {
	o.collector.RecordHandshakeRateLimit()
	if remoteAddr != "" {
		o.logger.Warn("handshake rate limit exceeded", Fields{"remote_addr": remoteAddr})
		return
	}
	o.logger.Warn("handshake rate limit exceeded")
}
