package telemetry

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHealthCheckBasic(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "1.0.0")

	response := h.Check()
	if response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy status, got %s", response.Status)
	}
	if response.Version != "1.0.0" {
		t.Errorf("expected version 1.0.0, got %s", response.Version)
	}
	if response.Uptime == "" {
		t.Error("expected non-empty uptime")
	}
}

func TestHealthCheckWithChecks(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "1.0.0")

	h.AddCheck("anchor-host", func() error { return nil })

	response := h.Check()
	if response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy status, got %s", response.Status)
	}
	if len(response.Checks) != 1 {
		t.Fatalf("expected 1 check, got %d", len(response.Checks))
	}
	if response.Checks["anchor-host"].Status != HealthStatusHealthy {
		t.Errorf("expected passing check to be healthy")
	}
}

func TestHealthCheckWithFailingCheck(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "1.0.0")

	h.AddCheck("anchor-host", func() error { return errors.New("bbolt file unreachable") })

	response := h.Check()
	if response.Status != HealthStatusUnhealthy {
		t.Errorf("expected unhealthy status, got %s", response.Status)
	}
	if response.Checks["anchor-host"].Status != HealthStatusUnhealthy {
		t.Error("expected failing check to be unhealthy")
	}
	if response.Checks["anchor-host"].Message != "bbolt file unreachable" {
		t.Errorf("expected error message, got %s", response.Checks["anchor-host"].Message)
	}
}

func TestHealthCheckWithMetrics(t *testing.T) {
	c := NewCollector(nil)
	c.FrameSealed(1000)

	h := NewHealthCheck(c, "1.0.0")
	response := h.Check()

	if response.Metrics == nil {
		t.Fatal("expected metrics in response")
	}
	if response.Metrics.FramesSealed != 1 {
		t.Errorf("expected 1 frame sealed, got %d", response.Metrics.FramesSealed)
	}
	if response.Metrics.BytesSealed != 1000 {
		t.Errorf("expected 1000 bytes sealed, got %d", response.Metrics.BytesSealed)
	}
}

func TestHealthCheckHighErrorRateDegrades(t *testing.T) {
	c := NewCollector(nil)
	for i := 0; i < 100; i++ {
		c.FrameSealed(1)
	}
	for i := 0; i < 5; i++ {
		c.RecordAuthFailure()
	}

	h := NewHealthCheck(c, "1.0.0")
	response := h.Check()
	if response.Status != HealthStatusDegraded {
		t.Errorf("expected degraded status with >1%% error rate, got %s", response.Status)
	}
}

func TestHealthCheckRemoveCheck(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "1.0.0")

	h.AddCheck("temp", func() error { return errors.New("fail") })
	if response := h.Check(); response.Status != HealthStatusUnhealthy {
		t.Fatal("expected unhealthy before removal")
	}

	h.RemoveCheck("temp")
	if response := h.Check(); response.Status != HealthStatusHealthy {
		t.Errorf("expected healthy after removing the failing check, got %s", response.Status)
	}
}

func TestHealthCheckHandlerStatusCodes(t *testing.T) {
	c := NewCollector(nil)
	h := NewHealthCheck(c, "1.0.0")
	h.AddCheck("failing", func() error { return errors.New("down") })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 for unhealthy response, got %d", rec.Code)
	}

	var decoded HealthResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &decoded); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if decoded.Status != HealthStatusUnhealthy {
		t.Errorf("decoded status = %s, want unhealthy", decoded.Status)
	}
}

func TestLivenessHandlerAlwaysOK(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "1.0.0")
	h.AddCheck("failing", func() error { return errors.New("down") })

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.LivenessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("liveness should always report 200, got %d", rec.Code)
	}
}

func TestReadinessHandlerReflectsHealth(t *testing.T) {
	h := NewHealthCheck(NewCollector(nil), "1.0.0")
	h.AddCheck("failing", func() error { return errors.New("down") })

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	h.ReadinessHandler().ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 when unhealthy, got %d", rec.Code)
	}
}

func TestAnchorHostCheckWrapsProbe(t *testing.T) {
	called := false
	check := AnchorHostCheck(func() error {
		called = true
		return nil
	})
	if err := check(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected the probe to be invoked")
	}
}

func TestNewServerWiresHandlers(t *testing.T) {
	s := NewServer(ServerConfig{
		Collector:        NewCollector(nil),
		Namespace:        "pqcnet",
		EnablePrometheus: true,
		EnableHealth:     true,
	})

	for _, path := range []string{"/metrics", "/health", "/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		if rec.Code == http.StatusNotFound {
			t.Errorf("expected %s to be wired, got 404", path)
		}
	}
}
