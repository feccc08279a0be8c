package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"metricagent/internal/config"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg := &config.Config{}
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.HTTPPort = 0

	reg := prometheus.NewRegistry()
	gauge := prometheus.NewGauge(prometheus.GaugeOpts{Name: "cpu_usage_percent"})
	gauge.Set(42)
	reg.MustRegister(gauge)

	return NewServer(cfg, reg, nil, nil, "testhost", zap.NewNop())
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid health response: %v", err)
	}
	if body["status"] != "ok" {
		t.Errorf("status field = %v, want ok", body["status"])
	}
	if body["hostname"] != "testhost" {
		t.Errorf("hostname = %v, want testhost", body["hostname"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if !strings.Contains(w.Body.String(), "cpu_usage_percent 42") {
		t.Errorf("exposition missing registered gauge:\n%s", w.Body.String())
	}
}

func TestAlertEndpointsWhenAlertingDisabled(t *testing.T) {
	srv := newTestServer(t)

	for _, path := range []string{
		"/api/v1/alerts/active",
		"/api/v1/alerts/severity",
		"/api/v1/alerts/rules",
		"/api/v1/alerts/history?rule=cpu_high",
	} {
		w := httptest.NewRecorder()
		srv.router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want 503 when alerting is disabled", path, w.Code)
		}
	}
}
