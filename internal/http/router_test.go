package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"transcript-navigator/internal/service/navigator"
)

type staticStates []navigator.State

func (s staticStates) States() []navigator.State { return s }

func newTestRouter() http.Handler {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "test_events_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	states := staticStates{
		{SessionID: "s-1", VideoID: "video-1", Language: "en", Segments: 75, Total: 150, ResolverState: "RESOLVED"},
	}
	return NewRouter(states, reg)
}

func TestRouter_Health(t *testing.T) {
	router := newTestRouter()

	tests := []struct {
		path string
		body string
	}{
		{"/v1/liveness", "ok"},
		{"/v1/readiness", "ready"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))
			if rec.Code != http.StatusOK || rec.Body.String() != tt.body {
				t.Errorf("expected 200 %q, got %d %q", tt.body, rec.Code, rec.Body.String())
			}
		})
	}
}

func TestRouter_Metrics(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestRouter().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if !strings.Contains(rec.Body.String(), "test_events_total 1") {
		t.Errorf("expected registry contents in /metrics, got %q", rec.Body.String())
	}
}

func TestRouter_NavigatorState(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/navigator", nil))

	var states []navigator.State
	if err := json.Unmarshal(rec.Body.Bytes(), &states); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(states) != 1 || states[0].Segments != 75 {
		t.Errorf("unexpected states %+v", states)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/navigator/s-1", nil))
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200 for a known session, got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/navigator/unknown", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown session, got %d", rec.Code)
	}
}
