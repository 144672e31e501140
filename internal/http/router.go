package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"transcript-navigator/internal/service/navigator"
)

// StateProvider lists the panels currently mounted.
type StateProvider interface {
	States() []navigator.State
}

// NewRouter constructs the metrics, health and debug router.
func NewRouter(states StateProvider, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()

	// Basic middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	// Health endpoints
	r.Get("/v1/liveness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/v1/readiness", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/navigator", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, states.States())
		})
		r.Get("/navigator/{sessionID}", func(w http.ResponseWriter, req *http.Request) {
			id := chi.URLParam(req, "sessionID")
			for _, st := range states.States() {
				if st.SessionID == id {
					writeJSON(w, http.StatusOK, st)
					return
				}
			}
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "session not found"})
		})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
