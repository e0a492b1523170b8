// Package admin serves the operational HTTP surface: Prometheus metrics and a
// health check.
package admin

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Health reports liveness details for /healthz.
type Health struct {
	Role    string    `json:"role"`
	Started time.Time `json:"started"`
	// Session is the current peer, empty before the first handshake.
	Session string `json:"session,omitempty"`
}

// NewRouter returns the admin routes. status is called per /healthz request.
func NewRouter(gatherer prometheus.Gatherer, status func() Health) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(status())
	})
	return r
}
