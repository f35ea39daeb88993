package api

import (
	"math"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/okian/lobstream/pkg/metrics"
)

// HealthHandler serves the metrics registry and the relay health document.
type HealthHandler struct {
	started time.Time
	sources []string
	now     func() time.Time
}

// NewHealthHandler creates a health handler reporting the enabled sources.
func NewHealthHandler(sources []string) *HealthHandler {
	if sources == nil {
		sources = []string{}
	}
	return &HealthHandler{started: time.Now(), sources: sources, now: time.Now}
}

// HandleMetrics handles GET /metrics and /healthz from the custom registry.
func (h *HealthHandler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}

type relayHealth struct {
	Status  string   `json:"status"`
	Uptime  float64  `json:"uptime"`
	Sources []string `json:"sources"`
}

// HandleRelay answers / and /health on the health port; every other path is 404.
func (h *HealthHandler) HandleRelay(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/health" {
		writeError(w, http.StatusNotFound, ErrNotFound)
		return
	}
	uptime := math.Round(h.now().Sub(h.started).Seconds()*1000) / 1000
	writeJSON(w, http.StatusOK, relayHealth{Status: "ok", Uptime: uptime, Sources: h.sources})
}

// RelayMux builds the mux served on the health port.
func (h *HealthHandler) RelayMux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", MetricsMiddleware(h.HandleRelay, "relay_health"))
	return mux
}
