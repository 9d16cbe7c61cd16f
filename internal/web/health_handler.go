package web

import (
	"encoding/json"
	"net/http"

	"github.com/elecciones-pr/tablero/internal/health"
)

// HealthHandler exposes feed freshness for load balancers and operators.
type HealthHandler struct {
	reporter HealthReporter
}

// NewHealthHandler accepts a nil reporter, in which case the board always
// reports healthy.
func NewHealthHandler(reporter HealthReporter) *HealthHandler {
	return &HealthHandler{reporter: reporter}
}

func (h *HealthHandler) Serve(w http.ResponseWriter, r *http.Request) {
	status := health.Status{Healthy: true}
	if h.reporter != nil {
		status = h.reporter.Status()
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}
