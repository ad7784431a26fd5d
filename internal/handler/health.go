package handler

import (
	"net/http"
	"time"
)

// HealthHandler answers liveness probes.
type HealthHandler struct {
	backend   string
	startTime time.Time
}

// NewHealthHandler creates a health handler. backend names the storage
// backend the gateway runs on ("redis" or "memory").
func NewHealthHandler(backend string) *HealthHandler {
	return &HealthHandler{
		backend:   backend,
		startTime: time.Now(),
	}
}

// Health handles GET /health.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"backend":        h.backend,
		"uptime_seconds": int64(time.Since(h.startTime).Seconds()),
	})
}
