package handler

import (
	"net/http"

	natsclient "github.com/stridefit-ai/coaching-engine/internal/nats"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
)

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	natsClient *natsclient.Client
	monitor    retry.Monitor
}

// NewHealthHandler creates a new health handler. natsClient may be nil
// when running on the in-memory store.
func NewHealthHandler(natsClient *natsclient.Client, monitor retry.Monitor) *HealthHandler {
	return &HealthHandler{
		natsClient: natsClient,
		monitor:    monitor,
	}
}

// Health handles GET /health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

// Ready handles GET /ready
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.natsClient != nil && !h.natsClient.IsConnected() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "not ready",
			"reason": "NATS not connected",
		})
		return
	}

	status := map[string]interface{}{
		"status": "ready",
	}
	if h.monitor != nil {
		status["online"] = h.monitor.IsOnline()
	}
	writeJSON(w, http.StatusOK, status)
}
