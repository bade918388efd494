// Package handler implements the HTTP surface of the coaching engine.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/stridefit-ai/coaching-engine/internal/model"
	"github.com/stridefit-ai/coaching-engine/internal/retry"
	"github.com/stridefit-ai/coaching-engine/internal/service"
)

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}

// errorStatus maps service errors onto HTTP status codes.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrConversationNotFound),
		errors.Is(err, service.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, retry.ErrQueuedOffline):
		return http.StatusAccepted
	case errors.Is(err, retry.ErrSendInFlight):
		return http.StatusConflict
	}

	var ce *model.ClientError
	if errors.As(err, &ce) {
		return ce.StatusCode
	}
	var se *model.ServerError
	if errors.As(err, &se) {
		return http.StatusBadGateway
	}
	var te *model.TransportError
	if errors.As(err, &te) {
		return http.StatusBadGateway
	}
	var pe *model.ProtocolError
	if errors.As(err, &pe) {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
