package handlers

import (
	"net/http"
	"trip-record-service/internal/api/dto"
)

// HealthHandler provides a minimal liveness check listing the configured partition years.
type HealthHandler struct {
	Years []int
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	years := h.Years
	if years == nil {
		years = []int{}
	}

	writeJSON(w, r, http.StatusOK, dto.HealthResponse{Status: "ok", Partitions: years})
}
