package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/platform/obs"
)

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("req_id=%s encode failed: method=%s path=%s err=%v", obs.RequestID(r.Context()), r.Method, r.URL.Path, err)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, map[string]string{"error": msg})
}

// writeServiceError maps the record service error taxonomy onto HTTP statuses.
// Only server-side failures are logged.
func writeServiceError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, domain.ErrValidationFailed):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrRecordNotFound):
		writeError(w, r, http.StatusNotFound, "trip not found")
	case errors.Is(err, domain.ErrDuplicateSessionID):
		writeError(w, r, http.StatusConflict, "session_id already exists")
	case errors.Is(err, domain.ErrUnroutableRecord):
		writeError(w, r, http.StatusUnprocessableEntity, "no partition configured for the trip's start year")
	case errors.Is(err, domain.ErrPartitionQueryFailed):
		log.Printf("req_id=%s %s failed: %v", obs.RequestID(r.Context()), op, err)
		writeError(w, r, http.StatusServiceUnavailable, "partition unavailable")
	default:
		log.Printf("req_id=%s %s failed: %v", obs.RequestID(r.Context()), op, err)
		writeError(w, r, http.StatusInternalServerError, "internal server error")
	}
}

func intParam(raw string, fallback int) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback, nil
	}
	return strconv.Atoi(raw)
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
