package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"trip-record-service/internal/api/dto"
	"trip-record-service/internal/domain"
)

// TripService is what the HTTP layer needs from the record service.
type TripService interface {
	Create(ctx context.Context, rec domain.TripRecord) (domain.TripRecord, error)
	FindBySessionID(ctx context.Context, sessionID string) (domain.TripRecord, error)
	FindByVehicleID(
		ctx context.Context,
		vehicleID string,
		page int,
		pageSize int,
		sortField domain.SortField,
		sortDirection domain.SortDirection,
	) ([]domain.TripRecord, error)
}

// TripHandler exposes trip record creation and lookup endpoints.
type TripHandler struct {
	Service TripService
}

// Create stores a new trip record in the partition of its start year.
func (h *TripHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req dto.CreateTripRequest

	dec := json.NewDecoder(r.Body)
	defer r.Body.Close()
	dec.DisallowUnknownFields()

	if err := dec.Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		writeError(w, r, http.StatusBadRequest, "body must contain only one JSON object")
		return
	}

	if req.StartTime == nil || req.EndTime == nil {
		writeError(w, r, http.StatusBadRequest, "start_time and end_time are required")
		return
	}
	if req.TotalCost == nil {
		writeError(w, r, http.StatusBadRequest, "total_cost is required")
		return
	}

	created, err := h.Service.Create(r.Context(), domain.TripRecord{
		SessionID: req.SessionID,
		VehicleID: req.VehicleID,
		StartTime: *req.StartTime,
		EndTime:   *req.EndTime,
		TotalCost: *req.TotalCost,
	})
	if err != nil {
		writeServiceError(w, r, "create trip", err)
		return
	}

	writeJSON(w, r, http.StatusCreated, toTripResponse(created))
}

// Get returns a single trip by session id.
func (h *TripHandler) Get(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rec, err := h.Service.FindBySessionID(r.Context(), r.PathValue("sessionID"))
	if err != nil {
		writeServiceError(w, r, "get trip", err)
		return
	}

	writeJSON(w, r, http.StatusOK, toTripResponse(rec))
}

// ListByVehicle returns one sorted page of a vehicle's trips across all partitions.
// Query parameters: page (default 0), size (default 3), sort_by (startTime|endTime),
// sort_order (asc|desc).
func (h *TripHandler) ListByVehicle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()

	page, err := intParam(q.Get("page"), 0)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "page must be an integer")
		return
	}
	size, err := intParam(q.Get("size"), domain.DefaultPageSize)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "size must be an integer")
		return
	}

	field, err := domain.ParseSortField(firstNonEmpty(q.Get("sort_by"), q.Get("sortBy")))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "sort_by must be startTime or endTime")
		return
	}
	dir, err := domain.ParseSortDirection(firstNonEmpty(q.Get("sort_order"), q.Get("sortOrder")))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "sort_order must be asc or desc")
		return
	}

	trips, err := h.Service.FindByVehicleID(r.Context(), r.PathValue("vehicleID"), page, size, field, dir)
	if err != nil {
		writeServiceError(w, r, "list trips by vehicle", err)
		return
	}

	res := dto.ListTripsResponse{Trips: make([]dto.TripResponse, 0, len(trips))}
	for _, t := range trips {
		res.Trips = append(res.Trips, toTripResponse(t))
	}

	writeJSON(w, r, http.StatusOK, res)
}

func toTripResponse(rec domain.TripRecord) dto.TripResponse {
	return dto.TripResponse{
		SessionID: rec.SessionID,
		VehicleID: rec.VehicleID,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		TotalCost: rec.TotalCost,
	}
}
