package api

import (
	"net/http"
	"trip-record-service/internal/api/handlers"
)

// Options configures the cross-cutting HTTP behavior.
type Options struct {
	// APIKey is required in X-API-KEY on every route but /health. Empty disables auth.
	APIKey string
	// RequestsPerMinute per client IP; 0 disables rate limiting.
	RequestsPerMinute int
	RateBurst         int
}

// NewRouter wires HTTP handlers with their dependencies and returns an http.Handler.
// This is the API composition root (handlers stay unaware of concrete adapters).
func NewRouter(svc handlers.TripService, years []int, opts Options) http.Handler {
	mux := http.NewServeMux()

	tripHandler := &handlers.TripHandler{Service: svc}
	healthHandler := &handlers.HealthHandler{Years: years}

	mux.HandleFunc("/health", healthHandler.Health)
	mux.HandleFunc("/trips", tripHandler.Create)
	mux.HandleFunc("/trips/{sessionID}", tripHandler.Get)
	mux.HandleFunc("/trips/vehicle/{vehicleID}", tripHandler.ListByVehicle)

	var h http.Handler = mux
	h = apiKeyMiddleware(opts.APIKey, h)
	h = rateLimitMiddleware(opts.RequestsPerMinute, opts.RateBurst, h)
	h = loggingMiddleware(h)
	return requestIDMiddleware(h)
}
