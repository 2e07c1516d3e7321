package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
	"trip-record-service/internal/adapters/cache"
	"trip-record-service/internal/adapters/repositories"
	"trip-record-service/internal/api/dto"
	"trip-record-service/internal/domain"
	"trip-record-service/internal/ports"
	"trip-record-service/internal/services"
)

const testKey = "secret"

func newTestServer(t *testing.T) http.Handler {
	t.Helper()

	router, err := services.NewShardRouter(map[int]ports.PartitionStore{
		2023: repositories.NewMemoryTripRepository(),
		2024: repositories.NewMemoryTripRepository(),
	})
	if err != nil {
		t.Fatalf("router: %v", err)
	}

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc := services.NewRecordService(
		router,
		services.NewFanoutQueryEngine(router),
		cache.NewMemoryRecordCache(),
		services.WithClock(func() time.Time { return now }),
	)
	return NewRouter(svc, router.Years(), Options{APIKey: testKey})
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(apiKeyHeader, testKey)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func tripBody(session, vehicle, start, end string, cost float64) map[string]any {
	return map[string]any{
		"session_id": session,
		"vehicle_id": vehicle,
		"start_time": start,
		"end_time":   end,
		"total_cost": cost,
	}
}

func TestHealthIsOpenWithoutKey(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}

	var res dto.HealthResponse
	if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Status != "ok" || len(res.Partitions) != 2 || res.Partitions[0] != 2023 || res.Partitions[1] != 2024 {
		t.Fatalf("health = %+v", res)
	}
}

func TestAPIKeyRequired(t *testing.T) {
	h := newTestServer(t)

	for _, key := range []string{"", "wrong"} {
		req := httptest.NewRequest(http.MethodGet, "/trips/session-001", nil)
		if key != "" {
			req.Header.Set(apiKeyHeader, key)
		}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		if rr.Code != http.StatusUnauthorized {
			t.Fatalf("key %q: status = %d, want 401", key, rr.Code)
		}
	}
}

func TestEmptyAPIKeyDisablesAuth(t *testing.T) {
	h := NewRouter(stubService{err: domain.ErrRecordNotFound}, nil, Options{})

	req := httptest.NewRequest(http.MethodGet, "/trips/session-001", nil)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestRequestIDEchoed(t *testing.T) {
	h := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-123")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if got := rr.Header().Get(requestIDHeader); got != "req-123" {
		t.Fatalf("request id = %q, want req-123", got)
	}

	rr = do(t, h, http.MethodGet, "/health", nil)
	if rr.Header().Get(requestIDHeader) == "" {
		t.Fatalf("expected a generated request id")
	}
}

func TestCreateAndGetTrip(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodPost, "/trips",
		tripBody("session-001", "vehicle-10", "2024-03-01T08:00:00Z", "2024-03-01T09:30:00Z", 12.5))
	if rr.Code != http.StatusCreated {
		t.Fatalf("create status = %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}

	rr = do(t, h, http.MethodGet, "/trips/session-001", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", rr.Code)
	}

	var got dto.TripResponse
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SessionID != "session-001" || got.VehicleID != "vehicle-10" || got.TotalCost != 12.5 {
		t.Fatalf("trip = %+v", got)
	}
	if !got.StartTime.Equal(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("start = %v", got.StartTime)
	}
}

func TestCreateTripErrors(t *testing.T) {
	h := newTestServer(t)

	ok := tripBody("session-001", "vehicle-10", "2024-03-01T08:00:00Z", "2024-03-01T09:30:00Z", 12.5)
	if rr := do(t, h, http.MethodPost, "/trips", ok); rr.Code != http.StatusCreated {
		t.Fatalf("seed status = %d", rr.Code)
	}

	tests := []struct {
		name string
		body any
		want int
	}{
		{"duplicate", ok, http.StatusConflict},
		{"duplicate in other year", tripBody("session-001", "vehicle-10", "2023-03-01T08:00:00Z", "2023-03-01T09:00:00Z", 1), http.StatusConflict},
		{"short session id", tripBody("s1", "vehicle-10", "2024-03-01T08:00:00Z", "2024-03-01T09:00:00Z", 1), http.StatusBadRequest},
		{"end before start", tripBody("session-002", "vehicle-10", "2024-03-01T08:00:00Z", "2024-03-01T07:00:00Z", 1), http.StatusBadRequest},
		{"negative cost", tripBody("session-003", "vehicle-10", "2024-03-01T08:00:00Z", "2024-03-01T09:00:00Z", -1), http.StatusBadRequest},
		{"unroutable year", tripBody("session-004", "vehicle-10", "2022-03-01T08:00:00Z", "2022-03-01T09:00:00Z", 1), http.StatusUnprocessableEntity},
		{"missing times", map[string]any{"session_id": "session-005", "vehicle_id": "vehicle-10", "total_cost": 1}, http.StatusBadRequest},
		{"unknown field", map[string]any{"session": "x"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		rr := do(t, h, http.MethodPost, "/trips", tt.body)
		if rr.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d (body %s)", tt.name, rr.Code, tt.want, rr.Body.String())
		}
	}
}

func TestGetTripNotFound(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/trips/session-missing", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rr.Code)
	}
}

func TestListTripsByVehicle(t *testing.T) {
	h := newTestServer(t)

	for _, b := range []map[string]any{
		tripBody("session-a", "vehicle-10", "2023-05-01T08:00:00Z", "2023-05-01T09:00:00Z", 3),
		tripBody("session-b", "vehicle-10", "2024-01-10T08:00:00Z", "2024-01-10T09:00:00Z", 4),
		tripBody("session-c", "vehicle-10", "2024-02-10T08:00:00Z", "2024-02-10T09:00:00Z", 5),
		tripBody("session-d", "vehicle-99", "2024-02-11T08:00:00Z", "2024-02-11T09:00:00Z", 6),
	} {
		if rr := do(t, h, http.MethodPost, "/trips", b); rr.Code != http.StatusCreated {
			t.Fatalf("seed status = %d (body %s)", rr.Code, rr.Body.String())
		}
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"session-a", "session-b", "session-c"}},
		{"?sort_order=desc", []string{"session-c", "session-b", "session-a"}},
		{"?size=2&sort_by=endTime&sort_order=desc", []string{"session-c", "session-b"}},
	}

	for _, tt := range tests {
		rr := do(t, h, http.MethodGet, "/trips/vehicle/vehicle-10"+tt.query, nil)
		if rr.Code != http.StatusOK {
			t.Fatalf("%q: status = %d, want 200", tt.query, rr.Code)
		}

		var res dto.ListTripsResponse
		if err := json.NewDecoder(rr.Body).Decode(&res); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if len(res.Trips) != len(tt.want) {
			t.Fatalf("%q: got %d trips, want %d", tt.query, len(res.Trips), len(tt.want))
		}
		for i, id := range tt.want {
			if res.Trips[i].SessionID != id {
				t.Fatalf("%q: trips[%d] = %s, want %s", tt.query, i, res.Trips[i].SessionID, id)
			}
		}
	}
}

func TestListTripsEmptyIsArray(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/trips/vehicle/vehicle-none", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if got := rr.Body.String(); got != "{\"trips\":[]}\n" {
		t.Fatalf("body = %q", got)
	}
}

func TestListTripsBadParams(t *testing.T) {
	h := newTestServer(t)

	for _, q := range []string{"?page=x", "?page=3074457345618258603&size=4", "?size=0", "?size=101", "?page=-1", "?sort_by=cost", "?sort_order=up"} {
		rr := do(t, h, http.MethodGet, "/trips/vehicle/vehicle-10"+q, nil)
		if rr.Code != http.StatusBadRequest {
			t.Fatalf("%q: status = %d, want 400", q, rr.Code)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	h := newTestServer(t)

	rr := do(t, h, http.MethodGet, "/trips", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rr.Code)
	}
	if rr.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("Allow = %q", rr.Header().Get("Allow"))
	}
}

type stubService struct {
	err error
}

func (s stubService) Create(context.Context, domain.TripRecord) (domain.TripRecord, error) {
	return domain.TripRecord{}, s.err
}

func (s stubService) FindBySessionID(context.Context, string) (domain.TripRecord, error) {
	return domain.TripRecord{}, s.err
}

func (s stubService) FindByVehicleID(
	context.Context, string, int, int, domain.SortField, domain.SortDirection,
) ([]domain.TripRecord, error) {
	return nil, s.err
}

func TestServiceErrorStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&domain.PartitionError{Year: 2024, Op: "find by session", Err: errors.New("conn refused")}, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
		{domain.ErrRecordNotFound, http.StatusNotFound},
	}

	for _, tt := range tests {
		h := NewRouter(stubService{err: tt.err}, nil, Options{APIKey: testKey})
		rr := do(t, h, http.MethodGet, "/trips/session-001", nil)
		if rr.Code != tt.want {
			t.Fatalf("%v: status = %d, want %d", tt.err, rr.Code, tt.want)
		}
	}
}

func TestRateLimitPerClient(t *testing.T) {
	h := NewRouter(stubService{err: domain.ErrRecordNotFound}, nil, Options{RequestsPerMinute: 1, RateBurst: 2})

	get := func(path, remote string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = remote
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		return rr.Code
	}

	for i := 0; i < 2; i++ {
		if code := get("/trips/session-001", "10.0.0.1:5000"); code != http.StatusNotFound {
			t.Fatalf("request %d: status = %d, want 404", i, code)
		}
	}
	if code := get("/trips/session-001", "10.0.0.1:5001"); code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", code)
	}
	if code := get("/health", "10.0.0.1:5002"); code != http.StatusOK {
		t.Fatalf("health status = %d, want 200", code)
	}
	if code := get("/trips/session-001", "10.0.0.2:5000"); code != http.StatusNotFound {
		t.Fatalf("other client: status = %d, want 404", code)
	}
}

func TestRateLimiterForgetsIdleClients(t *testing.T) {
	rl := newRateLimiter(60, 1)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	rl.allow("10.0.0.1")
	now = now.Add(limiterIdleTTL + 2*time.Minute)
	rl.allow("10.0.0.2")

	if _, ok := rl.clients["10.0.0.1"]; ok {
		t.Fatalf("idle client was not dropped")
	}
	if len(rl.clients) != 1 {
		t.Fatalf("clients = %d, want 1", len(rl.clients))
	}
}
