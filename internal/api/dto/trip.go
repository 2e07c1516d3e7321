package dto

import "time"

type CreateTripRequest struct {
	SessionID string     `json:"session_id"`
	VehicleID string     `json:"vehicle_id"`
	StartTime *time.Time `json:"start_time"`
	EndTime   *time.Time `json:"end_time"`
	TotalCost *float64   `json:"total_cost"`
}

type TripResponse struct {
	SessionID string    `json:"session_id"`
	VehicleID string    `json:"vehicle_id"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
	TotalCost float64   `json:"total_cost"`
}

type ListTripsResponse struct {
	Trips []TripResponse `json:"trips"`
}

type HealthResponse struct {
	Status     string `json:"status"`
	Partitions []int  `json:"partitions"`
}
