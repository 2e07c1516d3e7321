package domain

import (
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	MinIDLength = 5
	MaxIDLength = 50
)

// Represents one vehicle session: who drove, when, and what it cost.
// A TripRecord is written once into the partition of its start year and is
// never updated or moved afterwards.
type TripRecord struct {
	SessionID string
	VehicleID string
	StartTime time.Time
	EndTime   time.Time
	TotalCost float64
}

// Year returns the partition key of the record.
func (r TripRecord) Year() int { return r.StartTime.UTC().Year() }

// Validate checks the record invariants against the supplied clock reading.
// All violations are reported together, wrapped in ErrValidationFailed.
func (r TripRecord) Validate(now time.Time) error {
	var problems []string

	if msg := checkID("session_id", r.SessionID); msg != "" {
		problems = append(problems, msg)
	}
	if msg := checkID("vehicle_id", r.VehicleID); msg != "" {
		problems = append(problems, msg)
	}

	switch {
	case r.StartTime.IsZero():
		problems = append(problems, "start_time is required")
	case r.StartTime.After(now):
		problems = append(problems, "start_time must not be in the future")
	}

	if r.EndTime.IsZero() {
		problems = append(problems, "end_time is required")
	} else if !r.StartTime.IsZero() && r.EndTime.Before(r.StartTime) {
		problems = append(problems, "end_time must not be before start_time")
	}

	if math.IsNaN(r.TotalCost) || math.IsInf(r.TotalCost, 0) {
		problems = append(problems, "total_cost must be a finite number")
	} else if r.TotalCost < 0 {
		problems = append(problems, "total_cost must not be negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}

// Normalize trims identifiers and converts timestamps to UTC.
func (r TripRecord) Normalize() TripRecord {
	r.SessionID = strings.TrimSpace(r.SessionID)
	r.VehicleID = strings.TrimSpace(r.VehicleID)
	r.StartTime = r.StartTime.UTC()
	r.EndTime = r.EndTime.UTC()
	return r
}

// Equal reports whether two records carry the same values.
// Timestamps are compared as instants, not by location.
func (r TripRecord) Equal(o TripRecord) bool {
	return r.SessionID == o.SessionID &&
		r.VehicleID == o.VehicleID &&
		r.StartTime.Equal(o.StartTime) &&
		r.EndTime.Equal(o.EndTime) &&
		r.TotalCost == o.TotalCost
}

func checkID(field, v string) string {
	n := utf8.RuneCountInString(strings.TrimSpace(v))
	if n < MinIDLength || n > MaxIDLength {
		return fmt.Sprintf("%s length must be between %d and %d (got %d)", field, MinIDLength, MaxIDLength, n)
	}
	return ""
}
