package domain

import (
	"fmt"
	"math"
	"strings"
)

type SortField string

const (
	SortByStartTime SortField = "startTime"
	SortByEndTime   SortField = "endTime"
)

type SortDirection string

const (
	Ascending  SortDirection = "asc"
	Descending SortDirection = "desc"
)

const (
	DefaultPageSize = 3
	MaxPageSize     = 100

	// Largest page whose window (offset plus size) still fits in an int.
	MaxPage = math.MaxInt/MaxPageSize - 1
)

// Ordering requested for a multi-record query. Supplied per query, never stored.
type SortSpec struct {
	Field     SortField
	Direction SortDirection
}

// Compare orders two records by the sort field, honoring the direction.
// Equal keys compare as 0 so a stable sort keeps their input order.
func (s SortSpec) Compare(a, b TripRecord) int {
	ka, kb := a.StartTime, b.StartTime
	if s.Field == SortByEndTime {
		ka, kb = a.EndTime, b.EndTime
	}

	c := ka.Compare(kb)
	if s.Direction == Descending {
		return -c
	}
	return c
}

// Zero-based page of a sorted result set.
type PageRequest struct {
	Page int
	Size int
	Sort SortSpec
}

// Offset is the number of records skipped before this page within one store.
func (p PageRequest) Offset() int { return p.Page * p.Size }

func (p PageRequest) Validate() error {
	if p.Page < 0 {
		return fmt.Errorf("%w: page must not be negative (got %d)", ErrValidationFailed, p.Page)
	}
	if p.Page > MaxPage {
		return fmt.Errorf("%w: page must not exceed %d (got %d)", ErrValidationFailed, MaxPage, p.Page)
	}
	if p.Size < 1 || p.Size > MaxPageSize {
		return fmt.Errorf("%w: page size must be between 1 and %d (got %d)", ErrValidationFailed, MaxPageSize, p.Size)
	}
	if _, err := ParseSortField(string(p.Sort.Field)); err != nil {
		return err
	}
	if _, err := ParseSortDirection(string(p.Sort.Direction)); err != nil {
		return err
	}
	return nil
}

// ParseSortField accepts the camelCase field names used by the API,
// plus their snake_case column spellings. Empty means startTime.
func ParseSortField(s string) (SortField, error) {
	switch strings.TrimSpace(s) {
	case "", "startTime", "start_time":
		return SortByStartTime, nil
	case "endTime", "end_time":
		return SortByEndTime, nil
	default:
		return "", fmt.Errorf("%w: unknown sort field %q", ErrValidationFailed, s)
	}
}

// ParseSortDirection is case-insensitive. Empty means ascending.
func ParseSortDirection(s string) (SortDirection, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "asc", "ascending":
		return Ascending, nil
	case "desc", "descending":
		return Descending, nil
	default:
		return "", fmt.Errorf("%w: unknown sort direction %q", ErrValidationFailed, s)
	}
}
