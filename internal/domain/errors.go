package domain

import (
	"errors"
	"fmt"
)

var (
	// Malformed input; nothing was read from or written to a partition.
	ErrValidationFailed = errors.New("validation failed")

	// No partition is configured for the record's start year.
	ErrUnroutableRecord = errors.New("no partition configured for record year")

	ErrDuplicateSessionID = errors.New("session id already exists")
	ErrRecordNotFound     = errors.New("record not found")

	// One or more partitions failed; no partial result is returned.
	ErrPartitionQueryFailed = errors.New("partition query failed")
)

// PartitionError ties a partition store failure to the year it serves.
// It matches both ErrPartitionQueryFailed and the underlying cause.
type PartitionError struct {
	Year int
	Op   string
	Err  error
}

func (e *PartitionError) Error() string {
	return fmt.Sprintf("%s: partition %d: %v", e.Op, e.Year, e.Err)
}

func (e *PartitionError) Unwrap() []error {
	return []error{ErrPartitionQueryFailed, e.Err}
}
