package store

import "errors"

var (
	// ErrNotFound is returned when a status or command does not exist.
	ErrNotFound = errors.New("store: record not found")

	// ErrVersionConflict is returned by SaveStatus when the stored version no
	// longer matches the version the caller read.
	ErrVersionConflict = errors.New("store: status version conflict")
)

// DefaultRecentLimit is used by RecentReadings when the caller passes a non-positive limit.
const DefaultRecentLimit = 15
