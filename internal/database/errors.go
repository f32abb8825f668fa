package database

import "errors"

// Common errors returned by the database package.
var (
	// ErrSourceNotFound is returned when a source id does not exist.
	ErrSourceNotFound = errors.New("source not found")
	// ErrEntryNotFound is returned when a catalog entry id does not exist.
	ErrEntryNotFound = errors.New("catalog entry not found")
	// ErrJobRunNotFound is returned when a job run id does not exist.
	ErrJobRunNotFound = errors.New("job run not found")
	// ErrNoFields is returned when an update is requested with no fields.
	ErrNoFields = errors.New("no fields to update")
)
