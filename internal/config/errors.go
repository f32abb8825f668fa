package config

import "errors"

// Common errors returned by the config package.
var (
	// ErrMissingHost is returned when the database host is not set.
	ErrMissingHost = errors.New("missing database host")
	// ErrMissingDBName is returned when the database name is not set.
	ErrMissingDBName = errors.New("missing database name")
	// ErrInvalidConcurrency is returned when the concurrency cap is negative.
	ErrInvalidConcurrency = errors.New("max_concurrent must not be negative")
)
