package config

import "errors"

// Configuration validation errors returned by Config.Validate.
// Callers match them with errors.Is.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed specified: provide the URL to start crawling from")

	// ErrInvalidSeed is returned when the seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("invalid seed: must be an absolute http or https URL")

	// ErrInvalidWorkers is returned when the worker count is negative.
	// Zero selects the sequential scheduler.
	ErrInvalidWorkers = errors.New("invalid workers: must be zero (sequential) or positive")

	// ErrInvalidTimeout is returned when the request timeout is negative.
	// Zero disables the timeout.
	ErrInvalidTimeout = errors.New("invalid timeout: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the max body size is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrEmptyOutput is returned when no log destination is set.
	ErrEmptyOutput = errors.New("no output specified: use a file path or - for stdout")

	// ErrConflictingTransports is returned when both --proxy and --tor are set.
	ErrConflictingTransports = errors.New("conflicting transports: --proxy and --tor cannot be used together")

	// ErrInvalidSummaryFormat is returned for an unknown summary format.
	ErrInvalidSummaryFormat = errors.New("invalid summary format: must be text, json, markdown or none")
)
