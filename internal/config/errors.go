package config

import "errors"

// Configuration validation errors.
// Validate wraps them in a *model.ConfigurationError naming the offending
// option, so callers can match them with errors.Is.
var (
	// ErrNoSeed is returned when no seed URL is given.
	ErrNoSeed = errors.New("no seed URL specified")

	// ErrInvalidSeed is returned when a seed is not an absolute http(s) URL.
	ErrInvalidSeed = errors.New("seed must be an absolute http or https URL")

	// ErrInvalidWorkers is returned when the worker pool size is not positive.
	ErrInvalidWorkers = errors.New("invalid worker count: must be positive")

	// ErrInvalidTimeout is returned when the per-fetch timeout is not positive.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidDelay is returned when the politeness delay is negative.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxPages is returned when the page cap is negative. Zero means unlimited.
	ErrInvalidMaxPages = errors.New("invalid max pages: must be non-negative")

	// ErrInvalidBatchFactor is returned when the batch factor is less than one.
	ErrInvalidBatchFactor = errors.New("invalid batch factor: must be at least 1")

	// ErrInvalidMaxBodySize is returned when the body size limit is negative.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidParallel is returned when the number of concurrent seeds is not positive.
	ErrInvalidParallel = errors.New("invalid parallel seed count: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown are set.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrConflictingProxy is returned when both a proxy address and the embedded Tor daemon are requested.
	ErrConflictingProxy = errors.New("conflicting proxy options: --proxy and --embedded-tor cannot be used together")

	// ErrRendererWithProxy is returned when the headless renderer is combined with a proxy.
	// The renderer drives its own browser network stack and cannot use the crawler's dialer.
	ErrRendererWithProxy = errors.New("headless rendering cannot be combined with a proxy")

	// ErrInvalidLogFormat is returned for a log format other than text or json.
	ErrInvalidLogFormat = errors.New("invalid log format: must be text or json")
)
