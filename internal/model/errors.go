package model

import (
	"errors"
	"fmt"
	"net/http"
)

// Filter outcomes. These are normal results of admission checks, not failures.
var (
	// ErrScopeRejected is returned for URLs outside the crawl domain, with a
	// disallowed scheme, or excluded by an ignore pattern.
	ErrScopeRejected = errors.New("url rejected by crawl scope")

	// ErrRobotsDisallowed is returned for URLs excluded by robots rules.
	ErrRobotsDisallowed = errors.New("url disallowed by robots rules")
)

// Fetch failure sentinels. A *FetchError matches the sentinel of its kind
// with errors.Is.
var (
	ErrFetchTimeout    = errors.New("fetch timed out")
	ErrFetchConnection = errors.New("fetch connection failed")
	ErrFetchHTTP       = errors.New("fetch returned error status")
	ErrNotFound        = errors.New("page not found")
	ErrForbidden       = errors.New("access denied")
	ErrRateLimited     = errors.New("rate limited by server")
)

// FetchErrorKind classifies a fetch failure.
type FetchErrorKind int

const (
	// FetchTimeout means the per-request deadline elapsed.
	FetchTimeout FetchErrorKind = iota
	// FetchConnection means no response was received (DNS, refused, reset, TLS).
	FetchConnection
	// FetchHTTP means a response arrived with a non-success status.
	FetchHTTP
)

// String returns the short name of the kind.
func (k FetchErrorKind) String() string {
	switch k {
	case FetchTimeout:
		return "timeout"
	case FetchConnection:
		return "connection"
	case FetchHTTP:
		return "http"
	default:
		return "unknown"
	}
}

// FetchError describes a failed fetch of a single URL.
type FetchError struct {
	Kind       FetchErrorKind
	URL        string
	StatusCode int
	Err        error
}

// Error implements error.
func (e *FetchError) Error() string {
	switch {
	case e.Kind == FetchHTTP:
		return fmt.Sprintf("fetch %s: HTTP %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
	}
}

// Unwrap returns the underlying transport error, if any.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is matches the fetch sentinels by kind and status code.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrFetchTimeout:
		return e.Kind == FetchTimeout
	case ErrFetchConnection:
		return e.Kind == FetchConnection
	case ErrFetchHTTP:
		return e.Kind == FetchHTTP
	case ErrNotFound:
		return e.Kind == FetchHTTP && e.StatusCode == http.StatusNotFound
	case ErrForbidden:
		return e.Kind == FetchHTTP && e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.Kind == FetchHTTP && e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

// KindLabel returns the label stored in PageRecord.ErrorKind.
func (e *FetchError) KindLabel() string {
	if e.Kind == FetchHTTP && e.StatusCode == http.StatusNotFound {
		return "not_found"
	}
	return e.Kind.String()
}

// ExtractionError reports a body that could not be parsed. The page is still
// recorded, with an empty extraction.
type ExtractionError struct {
	URL string
	Err error
}

// Error implements error.
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

// Unwrap returns the parse error.
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ConfigurationError reports an invalid seed URL or contradictory options.
// It is fatal and returned before any crawling starts.
type ConfigurationError struct {
	Field string
	Err   error
}

// Error implements error.
func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %v", e.Err)
	}
	return fmt.Sprintf("configuration error: %s: %v", e.Field, e.Err)
}

// Unwrap returns the wrapped sentinel.
func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ErrorKind returns a short classification for err, suitable for
// PageRecord.ErrorKind.
func ErrorKind(err error) string {
	var fetchErr *FetchError
	var extractErr *ExtractionError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &fetchErr):
		return fetchErr.KindLabel()
	case errors.As(err, &extractErr):
		return "extraction"
	case errors.Is(err, ErrRobotsDisallowed):
		return "robots"
	case errors.Is(err, ErrScopeRejected):
		return "scope"
	default:
		return "other"
	}
}
