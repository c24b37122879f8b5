package fetcher

import (
	"context"
	"errors"
	"mime"
	"net"
	"strings"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Engine names recorded in PageRecord.FetchedWith.
const (
	EngineHTTP     = "http"
	EngineChromedp = "chromedp"
)

// Fetcher retrieves a single URL.
//
// On failure the returned error is a *model.FetchError. The Result may be
// non-nil alongside an HTTP error so callers can record the status and
// attempt count.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) (*Result, error)
}

// Result is a fetched response.
type Result struct {
	RequestedURL string
	// FinalURL is the URL after redirects. Links must be resolved against it.
	FinalURL    string
	StatusCode  int
	ContentType string
	// Encoding is the Content-Encoding the body was decoded from.
	Encoding  string
	Body      []byte
	Truncated bool
	Attempts  int
	Engine    string
	FetchedAt time.Time
}

// Redirected reports whether the final URL differs from the requested one.
func (r *Result) Redirected() bool {
	return r.FinalURL != "" && r.FinalURL != r.RequestedURL
}

// MediaType returns the lowercased media type of ContentType without parameters.
func (r *Result) MediaType() string {
	if r.ContentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(r.ContentType)
	if err != nil {
		mt, _, _ = strings.Cut(r.ContentType, ";")
	}
	return strings.ToLower(strings.TrimSpace(mt))
}

// IsHTML reports whether the body should be parsed as markup. An empty
// content type is treated as HTML.
func (r *Result) IsHTML() bool {
	switch r.MediaType() {
	case "", "text/html", "application/xhtml+xml":
		return true
	default:
		return false
	}
}

// transportError wraps err as a timeout or connection FetchError.
func transportError(rawURL string, err error) *model.FetchError {
	kind := model.FetchConnection
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		kind = model.FetchTimeout
	}
	return &model.FetchError{Kind: kind, URL: rawURL, Err: err}
}

// statusError returns the FetchError for a non-success status code.
func statusError(rawURL string, status int) *model.FetchError {
	return &model.FetchError{Kind: model.FetchHTTP, URL: rawURL, StatusCode: status}
}
