package model

import (
	"errors"
	"net"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a string cannot be normalized into an absolute
// http or https URL.
var ErrInvalidURL = errors.New("invalid URL: expected absolute http or https address")

// NormalizedURL is the canonical form of an address and the only identity key
// used for deduplication.
//
// The canonical form is scheme://host[:port]path[?query] with a lowercase scheme
// and host, no fragment, no default port, and no trailing slash except for the
// root path "/".
type NormalizedURL string

// String returns the normalized URL as a plain string.
func (n NormalizedURL) String() string {
	return string(n)
}

// Host returns the host (without port) of the normalized URL.
func (n NormalizedURL) Host() string {
	u, err := url.Parse(string(n))
	if err != nil {
		return ""
	}
	return u.Hostname()
}

// Path returns the path component, "/" for the root.
func (n NormalizedURL) Path() string {
	u, err := url.Parse(string(n))
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// Normalize parses raw and returns its canonical form.
// Only absolute http and https URLs are accepted.
func Normalize(raw string) (NormalizedURL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", errors.Join(ErrInvalidURL, err)
	}
	return NormalizeURL(u)
}

// NormalizeURL returns the canonical form of an already parsed URL.
func NormalizeURL(u *url.URL) (NormalizedURL, error) {
	if u == nil || u.Host == "" {
		return "", ErrInvalidURL
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", ErrInvalidURL
	}

	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" && !isDefaultPort(scheme, port) {
		host = net.JoinHostPort(host, port)
	} else if strings.Contains(host, ":") {
		// IPv6 literal without port
		host = "[" + host + "]"
	}

	path := u.EscapedPath()
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}
	if path == "" {
		path = "/"
	}

	var b strings.Builder
	b.WriteString(scheme)
	b.WriteString("://")
	b.WriteString(host)
	b.WriteString(path)
	if u.RawQuery != "" {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	return NormalizedURL(b.String()), nil
}

// isDefaultPort reports whether port is the default for scheme.
func isDefaultPort(scheme, port string) bool {
	return (scheme == "http" && port == "80") || (scheme == "https" && port == "443")
}
