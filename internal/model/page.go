package model

import (
	"strings"
	"time"
)

// PageRecord is the outcome of one fetch attempt.
// Successful fetches carry extracted data; failed fetches carry the error
// detail so that "never reachable" can be told apart from "reachable but empty".
// A PageRecord is immutable once it has been handed to the aggregator.
type PageRecord struct {
	// URL is the normalized address that was requested.
	URL NormalizedURL `json:"url"`

	// FinalURL is the address after redirects. It equals URL when no redirect happened.
	FinalURL string `json:"final_url"`

	// Title is the text of the <title> element.
	Title string `json:"title,omitempty"`

	// Description is the content of <meta name="description">.
	Description string `json:"description,omitempty"`

	// StatusCode is the HTTP status of the last attempt. Zero when no response arrived.
	StatusCode int `json:"status_code"`

	// ContentType is the media type from the Content-Type header.
	ContentType string `json:"content_type,omitempty"`

	// ContentSize is the number of body bytes read.
	ContentSize int64 `json:"content_size"`

	// Encoding is the character encoding the body was decoded from.
	Encoding string `json:"content_encoding,omitempty"`

	// Redirected reports whether the final URL differs from the requested one.
	Redirected bool `json:"redirected"`

	// FetchedWith names the fetch engine ("http" or "renderer").
	FetchedWith string `json:"fetched_with,omitempty"`

	// Attempts is the number of HTTP requests made, including user-agent fallbacks.
	Attempts int `json:"attempts"`

	// Links are the same-site page links discovered on this page.
	Links []NormalizedURL `json:"links"`

	// Files maps resource categories to the resource URLs referenced by this page.
	Files map[ResourceCategory][]string `json:"files"`

	// Data holds the structured artifacts extracted from the page.
	Data PageData `json:"data"`

	// FetchedAt is when the fetch attempt completed.
	FetchedAt time.Time `json:"fetched_at"`

	// Error is the error message for failed attempts.
	Error string `json:"error,omitempty"`

	// ErrorKind is a short machine-readable classification of Error.
	ErrorKind string `json:"error_kind,omitempty"`
}

// OK reports whether the fetch succeeded.
func (p *PageRecord) OK() bool {
	return p.Error == ""
}

// IsHTML reports whether the record's content type is an HTML document.
func (p *PageRecord) IsHTML() bool {
	ct := strings.ToLower(p.ContentType)
	return strings.Contains(ct, "text/html") || strings.Contains(ct, "application/xhtml")
}

// FileCount returns the total number of resource references on the page.
func (p *PageRecord) FileCount() int {
	n := 0
	for _, urls := range p.Files {
		n += len(urls)
	}
	return n
}

// PageData holds the structured artifacts extracted from a single page.
type PageData struct {
	Emails        []string            `json:"emails,omitempty"`
	Phones        []string            `json:"phones,omitempty"`
	SocialLinks   []SocialLink        `json:"social_links,omitempty"`
	Forms         []Form              `json:"forms,omitempty"`
	Headings      map[string][]string `json:"headings,omitempty"`
	Images        []Image             `json:"images,omitempty"`
	Meta          map[string]string   `json:"meta,omitempty"`
	Language      string              `json:"language,omitempty"`
	APIEndpoints  []string            `json:"api_endpoints,omitempty"`
	ExternalLinks []string            `json:"external_links,omitempty"`
	WordCount     int                 `json:"word_count"`
	Excerpt       string              `json:"excerpt,omitempty"`
}

// SocialLink is a profile URL on a known social platform.
type SocialLink struct {
	Platform string `json:"platform"`
	URL      string `json:"url"`
}

// Form describes an HTML form.
type Form struct {
	// Page is the page the form was found on. Set by the aggregator.
	Page   string      `json:"page,omitempty"`
	Action string      `json:"action"`
	Method string      `json:"method"`
	Fields []FormField `json:"fields"`
}

// Key returns an identity used to deduplicate forms across pages.
func (f Form) Key() string {
	var b strings.Builder
	b.WriteString(f.Page)
	b.WriteByte('|')
	b.WriteString(strings.ToUpper(f.Method))
	b.WriteByte('|')
	b.WriteString(f.Action)
	for _, field := range f.Fields {
		b.WriteByte('|')
		b.WriteString(field.Name)
	}
	return b.String()
}

// FormField describes one input, select or textarea of a form.
type FormField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Required bool   `json:"required"`
}

// Image describes an <img> element.
type Image struct {
	Src    string `json:"src"`
	Alt    string `json:"alt,omitempty"`
	Title  string `json:"title,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}
