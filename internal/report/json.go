package report

import (
	"encoding/json"
	"io"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// JSONWriter outputs the site map as JSON with the field names of the model.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string.
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the site map in JSON format.
func (w *JSONWriter) Write(sm *model.SiteMap) (int, error) {
	return w.writeJSON(sm)
}

// writeJSON marshals v and writes it followed by a newline.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return 0, err
	}

	data = append(data, '\n')
	return w.output.Write(data)
}

// JSONReport wraps a site map with information about the tool that produced it.
type JSONReport struct {
	// Version is the sitecrawler version that generated this report.
	Version string `json:"version"`

	// GeneratedAt is when the report was written.
	GeneratedAt time.Time `json:"generated_at"`

	// SiteMap is the crawl result.
	SiteMap *model.SiteMap `json:"site_map"`
}

// FullJSONWriter outputs site maps wrapped in a JSONReport.
type FullJSONWriter struct {
	*JSONWriter

	// version is the sitecrawler version string.
	version string

	// now returns the generation time.
	now func() time.Time
}

// NewFullJSONWriter creates a writer for site maps with version metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
		now:        time.Now,
	}
}

// Write outputs the wrapped site map.
func (w *FullJSONWriter) Write(sm *model.SiteMap) (int, error) {
	return w.writeJSON(&JSONReport{
		Version:     w.version,
		GeneratedAt: w.now().UTC(),
		SiteMap:     sm,
	})
}
