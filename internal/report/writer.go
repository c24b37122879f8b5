package report

import (
	"io"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Writer writes a site map to its destination.
// It returns the number of bytes written.
type Writer interface {
	Write(sm *model.SiteMap) (int, error)
}

// MultiWriter writes to multiple Writers in order.
// Report writers take a SiteMap rather than bytes, so io.MultiWriter does not fit.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the site map to every writer and returns the total bytes
// written. It stops at the first error.
func (m *MultiWriter) Write(sm *model.SiteMap) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(sm)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// status returns a short label for the run state.
func status(sm *model.SiteMap) string {
	switch sm.State {
	case "finished":
		return "Complete"
	case "stopped":
		return "Stopped (partial results)"
	case "":
		return "Unknown"
	default:
		return sm.State
	}
}

// truncateString truncates a string to maxLen runes with ellipsis.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}
