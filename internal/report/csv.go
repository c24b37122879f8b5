package report

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
)

// csvHeader is the first row of the inventory.
var csvHeader = []string{"category", "url", "found_on"}

// CSVWriter outputs the resource inventory as CSV, one row per resource.
// The found_on column lists the referencing pages separated by semicolons.
type CSVWriter struct {
	baseWriter
}

// NewCSVWriter creates a CSVWriter that outputs to the given writer.
func NewCSVWriter(output io.Writer) *CSVWriter {
	return &CSVWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs the inventory ordered by category, then URL.
func (w *CSVWriter) Write(sm *model.SiteMap) (int, error) {
	var sb strings.Builder
	cw := csv.NewWriter(&sb)

	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}

	foundOn := sm.FoundOn()
	for _, category := range model.AllCategories {
		for _, u := range sm.Resources[category] {
			pages := foundOn[u]
			refs := make([]string, 0, len(pages))
			for _, p := range pages {
				refs = append(refs, p.String())
			}
			if err := cw.Write([]string{string(category), u, strings.Join(refs, ";")}); err != nil {
				return 0, err
			}
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return 0, err
	}

	return io.WriteString(w.output, sb.String())
}
