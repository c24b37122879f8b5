package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
)

// SimpleWriter outputs a human-readable text summary for terminal display.
// It uses plain ASCII formatting so the output can be piped to files or
// other tools.
type SimpleWriter struct {
	baseWriter

	// showEmpty controls whether sections with no entries are shown.
	showEmpty bool

	// verbose lists every page and every failure instead of counts only.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithShowEmpty configures the writer to show empty sections.
func WithShowEmpty(show bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.showEmpty = show
	}
}

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(sm *model.SiteMap) (int, error) {
	var sb strings.Builder

	w.writeHeader(&sb, sm)
	w.writeStatistics(&sb, sm)
	w.writeResources(&sb, sm)
	w.writeExtracted(&sb, sm)
	w.writePages(&sb, sm)
	w.writeFooter(&sb)

	return io.WriteString(w.output, sb.String())
}

func section(sb *strings.Builder, title string) {
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n")
	sb.WriteString(title)
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("-", 70))
	sb.WriteString("\n\n")
}

// writeHeader writes the report header with run information.
func (w *SimpleWriter) writeHeader(sb *strings.Builder, sm *model.SiteMap) {
	sb.WriteString("\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("                        SITE CRAWL REPORT\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n\n")

	fmt.Fprintf(sb, "Root URL:       %s\n", sm.RootURL)
	fmt.Fprintf(sb, "Domain:         %s\n", sm.Domain)
	fmt.Fprintf(sb, "Started:        %s\n", sm.Statistics.StartedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(sb, "Elapsed:        %.1fs\n", sm.Statistics.ElapsedSeconds)
	fmt.Fprintf(sb, "Status:         %s\n", status(sm))
	sb.WriteString("\n")
}

// writeStatistics writes the run counters.
func (w *SimpleWriter) writeStatistics(sb *strings.Builder, sm *model.SiteMap) {
	s := sm.Statistics
	section(sb, "STATISTICS")

	fmt.Fprintf(sb, "  PAGES CRAWLED:  %d\n", s.PagesCrawled)
	fmt.Fprintf(sb, "  PAGES FAILED:   %d\n", s.PagesFailed)
	fmt.Fprintf(sb, "  FILES FOUND:    %d\n", s.FilesFound)
	fmt.Fprintf(sb, "  FORMS FOUND:    %d\n", s.FormsFound)
	fmt.Fprintf(sb, "  REDIRECTS:      %d\n", s.Redirects)
	fmt.Fprintf(sb, "  ROBOTS BLOCKED: %d\n", s.RobotsBlocked)
	fmt.Fprintf(sb, "  OUT OF SCOPE:   %d\n", s.ScopeRejected)
	fmt.Fprintf(sb, "  WITH DATA:      %d\n", s.DataExtractions)
	sb.WriteString("\n")
	fmt.Fprintf(sb, "  ERRORS:         %d\n", s.Errors)
	sb.WriteString("\n")
}

// writeResources writes the inventory counts per category.
func (w *SimpleWriter) writeResources(sb *strings.Builder, sm *model.SiteMap) {
	if sm.ResourceCount() == 0 && !w.showEmpty {
		return
	}
	section(sb, "RESOURCES")

	if sm.ResourceCount() == 0 {
		sb.WriteString("  No resources catalogued\n\n")
		return
	}
	for _, category := range model.AllCategories {
		urls := sm.Resources[category]
		if len(urls) == 0 && !w.showEmpty {
			continue
		}
		fmt.Fprintf(sb, "  [+] %-10s %d\n", category, len(urls))
		if w.verbose {
			for _, u := range urls {
				fmt.Fprintf(sb, "      %s\n", u)
			}
		}
	}
	sb.WriteString("\n")
}

// writeExtracted writes the contact data found on the site.
func (w *SimpleWriter) writeExtracted(sb *strings.Builder, sm *model.SiteMap) {
	d := sm.Data
	empty := len(d.Emails)+len(d.Phones)+len(d.SocialLinks)+len(d.APIEndpoints) == 0
	if empty && !w.showEmpty {
		return
	}
	section(sb, "EXTRACTED DATA")

	if empty {
		sb.WriteString("  No contact data extracted\n\n")
		return
	}
	for _, e := range d.Emails {
		fmt.Fprintf(sb, "  * email:  %s\n", e)
	}
	for _, p := range d.Phones {
		fmt.Fprintf(sb, "  * phone:  %s\n", p)
	}
	for _, s := range d.SocialLinks {
		fmt.Fprintf(sb, "  * %s: %s\n", s.Platform, s.URL)
	}
	for _, a := range d.APIEndpoints {
		fmt.Fprintf(sb, "  * api:    %s\n", a)
	}
	sb.WriteString("\n")
}

// writePages lists failed pages, and every page when verbose.
func (w *SimpleWriter) writePages(sb *strings.Builder, sm *model.SiteMap) {
	keys := sm.SortedPageURLs()
	var lines []string
	for _, key := range keys {
		rec := sm.Pages[key]
		switch {
		case !rec.OK():
			lines = append(lines, fmt.Sprintf("  [!] %s\n      %s", key, rec.Error))
		case w.verbose:
			lines = append(lines, fmt.Sprintf("  [%d] %s  %s", rec.StatusCode, key, truncateString(rec.Title, 40)))
		}
	}
	if len(lines) == 0 && !w.showEmpty {
		return
	}

	if w.verbose {
		section(sb, "PAGES")
	} else {
		section(sb, "FAILURES")
	}
	if len(lines) == 0 {
		sb.WriteString("  None\n\n")
		return
	}
	sb.WriteString(strings.Join(lines, "\n"))
	sb.WriteString("\n\n")
}

// writeFooter writes the report footer.
func (w *SimpleWriter) writeFooter(sb *strings.Builder) {
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
	sb.WriteString("Report generated by sitecrawler\n")
	sb.WriteString("https://github.com/nao1215/sitecrawler\n")
	sb.WriteString(strings.Repeat("=", 70))
	sb.WriteString("\n")
}
