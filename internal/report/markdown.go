package report

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
	"github.com/nao1215/sitecrawler/internal/extractor"
	"github.com/nao1215/sitecrawler/internal/model"
)

// markdownListLimit caps the entries listed per section.
const markdownListLimit = 50

// MarkdownWriter outputs a site map summary in Markdown format.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(sm *model.SiteMap) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, sm)
	w.writeStatistics(md, sm)
	w.writeResources(md, sm)
	w.writeExtracted(md, sm)
	w.writePages(md, sm)
	w.writeFailures(md, sm)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the report header with run information.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, sm *model.SiteMap) {
	md.H1("Site Crawl Report")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Root URL", "`" + sm.RootURL + "`"},
			{"Domain", sm.Domain},
			{"Started", sm.Statistics.StartedAt.Format("2006-01-02 15:04:05 MST")},
			{"Elapsed", sm.Statistics.Elapsed().Round(time.Millisecond).String()},
			{"Status", status(sm)},
		},
	})
	md.PlainText("")
}

// writeStatistics writes the counters and an alert when pages failed.
func (w *MarkdownWriter) writeStatistics(md *markdown.Markdown, sm *model.SiteMap) {
	s := sm.Statistics
	md.H2("Statistics")
	md.PlainText("")

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows: [][]string{
			{"Pages crawled", strconv.Itoa(s.PagesCrawled)},
			{"Pages failed", strconv.Itoa(s.PagesFailed)},
			{"Files found", strconv.Itoa(s.FilesFound)},
			{"Forms found", strconv.Itoa(s.FormsFound)},
			{"Redirects", strconv.Itoa(s.Redirects)},
			{"Blocked by robots", strconv.Itoa(s.RobotsBlocked)},
			{"Rejected by scope", strconv.Itoa(s.ScopeRejected)},
			{"Pages with data", strconv.Itoa(s.DataExtractions)},
			{"**Errors**", "**" + strconv.Itoa(s.Errors) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case sm.State == "stopped":
		md.Warningf("The crawl was stopped early. %d page(s) were recorded before it ended.", len(sm.Pages))
	case s.PagesCrawled == 0 && len(sm.Pages) > 0:
		md.Cautionf("No page could be fetched. %d attempt(s) failed.", s.PagesFailed)
	case s.Errors > 0:
		md.Importantf("%d URL(s) failed. See the failures section for details.", s.Errors)
	default:
		md.Tip("Every visited page was fetched successfully.")
	}
	md.PlainText("")
}

// writeResources writes the inventory table and its category chart.
func (w *MarkdownWriter) writeResources(md *markdown.Markdown, sm *model.SiteMap) {
	md.H2("Resources")
	md.PlainText("")

	if sm.ResourceCount() == 0 {
		md.PlainText("No resources catalogued.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(model.AllCategories))
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Resources by Category"),
		piechart.WithShowData(true),
	)
	for _, category := range model.AllCategories {
		n := len(sm.Resources[category])
		if n == 0 {
			continue
		}
		rows = append(rows, []string{string(category), strconv.Itoa(n)})
		chart.LabelAndIntValue(string(category), uint64(n))
	}

	md.Table(markdown.TableSet{
		Header: []string{"Category", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")

	for _, category := range model.AllCategories {
		urls := sm.Resources[category]
		if len(urls) == 0 {
			continue
		}
		md.PlainText("### " + string(category))
		md.PlainText("")
		md.BulletList(limit(urls)...)
		md.PlainText("")
	}
}

// writeExtracted writes the contact and structure data found on the site.
func (w *MarkdownWriter) writeExtracted(md *markdown.Markdown, sm *model.SiteMap) {
	d := sm.Data
	md.H2("Extracted Data")
	md.PlainText("")

	sections := []struct {
		title  string
		values []string
	}{
		{"Emails", d.Emails},
		{"Phone numbers", d.Phones},
		{"API endpoints", d.APIEndpoints},
		{"External links", d.ExternalLinks},
	}
	empty := len(d.SocialLinks) == 0 && len(d.Forms) == 0
	for _, section := range sections {
		if len(section.values) == 0 {
			continue
		}
		empty = false
		md.PlainText("### " + section.title)
		md.PlainText("")
		md.BulletList(limit(section.values)...)
		md.PlainText("")
	}

	if len(d.SocialLinks) > 0 {
		rows := make([][]string, 0, len(d.SocialLinks))
		for _, s := range d.SocialLinks {
			rows = append(rows, []string{extractor.PlatformName(s.Platform), s.URL})
		}
		md.PlainText("### Social profiles")
		md.PlainText("")
		md.Table(markdown.TableSet{Header: []string{"Platform", "URL"}, Rows: rows})
		md.PlainText("")
	}

	if len(d.Forms) > 0 {
		rows := make([][]string, 0, len(d.Forms))
		for _, f := range d.Forms {
			rows = append(rows, []string{f.Page, f.Method, truncateString(f.Action, 60), strconv.Itoa(len(f.Fields))})
		}
		md.PlainText("### Forms")
		md.PlainText("")
		md.Table(markdown.TableSet{Header: []string{"Page", "Method", "Action", "Fields"}, Rows: rows})
		md.PlainText("")
	}

	if empty {
		md.PlainText("No structured data extracted.")
		md.PlainText("")
	}
}

// writePages writes one table row per visited page.
func (w *MarkdownWriter) writePages(md *markdown.Markdown, sm *model.SiteMap) {
	md.H2("Pages")
	md.PlainText("")

	keys := sm.SortedPageURLs()
	if len(keys) == 0 {
		md.PlainText("No pages visited.")
		md.PlainText("")
		return
	}

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		rec := sm.Pages[key]
		title := rec.Title
		if title == "" {
			title = "-"
		}
		rows = append(rows, []string{
			truncateString(key.String(), 60),
			strconv.Itoa(rec.StatusCode),
			truncateString(title, 40),
			strconv.Itoa(len(rec.Links)),
			strconv.Itoa(rec.FileCount()),
		})
	}
	md.Table(markdown.TableSet{
		Header: []string{"URL", "Status", "Title", "Links", "Files"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures lists pages with an error.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, sm *model.SiteMap) {
	var failed []*model.PageRecord
	for _, key := range sm.SortedPageURLs() {
		if rec := sm.Pages[key]; !rec.OK() {
			failed = append(failed, rec)
		}
	}
	if len(failed) == 0 {
		return
	}

	md.H2("Failures")
	md.PlainText("")
	for _, rec := range failed {
		md.Details(fmt.Sprintf("%s (%s)", rec.URL, rec.ErrorKind), rec.Error)
	}
	md.PlainText("")
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [sitecrawler](https://github.com/nao1215/sitecrawler)*")
}

// limit cuts a list for display and notes how many entries were left out.
func limit(values []string) []string {
	if len(values) <= markdownListLimit {
		return values
	}
	out := append([]string(nil), values[:markdownListLimit]...)
	return append(out, fmt.Sprintf("... and %d more", len(values)-markdownListLimit))
}
