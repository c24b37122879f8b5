package report

import (
	"encoding/xml"
	"io"
	"strconv"

	"github.com/nao1215/sitecrawler/internal/model"
)

// sitemapNamespace is the sitemaps.org schema namespace.
const sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	Xmlns   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapURL struct {
	Loc      string `xml:"loc"`
	LastMod  string `xml:"lastmod,omitempty"`
	Priority string `xml:"priority"`
}

// SitemapWriter outputs the visited pages as an XML sitemap.
type SitemapWriter struct {
	baseWriter
}

// NewSitemapWriter creates a SitemapWriter that outputs to the given writer.
func NewSitemapWriter(output io.Writer) *SitemapWriter {
	return &SitemapWriter{baseWriter: newBaseWriter(output)}
}

// Write outputs every visited URL in lexical order.
func (w *SitemapWriter) Write(sm *model.SiteMap) (int, error) {
	set := urlSet{Xmlns: sitemapNamespace}
	for _, key := range sm.SortedPageURLs() {
		rec := sm.Pages[key]
		entry := sitemapURL{
			Loc:      key.String(),
			Priority: strconv.FormatFloat(Priority(sm, key), 'f', 2, 64),
		}
		if !rec.FetchedAt.IsZero() {
			entry.LastMod = rec.FetchedAt.UTC().Format("2006-01-02")
		}
		set.URLs = append(set.URLs, entry)
	}

	data, err := xml.MarshalIndent(set, "", "  ")
	if err != nil {
		return 0, err
	}
	out := make([]byte, 0, len(xml.Header)+len(data)+1)
	out = append(out, xml.Header...)
	out = append(out, data...)
	out = append(out, '\n')
	return w.output.Write(out)
}

// Priority returns the sitemap priority of key: 1.0 for the root URL,
// otherwise 0.5 plus 0.05 per outbound page link, clamped to [0.1, 1.0].
func Priority(sm *model.SiteMap, key model.NormalizedURL) float64 {
	if key.String() == sm.RootURL {
		return 1.0
	}
	p := 0.5 + float64(len(sm.Structure[key]))/20
	return min(max(p, 0.1), 1.0)
}
