// Package report renders a SiteMap in the supported output formats.
//
// Writers:
//   - SimpleWriter: plain text summary for the terminal
//   - JSONWriter and FullJSONWriter: the complete site map as JSON
//   - MarkdownWriter: summary with tables and a mermaid chart
//   - CSVWriter: the resource inventory as category,url,found_on rows
//   - SitemapWriter: an XML sitemap of the visited pages
//
// Every writer is a deterministic projection of a SiteMap, so a saved run
// can be exported again in any format without crawling.
package report
