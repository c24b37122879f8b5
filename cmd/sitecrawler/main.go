// Package main provides the entry point for the sitecrawler CLI.
//
// sitecrawler crawls a website from a seed URL, staying on the seed's
// domain, and produces a site map: every page with its links, a typed
// inventory of the site's files, contact data found on the pages, and
// run statistics.
//
// Usage:
//
//	sitecrawler crawl https://example.com
//	sitecrawler export --run 3 --format csv
//
// See --help for all available options.
package main

func main() {
	Execute()
}
