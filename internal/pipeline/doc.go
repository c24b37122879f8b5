// Package pipeline hands finished site maps to downstream consumers and
// crawls several seeds concurrently.
//
// A Pipeline is an ordered list of Steps. Each Step receives the SiteMap
// produced by one crawl and passes it on to a collaborator: the saved-run
// store, a report writer, an export file, or an external content analyzer.
// Steps only read the SiteMap.
//
// BatchProcessor crawls a list of seeds with bounded concurrency using
// errgroup, runs a fresh Pipeline for every site map, and collects one
// Result per seed in input order.
package pipeline
