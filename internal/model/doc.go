// Package model defines the data structures shared by every stage of a crawl.
//
// The main types are:
//   - NormalizedURL: the identity key used for deduplication
//   - PageRecord: the result of one fetch attempt, successful or not
//   - ResourceCategory: the typed class of a non-page resource
//   - ExtractedData: the site-wide aggregate of structured artifacts
//   - CrawlStatistics: counters describing a run
//   - SiteMap: the final export consumed by downstream collaborators
//
// Models live in their own package so that the frontier, extractor, aggregator
// and report packages can share them without import cycles. Every exported type
// serializes to JSON with stable snake_case field names.
package model
