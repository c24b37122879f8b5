package model

import "time"

// CrawlStatistics holds the counters describing a run.
type CrawlStatistics struct {
	PagesCrawled    int       `json:"pages_crawled"`
	PagesFailed     int       `json:"pages_failed"`
	FilesFound      int       `json:"files_found"`
	Errors          int       `json:"errors"`
	Redirects       int       `json:"redirects"`
	RobotsBlocked   int       `json:"robots_blocked"`
	ScopeRejected   int       `json:"scope_rejected"`
	DataExtractions int       `json:"data_extractions"`
	FormsFound      int       `json:"forms_found"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at,omitzero"`
	ElapsedSeconds  float64   `json:"elapsed_seconds"`
}

// Elapsed returns the run duration.
func (s CrawlStatistics) Elapsed() time.Duration {
	return time.Duration(s.ElapsedSeconds * float64(time.Second))
}
