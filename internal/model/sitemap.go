package model

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
)

// RunConfig is the configuration snapshot recorded in a SiteMap.
type RunConfig struct {
	DelaySeconds       float64 `json:"delay_seconds"`
	MaxWorkers         int     `json:"max_workers"`
	TimeoutSeconds     float64 `json:"timeout_seconds"`
	MaxPages           int     `json:"max_pages"`
	UseRenderer        bool    `json:"use_alternate_renderer"`
	RespectRobots      bool    `json:"respect_robots"`
	ExtractEmails      bool    `json:"extract_emails"`
	ExtractPhones      bool    `json:"extract_phones"`
	ExtractSocialLinks bool    `json:"extract_social_links"`
	UserAgent          string  `json:"user_agent"`
}

// SiteMap is the final export of a crawl. It is built once, at the end of a
// run or on demand as a partial snapshot, and is read-only afterwards.
type SiteMap struct {
	RootURL    string                            `json:"root_url"`
	Domain     string                            `json:"domain"`
	State      string                            `json:"state"`
	Config     RunConfig                         `json:"config"`
	Pages      map[NormalizedURL]*PageRecord     `json:"pages"`
	Structure  map[NormalizedURL][]NormalizedURL `json:"structure"`
	Resources  map[ResourceCategory][]string     `json:"resources"`
	Data       ExtractedData                     `json:"extracted_data"`
	Statistics CrawlStatistics                   `json:"statistics"`
}

// SortedPageURLs returns the page keys in lexical order.
func (s *SiteMap) SortedPageURLs() []NormalizedURL {
	keys := make([]NormalizedURL, 0, len(s.Pages))
	for k := range s.Pages {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// ResourceCount returns the number of catalogued resources across categories.
func (s *SiteMap) ResourceCount() int {
	n := 0
	for _, urls := range s.Resources {
		n += len(urls)
	}
	return n
}

// FoundOn returns, for every resource URL, the pages referencing it.
func (s *SiteMap) FoundOn() map[string][]NormalizedURL {
	out := make(map[string][]NormalizedURL)
	for _, key := range s.SortedPageURLs() {
		for _, urls := range s.Pages[key].Files {
			for _, u := range urls {
				out[u] = append(out[u], key)
			}
		}
	}
	return out
}

// DecodeSiteMap reads a JSON encoded SiteMap.
func DecodeSiteMap(r io.Reader) (*SiteMap, error) {
	var sm SiteMap
	if err := json.NewDecoder(r).Decode(&sm); err != nil {
		return nil, fmt.Errorf("failed to decode site map: %w", err)
	}
	if sm.Pages == nil {
		sm.Pages = make(map[NormalizedURL]*PageRecord)
	}
	return &sm, nil
}
