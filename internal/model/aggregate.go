package model

// ExtractedData is the site-wide aggregate of structured artifacts.
// Every slice is deduplicated and only grows during a run.
type ExtractedData struct {
	Emails        []string                         `json:"emails"`
	Phones        []string                         `json:"phones"`
	SocialLinks   []SocialLink                     `json:"social_links"`
	Forms         []Form                           `json:"forms"`
	ExternalLinks []string                         `json:"external_links"`
	APIEndpoints  []string                         `json:"api_endpoints"`
	Content       map[NormalizedURL]ContentSummary `json:"content"`
}

// ContentSummary is the per-page content digest kept in the aggregate.
type ContentSummary struct {
	Title     string   `json:"title"`
	WordCount int      `json:"word_count"`
	Headings  []string `json:"headings,omitempty"`
	Excerpt   string   `json:"excerpt,omitempty"`
}
