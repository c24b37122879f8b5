package aggregator

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

func page(url string, links ...string) *model.PageRecord {
	rec := &model.PageRecord{
		URL:         model.NormalizedURL(url),
		FinalURL:    url,
		Title:       "Title of " + url,
		StatusCode:  200,
		ContentType: "text/html",
		FetchedAt:   time.Now(),
	}
	for _, l := range links {
		rec.Links = append(rec.Links, model.NormalizedURL(l))
	}
	return rec
}

func TestMerge_Idempotent(t *testing.T) {
	t.Parallel()

	a := New("https://x.test/", "x.test", model.RunConfig{})
	rec := page("https://x.test/", "https://x.test/about")
	rec.Files = map[model.ResourceCategory][]string{
		model.CategoryImages: {"https://x.test/a.png"},
	}
	rec.Data = model.PageData{
		Emails: []string{"a@x.test"},
		Forms:  []model.Form{{Action: "https://x.test/search", Method: "GET"}},
	}

	if !a.Merge(rec) {
		t.Fatal("first Merge() = false, want true")
	}
	if a.Merge(rec) {
		t.Error("second Merge() of the same record = true, want false")
	}

	stats := a.Stats()
	if stats.PagesCrawled != 1 || stats.FilesFound != 1 || stats.FormsFound != 1 || stats.DataExtractions != 1 {
		t.Errorf("stats double counted: %+v", stats)
	}
	sm := a.Build("finished")
	if len(sm.Pages) != 1 || len(sm.Data.Emails) != 1 || len(sm.Data.Forms) != 1 {
		t.Errorf("site map double counted: pages=%d emails=%v forms=%v", len(sm.Pages), sm.Data.Emails, sm.Data.Forms)
	}
}

func TestMerge_Aggregates(t *testing.T) {
	t.Parallel()

	a := New("https://x.test/", "x.test", model.RunConfig{MaxWorkers: 3})
	a.Start(time.Now().Add(-2 * time.Second))

	home := page("https://x.test/", "https://x.test/a", "https://x.test/b")
	home.Files = map[model.ResourceCategory][]string{
		model.CategoryImages: {"https://x.test/logo.png"},
		model.CategoryCode:   {"https://x.test/app.js"},
	}
	home.Data = model.PageData{
		Emails:        []string{"info@x.test"},
		Phones:        []string{"555-123-4567"},
		SocialLinks:   []model.SocialLink{{Platform: "twitter", URL: "https://twitter.com/x"}},
		ExternalLinks: []string{"https://other.test/"},
		Headings:      map[string][]string{"h2": {"Sub"}, "h1": {"Main"}},
		WordCount:     42,
		Excerpt:       "hello",
	}

	a1 := page("https://x.test/a")
	a1.Redirected = true
	a1.Files = map[model.ResourceCategory][]string{
		model.CategoryImages: {"https://x.test/logo.png", "https://x.test/b.png"},
	}
	a1.Data = model.PageData{
		Emails:       []string{"info@x.test", "sales@x.test"},
		APIEndpoints: []string{"/api/v1"},
	}

	failed := &model.PageRecord{
		URL:       "https://x.test/b",
		FinalURL:  "https://x.test/b",
		Error:     "fetch https://x.test/b: HTTP 404 Not Found",
		ErrorKind: "not_found",
	}

	for _, rec := range []*model.PageRecord{home, a1, failed} {
		a.Merge(rec)
	}
	a.RecordFiltered(model.ErrRobotsDisallowed)
	a.RecordFiltered(fmt.Errorf("wrapped: %w", model.ErrScopeRejected))
	a.RecordFiltered(errors.New("ignored"))
	a.Finish(time.Now())

	sm := a.Build("finished")

	if sm.RootURL != "https://x.test/" || sm.Domain != "x.test" || sm.State != "finished" || sm.Config.MaxWorkers != 3 {
		t.Errorf("header fields = %q %q %q %+v", sm.RootURL, sm.Domain, sm.State, sm.Config)
	}
	if got := sm.Resources[model.CategoryImages]; !slices.Equal(got, []string{"https://x.test/b.png", "https://x.test/logo.png"}) {
		t.Errorf("images = %v", got)
	}
	if !slices.Equal(sm.Data.Emails, []string{"info@x.test", "sales@x.test"}) {
		t.Errorf("emails = %v", sm.Data.Emails)
	}
	if !slices.Equal(sm.Structure["https://x.test/"], []model.NormalizedURL{"https://x.test/a", "https://x.test/b"}) {
		t.Errorf("structure = %v", sm.Structure)
	}
	summary, ok := sm.Data.Content["https://x.test/"]
	if !ok || summary.WordCount != 42 || !slices.Equal(summary.Headings, []string{"Main", "Sub"}) {
		t.Errorf("content summary = %+v", summary)
	}
	if _, ok := sm.Data.Content["https://x.test/b"]; ok {
		t.Error("failed page must not have a content summary")
	}

	s := sm.Statistics
	want := model.CrawlStatistics{
		PagesCrawled:    2,
		PagesFailed:     1,
		FilesFound:      3,
		Errors:          1,
		Redirects:       1,
		RobotsBlocked:   1,
		ScopeRejected:   1,
		DataExtractions: 2,
	}
	if s.PagesCrawled != want.PagesCrawled || s.PagesFailed != want.PagesFailed || s.FilesFound != want.FilesFound ||
		s.Errors != want.Errors || s.Redirects != want.Redirects || s.RobotsBlocked != want.RobotsBlocked ||
		s.ScopeRejected != want.ScopeRejected || s.DataExtractions != want.DataExtractions {
		t.Errorf("stats = %+v, want %+v", s, want)
	}
	if s.ElapsedSeconds < 2 || s.FinishedAt.IsZero() {
		t.Errorf("elapsed = %v finished = %v", s.ElapsedSeconds, s.FinishedAt)
	}
}

func TestMerge_ExtractionErrorCountsAsCrawled(t *testing.T) {
	t.Parallel()

	a := New("https://x.test/", "x.test", model.RunConfig{})
	rec := page("https://x.test/broken")
	rec.Error = "extract https://x.test/broken: bad markup"
	rec.ErrorKind = "extraction"
	a.Merge(rec)

	s := a.Stats()
	if s.PagesCrawled != 1 || s.PagesFailed != 0 || s.Errors != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestClassificationExclusivity(t *testing.T) {
	t.Parallel()

	a := New("https://x.test/", "x.test", model.RunConfig{})
	rec := page("https://x.test/", "https://x.test/docs")
	rec.Files = map[model.ResourceCategory][]string{
		model.CategoryDocuments: {"https://x.test/docs/manual.pdf"},
	}
	a.Merge(rec)
	sm := a.Build("finished")

	resources := make(map[string]bool)
	for _, urls := range sm.Resources {
		for _, u := range urls {
			resources[u] = true
		}
	}
	for parent, children := range sm.Structure {
		if resources[parent.String()] {
			t.Errorf("%s is both a page and a resource", parent)
		}
		for _, c := range children {
			if resources[c.String()] {
				t.Errorf("%s is both a page link and a resource", c)
			}
		}
	}
}

func TestMerge_Concurrent(t *testing.T) {
	t.Parallel()

	a := New("https://x.test/", "x.test", model.RunConfig{})

	const pages = 50
	var wg sync.WaitGroup
	for i := range pages {
		for range 3 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				rec := page(fmt.Sprintf("https://x.test/p%d", i))
				rec.Data.Emails = []string{fmt.Sprintf("u%d@x.test", i%10)}
				rec.Files = map[model.ResourceCategory][]string{
					model.CategoryImages: {fmt.Sprintf("https://x.test/i%d.png", i%5)},
				}
				a.Merge(rec)
			}()
		}
	}

	snapshots := make(chan *model.SiteMap, 1)
	go func() {
		snapshots <- a.Build("running")
	}()
	wg.Wait()
	<-snapshots

	sm := a.Build("finished")
	if len(sm.Pages) != pages || a.Len() != pages {
		t.Errorf("pages = %d, want %d", len(sm.Pages), pages)
	}
	if sm.Statistics.PagesCrawled != pages {
		t.Errorf("PagesCrawled = %d, want %d", sm.Statistics.PagesCrawled, pages)
	}
	if len(sm.Data.Emails) != 10 || sm.Statistics.FilesFound != 5 {
		t.Errorf("emails = %d files = %d", len(sm.Data.Emails), sm.Statistics.FilesFound)
	}
}

func TestBuild_EmptyCollectionsAreNotNil(t *testing.T) {
	t.Parallel()

	sm := New("https://x.test/", "x.test", model.RunConfig{}).Build("finished")
	if sm.Data.Emails == nil || sm.Data.SocialLinks == nil || sm.Data.Forms == nil || sm.Pages == nil || sm.Resources == nil {
		t.Errorf("nil collections in empty site map: %+v", sm.Data)
	}
}

func TestBuild_SnapshotIsolated(t *testing.T) {
	t.Parallel()

	a := New("https://x.test/", "x.test", model.RunConfig{})
	a.Merge(page("https://x.test/", "https://x.test/a"))
	sm := a.Build("running")
	sm.Structure["https://x.test/"][0] = "mutated"

	again := a.Build("running")
	if again.Structure["https://x.test/"][0] != "https://x.test/a" {
		t.Error("mutating a snapshot changed the aggregator")
	}
}
