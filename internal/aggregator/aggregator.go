// Package aggregator merges per-page crawl results into the site-wide
// resource inventory, extracted data aggregate and statistics, and builds
// the exported SiteMap from them.
//
// Pages, inventory, extracted data and statistics each sit behind their own
// lock, so merging one page never waits on an unrelated collection.
package aggregator

import (
	"cmp"
	"errors"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/nao1215/sitecrawler/internal/model"
)

// Aggregator accumulates PageRecords. It is safe for concurrent use.
//
// Merge is idempotent per page key: merging a record whose key is already
// present changes nothing, so a retried or duplicated hand-off cannot
// double-count statistics or inventory entries. Every aggregate set only
// grows during a run.
//
// Design decision: We give each collection its own lock instead of one lock
// for the whole aggregate. Workers merge after every fetch while Snapshot may
// build a SiteMap at the same time; separate locks keep a slow Build from
// stalling the workers' statistics updates.
type Aggregator struct {
	rootURL string
	domain  string
	config  model.RunConfig

	pagesMu   sync.RWMutex
	pages     map[model.NormalizedURL]*model.PageRecord
	structure map[model.NormalizedURL][]model.NormalizedURL

	inventoryMu sync.RWMutex
	inventory   map[model.ResourceCategory]*stringSet

	dataMu   sync.RWMutex
	emails   *stringSet
	phones   *stringSet
	social   map[model.SocialLink]struct{}
	forms    map[string]model.Form
	external *stringSet
	api      *stringSet
	content  map[model.NormalizedURL]model.ContentSummary

	statsMu sync.Mutex
	stats   model.CrawlStatistics
}

// New returns an empty aggregator for a crawl of rootURL.
func New(rootURL, domain string, cfg model.RunConfig) *Aggregator {
	return &Aggregator{
		rootURL:   rootURL,
		domain:    domain,
		config:    cfg,
		pages:     make(map[model.NormalizedURL]*model.PageRecord),
		structure: make(map[model.NormalizedURL][]model.NormalizedURL),
		inventory: make(map[model.ResourceCategory]*stringSet),
		emails:    newStringSet(),
		phones:    newStringSet(),
		social:    make(map[model.SocialLink]struct{}),
		forms:     make(map[string]model.Form),
		external:  newStringSet(),
		api:       newStringSet(),
		content:   make(map[model.NormalizedURL]model.ContentSummary),
	}
}

// Start records the start time of the run.
func (a *Aggregator) Start(t time.Time) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.StartedAt = t
}

// Finish freezes the elapsed time of the run.
func (a *Aggregator) Finish(t time.Time) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	a.stats.FinishedAt = t
	if !a.stats.StartedAt.IsZero() {
		a.stats.ElapsedSeconds = t.Sub(a.stats.StartedAt).Seconds()
	}
}

// Merge folds rec into the aggregate and reports whether it was new.
// Merging a record whose URL is already present is a no-op, so a record
// can never be counted twice. The aggregator keeps rec; callers must not
// modify it afterwards.
func (a *Aggregator) Merge(rec *model.PageRecord) bool {
	if rec == nil {
		return false
	}

	a.pagesMu.Lock()
	if _, dup := a.pages[rec.URL]; dup {
		a.pagesMu.Unlock()
		return false
	}
	a.pages[rec.URL] = rec
	a.structure[rec.URL] = slices.Clone(rec.Links)
	a.pagesMu.Unlock()

	newFiles := a.mergeInventory(rec)
	newForms, extracted := a.mergeData(rec)

	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	switch {
	case rec.OK():
		a.stats.PagesCrawled++
	case rec.ErrorKind == "extraction":
		a.stats.PagesCrawled++
		a.stats.Errors++
	default:
		a.stats.PagesFailed++
		a.stats.Errors++
	}
	if rec.Redirected {
		a.stats.Redirects++
	}
	if extracted {
		a.stats.DataExtractions++
	}
	a.stats.FilesFound += newFiles
	a.stats.FormsFound += newForms
	return true
}

func (a *Aggregator) mergeInventory(rec *model.PageRecord) int {
	if len(rec.Files) == 0 {
		return 0
	}
	a.inventoryMu.Lock()
	defer a.inventoryMu.Unlock()

	added := 0
	for category, urls := range rec.Files {
		set, ok := a.inventory[category]
		if !ok {
			set = newStringSet()
			a.inventory[category] = set
		}
		for _, u := range urls {
			if set.add(u) {
				added++
			}
		}
	}
	return added
}

// mergeData returns the number of new forms and whether the page yielded
// any structured artifact.
func (a *Aggregator) mergeData(rec *model.PageRecord) (int, bool) {
	d := rec.Data
	extracted := len(d.Emails)+len(d.Phones)+len(d.SocialLinks)+len(d.Forms)+len(d.APIEndpoints) > 0

	a.dataMu.Lock()
	defer a.dataMu.Unlock()

	a.emails.add(d.Emails...)
	a.phones.add(d.Phones...)
	a.external.add(d.ExternalLinks...)
	a.api.add(d.APIEndpoints...)
	for _, s := range d.SocialLinks {
		a.social[s] = struct{}{}
	}

	newForms := 0
	for _, f := range d.Forms {
		f.Page = rec.URL.String()
		key := f.Key()
		if _, ok := a.forms[key]; !ok {
			a.forms[key] = f
			newForms++
		}
	}

	if rec.OK() && rec.IsHTML() {
		a.content[rec.URL] = model.ContentSummary{
			Title:     rec.Title,
			WordCount: d.WordCount,
			Headings:  flattenHeadings(d.Headings),
			Excerpt:   d.Excerpt,
		}
	}
	return newForms, extracted
}

// RecordFiltered counts a URL rejected with model.ErrRobotsDisallowed or
// model.ErrScopeRejected. Other errors are ignored.
func (a *Aggregator) RecordFiltered(err error) {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	switch {
	case errors.Is(err, model.ErrRobotsDisallowed):
		a.stats.RobotsBlocked++
	case errors.Is(err, model.ErrScopeRejected):
		a.stats.ScopeRejected++
	}
}

// Len returns the number of merged records.
func (a *Aggregator) Len() int {
	a.pagesMu.RLock()
	defer a.pagesMu.RUnlock()
	return len(a.pages)
}

// Stats returns a copy of the statistics. Elapsed time runs until Finish.
func (a *Aggregator) Stats() model.CrawlStatistics {
	a.statsMu.Lock()
	defer a.statsMu.Unlock()
	s := a.stats
	if s.FinishedAt.IsZero() && !s.StartedAt.IsZero() {
		s.ElapsedSeconds = time.Since(s.StartedAt).Seconds()
	}
	return s
}

// Build returns a SiteMap snapshot in the given run state. Collections are
// copied one lock at a time, so a snapshot taken while merges are still
// running may be inconsistent across collections.
func (a *Aggregator) Build(state string) *model.SiteMap {
	sm := &model.SiteMap{
		RootURL: a.rootURL,
		Domain:  a.domain,
		State:   state,
		Config:  a.config,
	}

	a.pagesMu.RLock()
	sm.Pages = maps.Clone(a.pages)
	sm.Structure = make(map[model.NormalizedURL][]model.NormalizedURL, len(a.structure))
	for k, v := range a.structure {
		sm.Structure[k] = slices.Clone(v)
	}
	a.pagesMu.RUnlock()

	a.inventoryMu.RLock()
	sm.Resources = make(map[model.ResourceCategory][]string, len(a.inventory))
	for category, set := range a.inventory {
		sm.Resources[category] = set.sorted()
	}
	a.inventoryMu.RUnlock()

	a.dataMu.RLock()
	sm.Data = model.ExtractedData{
		Emails:        a.emails.sorted(),
		Phones:        a.phones.sorted(),
		SocialLinks:   sortedSocial(a.social),
		Forms:         sortedForms(a.forms),
		ExternalLinks: a.external.sorted(),
		APIEndpoints:  a.api.sorted(),
		Content:       maps.Clone(a.content),
	}
	a.dataMu.RUnlock()

	sm.Statistics = a.Stats()
	return sm
}

func flattenHeadings(h map[string][]string) []string {
	var out []string
	for _, level := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		out = append(out, h[level]...)
	}
	return out
}

func sortedSocial(set map[model.SocialLink]struct{}) []model.SocialLink {
	out := make([]model.SocialLink, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	slices.SortFunc(out, func(x, y model.SocialLink) int {
		return cmp.Or(strings.Compare(x.Platform, y.Platform), strings.Compare(x.URL, y.URL))
	})
	return out
}

func sortedForms(forms map[string]model.Form) []model.Form {
	keys := slices.Sorted(maps.Keys(forms))
	out := make([]model.Form, 0, len(keys))
	for _, k := range keys {
		out = append(out, forms[k])
	}
	return out
}

// stringSet is a set of strings that remembers insertion order.
type stringSet struct {
	index map[string]struct{}
	items []string
}

func newStringSet() *stringSet {
	return &stringSet{index: make(map[string]struct{})}
}

// add inserts values and reports whether at least one was new.
func (s *stringSet) add(values ...string) bool {
	added := false
	for _, v := range values {
		if _, ok := s.index[v]; ok || v == "" {
			continue
		}
		s.index[v] = struct{}{}
		s.items = append(s.items, v)
		added = true
	}
	return added
}

func (s *stringSet) sorted() []string {
	out := slices.Clone(s.items)
	slices.Sort(out)
	if out == nil {
		out = []string{}
	}
	return out
}
