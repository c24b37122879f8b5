package crawler

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/nao1215/sitecrawler/internal/classifier"
	"github.com/nao1215/sitecrawler/internal/fetcher"
	"github.com/nao1215/sitecrawler/internal/frontier"
	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/politeness"
)

// visit performs the fetch, extract and classify cycle for one URL. It
// always returns a record; failures are described on it.
func (c *Crawler) visit(ctx context.Context, item frontier.Item, throttle *politeness.Throttle) *model.PageRecord {
	rec := &model.PageRecord{
		URL:      item.Key,
		FinalURL: item.Target,
		Links:    []model.NormalizedURL{},
		Files:    make(map[model.ResourceCategory][]string),
	}

	res, err := c.fetcher.Fetch(ctx, item.Target)
	rec.FetchedAt = time.Now()
	if res != nil {
		fillResponse(rec, res)
	}
	if err != nil {
		rec.Error = err.Error()
		rec.ErrorKind = model.ErrorKind(err)
		if errors.Is(err, model.ErrRateLimited) {
			delay := throttle.Widen()
			c.logger.Warn("rate limited, widening worker delay", "url", item.Target, "delay", delay)
		} else {
			c.logger.Debug("fetch failed", "url", item.Target, "status", rec.StatusCode, "error", err)
		}
		return rec
	}
	throttle.Relax()

	if rec.Redirected && !c.frontier.InScope(rec.FinalURL) {
		rec.Data.ExternalLinks = append(rec.Data.ExternalLinks, rec.FinalURL)
		c.logger.Debug("redirected out of scope, skipping extraction", "url", item.Target, "final_url", rec.FinalURL)
		return rec
	}

	c.store(ctx, rec, res.Body)

	ext, err := c.extractor.Extract(res.Body, res.ContentType, rec.FinalURL)
	if err != nil {
		extractErr := &model.ExtractionError{URL: item.Target, Err: err}
		rec.Error = extractErr.Error()
		rec.ErrorKind = model.ErrorKind(extractErr)
		c.logger.Warn("extraction failed", "url", item.Target, "error", err)
		return rec
	}

	rec.Title = ext.Title
	rec.Description = ext.Description
	rec.Data = ext.Data
	if ext.Charset != "" {
		rec.Encoding = ext.Charset
	}
	c.route(ctx, rec, ext.Links)
	return rec
}

// fillResponse copies the response metadata onto rec.
func fillResponse(rec *model.PageRecord, res *fetcher.Result) {
	rec.StatusCode = res.StatusCode
	rec.ContentType = res.ContentType
	rec.ContentSize = int64(len(res.Body))
	rec.Encoding = res.Encoding
	rec.FetchedWith = res.Engine
	rec.Attempts = res.Attempts
	if res.FinalURL != "" {
		rec.FinalURL = res.FinalURL
		rec.Redirected = res.Redirected()
	}
	if !res.FetchedAt.IsZero() {
		rec.FetchedAt = res.FetchedAt
	}
}

// route sorts the links of a page. Links with a resource category go to the
// page's files and are never crawled. Other in-scope links are offered to
// the frontier and become the page's structure edges; out-of-scope links are
// recorded as external.
func (c *Crawler) route(ctx context.Context, rec *model.PageRecord, links []string) {
	for _, link := range links {
		if category, ok := classifier.Classify(link); ok {
			if !slices.Contains(rec.Files[category], link) {
				rec.Files[category] = append(rec.Files[category], link)
			}
			continue
		}

		if !c.frontier.InScope(link) {
			if !slices.Contains(rec.Data.ExternalLinks, link) {
				rec.Data.ExternalLinks = append(rec.Data.ExternalLinks, link)
			}
			continue
		}

		key, err := c.frontier.Admit(ctx, link, rec.URL)
		switch {
		case errors.Is(err, frontier.ErrAlreadyBlocked):
			// counted on first sight
		case err == nil, errors.Is(err, frontier.ErrAlreadySeen):
			if key != rec.URL && !slices.Contains(rec.Links, key) {
				rec.Links = append(rec.Links, key)
			}
		default:
			c.agg.RecordFiltered(err)
			c.logger.Debug("link filtered", "url", link, "reason", model.ErrorKind(err))
		}
	}
}

// store hands a fetched body to the sink. Sink failures are logged and do
// not affect the record.
func (c *Crawler) store(ctx context.Context, rec *model.PageRecord, body []byte) {
	if c.sink == nil {
		return
	}
	stored, err := c.sink.StorePage(ctx, rec, body)
	if err != nil {
		c.logger.Warn("failed to store raw page", "url", rec.URL, "error", err)
		return
	}
	if !stored {
		c.logger.Debug("raw page already stored", "url", rec.URL)
	}
}
