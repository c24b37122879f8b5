// Package crawler runs the worker pool that crawls one site.
//
// # Architecture
//
// The Crawler type coordinates a crawl. It pulls bounded batches of URLs
// from the frontier, fans each batch out to a fixed pool of workers and
// waits for the batch to complete before pulling the next one. Each worker
// performs one fetch, extract and classify cycle per URL and hands the
// resulting PageRecord to the aggregator.
//
// # States
//
//	Idle -> Running -> Draining -> Finished
//	                 \-> Draining -> Stopped
//
// Running continues while URLs are pending, the page cap is not reached and
// the context is not cancelled. Draining is entered on cancellation or when
// the cap is reached: no new batch is dispatched, in-flight fetches finish.
//
// # Politeness
//
// Every worker owns a throttle and waits the configured delay before each
// fetch. Pacing is per worker, so the aggregate request rate is roughly
// MaxWorkers / Delay. A 429 response widens the delay of the worker that
// received it; a robots Crawl-delay larger than the configured delay
// replaces it for every worker.
//
// # Usage
//
//	c, err := crawler.New(cfg, crawler.WithLogger(logger))
//	if err != nil {
//		return err
//	}
//	siteMap, err := c.Run(ctx)
package crawler
