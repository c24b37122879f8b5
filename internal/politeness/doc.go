// Package politeness limits the load a crawl puts on a site.
//
// Robots evaluates robots.txt rules for the crawler's user agent. Rules are
// fetched once per host (concurrent callers share one request) and cached.
// Any failure to fetch or parse them is logged and treated as "allowed".
//
// Throttle paces a single worker. Each worker owns one, so the aggregate
// request rate grows with the number of workers: N workers with delay D issue
// up to N/D requests per second. A 429 response widens the worker's own delay
// without slowing the other workers.
package politeness
