// Package fetcher retrieves single URLs for the crawler.
//
// Two engines implement the Fetcher interface: HTTP, a plain HTTP client
// with user-agent fallback on 403 responses, and Renderer, which loads the
// page in headless Chrome so script-generated markup is visible. The rest of
// the pipeline does not know which engine produced a body.
package fetcher
