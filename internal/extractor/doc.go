// Package extractor parses fetched documents into outbound references and
// structured page data.
//
// References are gathered from every element attribute that can point at
// another resource, from CSS url() and @import occurrences, from string
// literals and fetch-style calls in inline scripts, and from meta refresh
// targets. All of them are resolved against the page's final URL.
//
// Free-text heuristics (emails, phone numbers, API paths, script literals)
// are Matcher implementations, so new heuristics can be plugged in without
// touching the traversal.
package extractor
