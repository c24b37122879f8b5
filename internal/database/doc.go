// Package database provides SQLite-based storage for sitecrawler.
//
// The CrawlDB stores:
//   - raw page bodies, one row per normalized URL, with a SHA3-256 content hash
//   - finished site maps, so a run can be exported again without re-crawling
//
// SQLite is used through modernc.org/sqlite, a CGO-free driver, so the
// database is a single file under the XDG data directory and the binary
// cross-compiles without a C toolchain.
package database
