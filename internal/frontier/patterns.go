package frontier

import (
	"path"
	"strings"
)

// excludedSegments are path segments that are never crawled: following them
// can end a session or reach areas a crawler has no business in.
var excludedSegments = map[string]bool{
	"logout":       true,
	"log-out":      true,
	"signout":      true,
	"sign-out":     true,
	"login":        true,
	"signin":       true,
	"admin":        true,
	"wp-admin":     true,
	"wp-login.php": true,
}

// DefaultIgnorePatterns exclude installers and disk images.
var DefaultIgnorePatterns = []string{
	"*.exe", "*.msi", "*.dmg", "*.pkg", "*.deb", "*.rpm", "*.apk", "*.iso", "*.bin",
}

// Patterns filters URL paths with glob patterns.
//
// Patterns may use:
//   - "/dir/*" to match everything below /dir
//   - "*.ext" to match a file extension anywhere
//   - any path.Match glob, tried against the full path and the base name
type Patterns struct {
	ignore []string
	follow []string
}

// NewPatterns returns a filter using the default ignore patterns plus ignore.
// When follow is non-empty only paths matching one of its patterns are allowed.
func NewPatterns(ignore, follow []string) *Patterns {
	all := make([]string, 0, len(DefaultIgnorePatterns)+len(ignore))
	all = append(all, DefaultIgnorePatterns...)
	all = append(all, ignore...)
	return &Patterns{ignore: all, follow: follow}
}

// Allowed reports whether urlPath may be crawled.
func (p *Patterns) Allowed(urlPath string) bool {
	if urlPath == "" {
		urlPath = "/"
	}

	for _, seg := range strings.Split(strings.ToLower(urlPath), "/") {
		if excludedSegments[seg] {
			return false
		}
	}

	for _, pattern := range p.ignore {
		if matchPattern(pattern, urlPath) {
			return false
		}
	}

	if len(p.follow) == 0 || urlPath == "/" {
		return true
	}
	for _, pattern := range p.follow {
		if matchPattern(pattern, urlPath) {
			return true
		}
	}
	return false
}

// matchPattern reports whether urlPath matches pattern.
func matchPattern(pattern, urlPath string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if urlPath == prefix || strings.HasPrefix(urlPath, prefix+"/") {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*."); ok && !strings.ContainsAny(ext, "*?[/") {
		return strings.HasSuffix(strings.ToLower(urlPath), "."+strings.ToLower(ext))
	}

	if matched, err := path.Match(pattern, urlPath); err == nil && matched {
		return true
	}

	if strings.Contains(pattern, "*") && !strings.Contains(pattern, "/") {
		if matched, err := path.Match(pattern, path.Base(urlPath)); err == nil && matched {
			return true
		}
	}
	return false
}
