package extractor

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// linkAttrs lists, per element, the attributes holding a single reference.
var linkAttrs = map[atom.Atom][]string{
	atom.A:      {"href"},
	atom.Area:   {"href"},
	atom.Link:   {"href"},
	atom.Base:   {"href"},
	atom.Script: {"src"},
	atom.Img:    {"src", "data-src"},
	atom.Iframe: {"src"},
	atom.Frame:  {"src"},
	atom.Embed:  {"src"},
	atom.Object: {"data"},
	atom.Source: {"src"},
	atom.Track:  {"src"},
	atom.Video:  {"src", "poster"},
	atom.Audio:  {"src"},
	atom.Input:  {"src"},
	atom.Form:   {"action"},
}

// srcsetAttrs are elements whose srcset lists several candidates.
var srcsetAttrs = map[atom.Atom]bool{
	atom.Img:    true,
	atom.Source: true,
}

var (
	cssURLPattern    = regexp.MustCompile(`(?i)url\(\s*['"]?([^'")\s]+)['"]?\s*\)`)
	cssImportPattern = regexp.MustCompile(`(?i)@import\s+['"]([^'"]+)['"]`)
)

// skippedSchemes never lead to a fetchable resource.
var skippedSchemes = []string{"javascript:", "mailto:", "tel:", "data:", "about:", "blob:", "sms:"}

// linkSet collects resolved, fragment-free absolute URLs in discovery order.
type linkSet struct {
	base  *url.URL
	seen  map[string]struct{}
	links []string
}

func newLinkSet(base *url.URL) *linkSet {
	return &linkSet{base: base, seen: make(map[string]struct{})}
}

// add resolves ref against the base URL and records it.
func (s *linkSet) add(ref string) {
	if resolved := resolve(s.base, ref); resolved != "" {
		if _, ok := s.seen[resolved]; !ok {
			s.seen[resolved] = struct{}{}
			s.links = append(s.links, resolved)
		}
	}
}

// addCSS records every url() and @import reference in css.
func (s *linkSet) addCSS(css string) {
	for _, m := range cssURLPattern.FindAllStringSubmatch(css, -1) {
		s.add(m[1])
	}
	for _, m := range cssImportPattern.FindAllStringSubmatch(css, -1) {
		s.add(m[1])
	}
}

// addSrcset records each candidate URL of a srcset attribute.
func (s *linkSet) addSrcset(srcset string) {
	for candidate := range strings.SplitSeq(srcset, ",") {
		if fields := strings.Fields(candidate); len(fields) > 0 {
			s.add(fields[0])
		}
	}
}

// resolve returns ref as an absolute http(s) URL without fragment, or ""
// when ref cannot lead to a fetchable resource.
func resolve(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") {
		return ""
	}
	lower := strings.ToLower(ref)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	abs := base.ResolveReference(u)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return ""
	}
	if abs.Host == "" {
		return ""
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String()
}

// refreshTarget returns the URL of a meta refresh content value such as
// "5; url=/next".
func refreshTarget(content string) string {
	_, rest, ok := strings.Cut(content, ";")
	if !ok {
		return ""
	}
	rest = strings.TrimSpace(rest)
	if len(rest) < 4 || !strings.EqualFold(rest[:3], "url") {
		return ""
	}
	rest = strings.TrimSpace(rest[3:])
	rest, ok = strings.CutPrefix(rest, "=")
	if !ok {
		return ""
	}
	return strings.Trim(strings.TrimSpace(rest), `'"`)
}

// attr returns the value of the named attribute of n.
func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

// nodeText concatenates the text children of n.
func nodeText(n *html.Node) string {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			b.WriteString(c.Data)
		}
	}
	return b.String()
}
