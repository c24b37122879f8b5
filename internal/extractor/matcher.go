package extractor

import (
	"regexp"
	"strings"
)

// Matcher finds candidate strings in text.
type Matcher interface {
	// Name identifies the matcher in logs and results.
	Name() string
	// Find returns the distinct candidates in text, in order of appearance.
	Find(text string) []string
}

// RegexMatcher is a Matcher backed by a regular expression.
type RegexMatcher struct {
	name  string
	re    *regexp.Regexp
	group int
	// accept may rewrite a match or reject it by returning false.
	accept func(string) (string, bool)
}

// NewRegexMatcher returns a matcher reporting capture group group of re
// (0 for the whole match). accept may be nil.
func NewRegexMatcher(name string, re *regexp.Regexp, group int, accept func(string) (string, bool)) *RegexMatcher {
	return &RegexMatcher{name: name, re: re, group: group, accept: accept}
}

// Name implements Matcher.
func (m *RegexMatcher) Name() string {
	return m.name
}

// Find implements Matcher.
func (m *RegexMatcher) Find(text string) []string {
	if text == "" {
		return nil
	}
	var found []string
	seen := make(map[string]struct{})
	for _, match := range m.re.FindAllStringSubmatch(text, -1) {
		if m.group >= len(match) {
			continue
		}
		candidate := strings.TrimSpace(match[m.group])
		if candidate == "" {
			continue
		}
		if m.accept != nil {
			var ok bool
			if candidate, ok = m.accept(candidate); !ok {
				continue
			}
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		found = append(found, candidate)
	}
	return found
}

// Matcher names.
const (
	MatcherEmail         = "email"
	MatcherPhone         = "phone"
	MatcherAPIEndpoint   = "api_endpoint"
	MatcherScriptLiteral = "script_literal"
	MatcherFetchCall     = "fetch_call"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

	// imageSuffix rejects retina asset names such as logo@2x.png.
	imageSuffix = regexp.MustCompile(`(?i)\.(?:png|jpe?g|gif|svg|webp|avif|ico)$`)

	phonePattern = regexp.MustCompile(`(?:\+\d{1,3}[\s.\-]?)?(?:\(\d{1,4}\)[\s.\-]?)?\d{2,4}(?:[\s.\-]\d{2,4}){1,4}|\+\d{7,15}`)

	datePattern = regexp.MustCompile(`^(?:\d{4}[\-./]\d{1,2}[\-./]\d{1,2}|\d{1,2}[\-./]\d{1,2}[\-./]\d{2,4})$`)

	apiPattern = regexp.MustCompile("(?i)[\"'`]((?:https?://[^\\s\"'`]+?)?/(?:api|rest|graphql)\\b[^\\s\"'`]*)[\"'`]")

	scriptLiteralPattern = regexp.MustCompile(`(?i)["']([^"'\s<>()+]+\.(?:html?|php|aspx?|jsp|js|mjs|css|json|xml|rss|atom|png|jpe?g|gif|svg|webp|ico|pdf|docx?|xlsx?|pptx?|mp4|webm|mp3|ogg|wav|woff2?|ttf|otf|eot|zip|gz|tgz|rar|7z|csv|txt|yaml|yml))(?:\?[^"'\s<>]*)?["']`)

	fetchCallPattern = regexp.MustCompile("(?:\\bfetch|\\bajax|\\baxios(?:\\.(?:get|post|put|patch|delete|head))?|\\$\\.(?:get|post|getJSON))\\s*\\(\\s*[\"'`]([^\"'`\\s]+)[\"'`]")
)

// EmailMatcher finds email addresses. Results are lowercased.
func EmailMatcher() Matcher {
	return NewRegexMatcher(MatcherEmail, emailPattern, 0, func(s string) (string, bool) {
		if imageSuffix.MatchString(s) {
			return "", false
		}
		return strings.ToLower(s), true
	})
}

// PhoneMatcher finds phone-number-shaped strings with 7 to 15 digits.
// Date-shaped matches are rejected.
func PhoneMatcher() Matcher {
	return NewRegexMatcher(MatcherPhone, phonePattern, 0, func(s string) (string, bool) {
		if datePattern.MatchString(s) {
			return "", false
		}
		digits := 0
		for _, r := range s {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		return s, digits >= 7 && digits <= 15
	})
}

// APIEndpointMatcher finds quoted paths with an /api/, /rest/ or /graphql segment.
func APIEndpointMatcher() Matcher {
	return NewRegexMatcher(MatcherAPIEndpoint, apiPattern, 1, nil)
}

// ScriptLiteralMatcher finds quoted strings that end in a known file extension.
func ScriptLiteralMatcher() Matcher {
	return NewRegexMatcher(MatcherScriptLiteral, scriptLiteralPattern, 1, func(s string) (string, bool) {
		if strings.Contains(s, "${") || strings.HasPrefix(s, "data:") {
			return "", false
		}
		return s, true
	})
}

// FetchCallMatcher finds the URL argument of fetch, ajax, axios and jQuery
// request calls.
func FetchCallMatcher() Matcher {
	return NewRegexMatcher(MatcherFetchCall, fetchCallPattern, 1, func(s string) (string, bool) {
		return s, !strings.Contains(s, "${")
	})
}
