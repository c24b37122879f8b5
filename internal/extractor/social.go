package extractor

import (
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/nao1215/sitecrawler/internal/model"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// socialPlatforms maps a platform key to the domains its profiles live on.
// Mastodon is federated, so only its largest general-purpose instances are listed.
var socialPlatforms = map[string][]string{
	"facebook":  {"facebook.com", "fb.com"},
	"twitter":   {"twitter.com", "x.com"},
	"instagram": {"instagram.com", "instagr.am"},
	"linkedin":  {"linkedin.com"},
	"youtube":   {"youtube.com", "youtu.be"},
	"github":    {"github.com"},
	"tiktok":    {"tiktok.com"},
	"pinterest": {"pinterest.com"},
	"telegram":  {"t.me", "telegram.me"},
	"discord":   {"discord.gg", "discord.com"},
	"reddit":    {"reddit.com"},
	"medium":    {"medium.com"},
	"whatsapp":  {"wa.me", "chat.whatsapp.com"},
	"threads":   {"threads.net"},
	"mastodon":  {"mastodon.social", "mastodon.online", "mstdn.social", "fosstodon.org", "hachyderm.io", "infosec.exchange"},
}

// platformTitles holds display names that title-casing gets wrong.
var platformTitles = map[string]string{
	"twitter":  "Twitter/X",
	"linkedin": "LinkedIn",
	"youtube":  "YouTube",
	"github":   "GitHub",
	"tiktok":   "TikTok",
	"whatsapp": "WhatsApp",
}

// nonProfileSegments are path fragments of share widgets and site pages
// rather than profiles.
var nonProfileSegments = []string{
	"/intent/", "/share", "/sharer", "/login", "/signup", "/register",
	"/help", "/about", "/terms", "/privacy", "/policies", "/settings", "/search",
	"/home", "/explore", "/notifications", "/messages", "/i/", "/hashtag/",
}

var absoluteURLPattern = regexp.MustCompile(`https?://[^\s"'<>()\[\]{}]+`)

// PlatformName returns the display name of a platform key.
func PlatformName(platform string) string {
	if title, ok := platformTitles[platform]; ok {
		return title
	}
	return cases.Title(language.English).String(platform)
}

// SocialMatcher recognizes profile URLs on known social platforms.
type SocialMatcher struct {
	byDomain map[string]string
}

// NewSocialMatcher returns a matcher over the built-in platform table.
func NewSocialMatcher() *SocialMatcher {
	m := &SocialMatcher{byDomain: make(map[string]string)}
	for platform, domains := range socialPlatforms {
		for _, d := range domains {
			m.byDomain[d] = platform
		}
	}
	return m
}

// Name implements Matcher.
func (m *SocialMatcher) Name() string {
	return "social"
}

// Find implements Matcher. It returns profile URLs found in text.
func (m *SocialMatcher) Find(text string) []string {
	var found []string
	for _, raw := range absoluteURLPattern.FindAllString(text, -1) {
		raw = strings.TrimRight(raw, ".,;:!?")
		if _, ok := m.Match(raw); ok && !slices.Contains(found, raw) {
			found = append(found, raw)
		}
	}
	return found
}

// Match reports the platform of rawURL if it looks like a profile on a known platform.
func (m *SocialMatcher) Match(rawURL string) (model.SocialLink, bool) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return model.SocialLink{}, false
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	host = strings.TrimPrefix(host, "m.")

	platform, ok := m.byDomain[host]
	if !ok {
		return model.SocialLink{}, false
	}
	p := strings.ToLower(u.EscapedPath())
	if strings.Trim(p, "/") == "" {
		return model.SocialLink{}, false
	}
	for _, seg := range nonProfileSegments {
		if strings.Contains(p, seg) {
			return model.SocialLink{}, false
		}
	}
	return model.SocialLink{Platform: platform, URL: rawURL}, true
}
