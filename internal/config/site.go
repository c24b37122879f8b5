package config

import (
	"maps"
	"net/url"
	"strings"
	"time"
)

// SiteConfig holds settings for a single host.
type SiteConfig struct {
	// Cookie is sent with every request to the site ("name=value; name2=value2").
	Cookie string `yaml:"cookie,omitempty"`

	// Headers are extra HTTP headers sent with every request to the site.
	Headers map[string]string `yaml:"headers,omitempty"`

	// MaxPages overrides the global page cap when positive.
	MaxPages int `yaml:"maxPages,omitempty"`

	// Delay overrides the global per-worker delay when positive.
	Delay time.Duration `yaml:"delay,omitempty"`

	// UserAgent overrides the primary user agent.
	UserAgent string `yaml:"userAgent,omitempty"`

	// IgnorePatterns are path globs that are never crawled.
	IgnorePatterns []string `yaml:"ignorePatterns,omitempty"`

	// FollowPatterns, when set, restrict crawling to matching paths.
	FollowPatterns []string `yaml:"followPatterns,omitempty"`
}

// File is the structure of the .sitecrawler configuration file.
type File struct {
	// Sites maps host names (no scheme) to their settings.
	Sites map[string]SiteConfig `yaml:"sites,omitempty"`

	// Defaults apply to every site unless overridden.
	Defaults SiteConfig `yaml:"defaults,omitempty"`
}

// GetSiteConfig returns the defaults merged with the settings of host.
func (cf *File) GetSiteConfig(host string) SiteConfig {
	result := cf.Defaults
	if len(cf.Defaults.Headers) > 0 {
		result.Headers = maps.Clone(cf.Defaults.Headers)
	}

	site, ok := cf.Sites[strings.ToLower(host)]
	if !ok {
		return result
	}

	if site.Cookie != "" {
		result.Cookie = site.Cookie
	}
	if site.MaxPages > 0 {
		result.MaxPages = site.MaxPages
	}
	if site.Delay > 0 {
		result.Delay = site.Delay
	}
	if site.UserAgent != "" {
		result.UserAgent = site.UserAgent
	}
	if len(site.Headers) > 0 {
		if result.Headers == nil {
			result.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(result.Headers, site.Headers)
	}
	if len(site.IgnorePatterns) > 0 {
		result.IgnorePatterns = site.IgnorePatterns
	}
	if len(site.FollowPatterns) > 0 {
		result.FollowPatterns = site.FollowPatterns
	}
	return result
}

// ForSeed returns a copy of c with the site settings for seed's host applied.
// Command line patterns are kept and site patterns are appended.
func (c *Config) ForSeed(seed string) *Config {
	out := *c
	out.Seeds = []string{seed}
	out.Headers = maps.Clone(c.Headers)

	if c.SiteConfigs == nil {
		return &out
	}
	u, err := url.Parse(seed)
	if err != nil {
		return &out
	}

	site := c.SiteConfigs.GetSiteConfig(u.Hostname())
	if site.Cookie != "" {
		out.Cookie = site.Cookie
	}
	if len(site.Headers) > 0 {
		if out.Headers == nil {
			out.Headers = make(map[string]string, len(site.Headers))
		}
		maps.Copy(out.Headers, site.Headers)
	}
	if site.MaxPages > 0 {
		out.MaxPages = site.MaxPages
	}
	if site.Delay > 0 {
		out.Delay = site.Delay
	}
	if site.UserAgent != "" {
		out.UserAgent = site.UserAgent
	}
	out.IgnorePatterns = append(append([]string(nil), c.IgnorePatterns...), site.IgnorePatterns...)
	out.FollowPatterns = append(append([]string(nil), c.FollowPatterns...), site.FollowPatterns...)
	return &out
}
