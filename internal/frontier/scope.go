package frontier

import (
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// Scope decides whether a URL belongs to the crawled site.
type Scope struct {
	host              string
	domain            string
	includeSubdomains bool
}

// NewScope returns the scope of seed. With includeSubdomains the scope is the
// registrable domain of the seed (eTLD+1), otherwise the exact host.
func NewScope(seed *url.URL, includeSubdomains bool) *Scope {
	host := strings.ToLower(seed.Hostname())
	domain := host
	if includeSubdomains {
		if etld1, err := publicsuffix.EffectiveTLDPlusOne(host); err == nil {
			domain = etld1
		}
	}
	return &Scope{host: host, domain: domain, includeSubdomains: includeSubdomains}
}

// Host returns the seed host.
func (s *Scope) Host() string {
	return s.host
}

// Domain returns the domain recorded in the site map.
func (s *Scope) Domain() string {
	if s.includeSubdomains {
		return s.domain
	}
	return s.host
}

// Contains reports whether u is an http(s) URL inside the scope.
func (s *Scope) Contains(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host == s.host {
		return true
	}
	if !s.includeSubdomains {
		return false
	}
	return host == s.domain || strings.HasSuffix(host, "."+s.domain)
}
