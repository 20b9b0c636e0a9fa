package session

import (
	"net/url"
	"strings"
)

// RestrictedHosts are sites known to refuse third-party embedding.
var RestrictedHosts = []string{
	"google.com",
	"bing.com",
	"duckduckgo.com",
	"youtube.com",
	"facebook.com",
	"twitter.com",
	"x.com",
	"linkedin.com",
	"github.com",
}

// Policy decides which URLs bypass the embedded viewport.
type Policy struct {
	hosts []string
}

// NewPolicy matches hosts case-insensitively. A nil slice uses RestrictedHosts.
func NewPolicy(hosts []string) Policy {
	if hosts == nil {
		hosts = RestrictedHosts
	}
	p := Policy{hosts: make([]string, 0, len(hosts))}
	for _, h := range hosts {
		if h = strings.ToLower(strings.TrimSpace(h)); h != "" {
			p.hosts = append(p.hosts, h)
		}
	}
	return p
}

// Restricted reports whether rawURL's host contains a listed host.
func (p Policy) Restricted(rawURL string) bool {
	host := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	host = strings.ToLower(host)
	for _, h := range p.hosts {
		if strings.Contains(host, h) {
			return true
		}
	}
	return false
}
