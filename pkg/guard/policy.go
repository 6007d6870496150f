package guard

import (
	"net/url"
	"strings"
)

// DefaultHost is the only host a session may visit
const DefaultHost = "www.instagram.com"

// Policy is the navigation allow-list
type Policy struct {
	Host string
}

// NewPolicy creates a policy for host, falling back to DefaultHost
func NewPolicy(host string) Policy {
	if host == "" {
		host = DefaultHost
	}
	return Policy{Host: host}
}

// Allowed reports whether the browser may be at rawURL. Besides blank
// pages, only the site root, a profile page (/<profile>/), a post page
// (/p/<id>/) and a profile-scoped post page (/<profile>/p/<id>/) pass.
func (p Policy) Allowed(rawURL string) bool {
	switch rawURL {
	case "about:blank", "data:,":
		return true
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return false
	}
	if !strings.EqualFold(u.Hostname(), p.Host) {
		return false
	}

	segs := segments(u.Path)
	switch len(segs) {
	case 0, 1:
		return true
	case 2:
		return segs[0] == "p"
	case 3:
		return segs[1] == "p"
	default:
		return false
	}
}

func segments(path string) []string {
	var out []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
