// Package security provides the validators sitebrain applies to
// crawl targets and upload paths.
package security

import (
	"fmt"
	"net"
	"net/url"
	"strings"
)

// URLGuard validates crawl targets. It blocks cloud metadata endpoints
// and link-local addresses so a misconfigured site_url cannot probe the
// host's own infrastructure, while still allowing private-range targets
// since self-hosted sites commonly live there.
type URLGuard struct {
	blockedHosts map[string]struct{}
}

// NewURLGuard creates a guard with the default blocklist.
func NewURLGuard() *URLGuard {
	return &URLGuard{
		blockedHosts: map[string]struct{}{
			"metadata.google.internal": {},
			"metadata.gce.internal":    {},
			"metadata.internal":        {},
		},
	}
}

// Validate checks that rawURL is an http(s) URL with a host that is safe
// to crawl.
func (g *URLGuard) Validate(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}

	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("unsupported scheme %q (allowed: http, https)", u.Scheme)
	}

	host := u.Hostname()
	if host == "" {
		return fmt.Errorf("empty hostname")
	}

	if _, blocked := g.blockedHosts[strings.ToLower(host)]; blocked {
		return fmt.Errorf("blocked host: %s", host)
	}

	if ip := net.ParseIP(host); ip != nil {
		if ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
			return fmt.Errorf("link-local address not allowed: %s", host)
		}
		if ip.IsUnspecified() {
			return fmt.Errorf("unspecified address not allowed: %s", host)
		}
	}
	return nil
}
