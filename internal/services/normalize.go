package services

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var hostnamePattern = regexp.MustCompile(`^(?:[a-z0-9](?:[a-z0-9-]{0,61}[a-z0-9])?\.)+[a-z]{2,}$`)

const maxHostnameLength = 253

var plainText = bluemonday.StrictPolicy()

// cleanText reduces publisher-supplied free text to plain text. Markup is
// dropped and entities are decoded; pages escape it again on output.
func cleanText(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainText.Sanitize(s)))
}

// NormalizeDomain lowercases the input and strips an http(s) scheme, any
// trailing slashes and a trailing root dot. It is idempotent on valid
// hostnames.
func NormalizeDomain(raw string) string {
	d := strings.ToLower(strings.TrimSpace(raw))
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimRight(d, "/")
	d = strings.TrimSuffix(d, ".")
	return d
}

// ValidHostname reports whether d is a normalized multi-label hostname.
func ValidHostname(d string) bool {
	return len(d) <= maxHostnameLength && hostnamePattern.MatchString(d)
}

// HostBelongsTo reports whether host equals domain or is a proper subdomain
// of it. Both are compared case-insensitively without trailing dots.
func HostBelongsTo(host, domain string) bool {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	domain = strings.TrimSuffix(strings.ToLower(domain), ".")
	if host == "" || domain == "" {
		return false
	}
	return host == domain || strings.HasSuffix(host, "."+domain)
}

// checkContentURL validates that raw is an absolute http(s) URL served from
// domain or one of its subdomains.
func checkContentURL(raw, domain string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Hostname() == "" {
		return validationErrorf("invalid URL %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return validationErrorf("URL must use http or https")
	}
	if !HostBelongsTo(u.Hostname(), domain) {
		return validationErrorf("URL must belong to the verified domain %s", domain)
	}
	return nil
}
