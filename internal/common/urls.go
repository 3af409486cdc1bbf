package common

import (
	"net/url"
	"strings"
)

// HostKey returns the scheme+authority component of a URL, used as the
// rate-limit key. Returns "" when the URL cannot be parsed or has no host.
func HostKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		scheme = "https"
	}
	return scheme + "://" + strings.ToLower(u.Host)
}

// NormalizeURL canonicalizes a URL for deduplication: lowercased scheme,
// host and path, query and fragment stripped, trailing slash removed.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return strings.ToLower(strings.TrimSpace(rawURL))
	}

	u.Fragment = ""
	u.RawQuery = ""
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Path = strings.TrimSuffix(strings.ToLower(u.Path), "/")

	return u.String()
}

// ResolveURL resolves a possibly relative href against a base URL and
// returns the absolute form. Returns "" for unusable links (javascript:,
// mailto:, fragments, malformed).
func ResolveURL(baseURL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" ||
		strings.HasPrefix(href, "#") ||
		strings.HasPrefix(href, "javascript:") ||
		strings.HasPrefix(href, "mailto:") ||
		strings.HasPrefix(href, "tel:") ||
		strings.HasPrefix(href, "data:") {
		return ""
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}

	abs := base.ResolveReference(ref)
	abs.Fragment = ""
	abs.Scheme = strings.ToLower(abs.Scheme)
	abs.Host = strings.ToLower(abs.Host)

	return abs.String()
}
