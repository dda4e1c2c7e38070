package parse

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	schemePattern   = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.\-]*://`)
	repeatedSlashes = regexp.MustCompile(`/{2,}`)
)

// Normalize standardizes a raw URL string before probing.
// Bare domains get "https://" (protocol-relative URLs get "https:"), scheme and host are lowercased,
// default ports are removed, runs of slashes in the path collapse to one and an empty path becomes "/".
// Query and fragment are kept. Fragments, special protocols, data URIs and anything that does not
// parse as an http(s) URL with a host are returned unchanged.
func Normalize(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" || strings.HasPrefix(s, "#") || SpecialProtocol(s) != "" || hasPrefixFold(s, "data:") {
		return raw
	}

	candidate := s
	switch {
	case strings.HasPrefix(s, "//"):
		candidate = "https:" + s
	case hasPrefixFold(s, "http://"), hasPrefixFold(s, "https://"):
	case schemePattern.MatchString(s):
		return raw // Some other explicit scheme
	default:
		candidate = "https://" + s
	}

	u, err := url.Parse(candidate)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return raw
	}
	u.Host = strings.ToLower(u.Host)

	// Remove default ports
	if port := u.Port(); (u.Scheme == "http" && port == "80") || (u.Scheme == "https" && port == "443") {
		u.Host = strings.TrimSuffix(u.Host, ":"+port)
	}
	u.Host = strings.TrimSuffix(u.Host, ":")

	// Handle path normalization
	escaped := repeatedSlashes.ReplaceAllString(u.EscapedPath(), "/")
	if escaped == "" {
		escaped = "/"
	}
	if p, err := url.PathUnescape(escaped); err == nil {
		u.Path = p
		u.RawPath = escaped
	}

	return u.String()
}

// ParseCheckable normalizes raw and parses it, requiring an http(s) URL with a host.
func ParseCheckable(raw string) (*url.URL, error) {
	n := Normalize(raw)
	u, err := url.Parse(n)
	if err != nil {
		return nil, &url.Error{Op: "parse", URL: raw, Err: err}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, &url.Error{Op: "parse", URL: raw, Err: errNotHTTP}
	}
	return u, nil
}

// Resolve makes a page-relative reference ("/a", "./a", "../a", "?q") absolute against base.
// Anything else, including bare domains and fragments, is returned unchanged.
func Resolve(base *url.URL, raw string) string {
	s := strings.TrimSpace(raw)
	if base == nil || !isPageRelative(s) {
		return raw
	}
	ref, err := url.Parse(s)
	if err != nil {
		return raw
	}
	return base.ResolveReference(ref).String()
}

func isPageRelative(s string) bool {
	if strings.HasPrefix(s, "//") {
		return false
	}
	return strings.HasPrefix(s, "/") || strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || strings.HasPrefix(s, "?")
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && strings.EqualFold(s[:len(prefix)], prefix)
}
