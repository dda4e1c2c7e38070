// Package parse classifies and normalizes raw URL strings. Everything here is pure.
package parse

import (
	"errors"
	"net/url"
	"path"
	"strings"

	"github.com/Sriram-PR/page-auditor/pkg/models"
	"github.com/Sriram-PR/page-auditor/pkg/policy"
)

var errNotHTTP = errors.New("not an http(s) URL with a host")

// Classify decides what kind of resource raw refers to. It checks, in order, for a bare
// fragment, a special protocol, a data URI, and finally an http(s) URL. It never fails.
func Classify(raw string) models.ResourceKind {
	s := strings.TrimSpace(raw)
	switch {
	case strings.HasPrefix(s, "#"):
		return models.ResourceFragment
	case SpecialProtocol(s) != "":
		return models.ResourceSpecialProtocol
	case hasPrefixFold(s, "data:"):
		return models.ResourceDataURI
	}
	if _, err := ParseCheckable(s); err != nil {
		return models.ResourceUnparseable
	}
	return models.ResourceCheckable
}

// ExtractDomain returns the lowercase hostname of a checkable URL, or "" for anything else.
func ExtractDomain(raw string) string {
	if Classify(raw) != models.ResourceCheckable {
		return ""
	}
	u, err := ParseCheckable(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// ExtractProtocol names the scheme family of raw: "fragment", a special protocol,
// "data", "http"/"https", or "unknown".
func ExtractProtocol(raw string) string {
	s := strings.TrimSpace(raw)
	switch Classify(s) {
	case models.ResourceFragment:
		return "fragment"
	case models.ResourceSpecialProtocol:
		return SpecialProtocol(s)
	case models.ResourceDataURI:
		return "data"
	case models.ResourceCheckable:
		if u, err := ParseCheckable(s); err == nil {
			return u.Scheme
		}
	}
	return "unknown"
}

// IsProblematicDomain reports whether raw points at a registered problematic domain
func IsProblematicDomain(raw string) bool {
	return policy.IsProblematic(ExtractDomain(raw))
}

var imageExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true, ".svg": true,
	".bmp": true, ".ico": true, ".tiff": true, ".tif": true, ".avif": true, ".heic": true,
}

var imagePathSegments = []string{"/images/", "/img/", "/pics/", "/photos/", "/thumbnails/"}

// IsImageURL guesses from the URL alone whether it references an image.
// Used to split a flat URL list into link and image targets.
func IsImageURL(raw string) bool {
	s := strings.TrimSpace(raw)
	if s == "" {
		return false
	}
	lower := strings.ToLower(s)
	if strings.HasPrefix(lower, "data:image/") {
		return true
	}
	if Classify(s) != models.ResourceCheckable {
		return false
	}
	for _, seg := range imagePathSegments {
		if strings.Contains(lower, seg) {
			return true
		}
	}
	u, err := url.Parse(lower)
	if err != nil {
		return false
	}
	return imageExtensions[path.Ext(u.Path)]
}
