// Package policy holds the static registry of domains known to reject or
// rate-limit automated probes, and the rules that soften failures against them.
package policy

import (
	"net/url"
	"strings"
)

// Category groups registry entries for display. Logic only distinguishes social platforms.
type Category string

const (
	CategorySocial   Category = "social"
	CategoryAntiBot  Category = "anti-bot"
	CategoryCommerce Category = "commerce"
	CategoryPaywall  Category = "paywall"
	CategoryOther    Category = "other"
)

// Entry is one registered domain suffix
type Entry struct {
	Domain   string
	Category Category
}

var problematicDomains = []Entry{
	{"linkedin.com", CategorySocial},
	{"instagram.com", CategorySocial},
	{"facebook.com", CategorySocial},
	{"fb.com", CategorySocial},
	{"twitter.com", CategorySocial},
	{"x.com", CategorySocial},
	{"threads.net", CategorySocial},
	{"reddit.com", CategorySocial},
	{"tiktok.com", CategorySocial},
	{"pinterest.com", CategorySocial},
	{"tumblr.com", CategorySocial},

	{"cloudflare.com", CategoryAntiBot},
	{"akamai.com", CategoryAntiBot},
	{"imperva.com", CategoryAntiBot},
	{"recaptcha.net", CategoryAntiBot},
	{"hcaptcha.com", CategoryAntiBot},

	{"amazon.com", CategoryCommerce},
	{"netflix.com", CategoryCommerce},
	{"hulu.com", CategoryCommerce},
	{"disneyplus.com", CategoryCommerce},
	{"hbomax.com", CategoryCommerce},
	{"primevideo.com", CategoryCommerce},
	{"shopify.com", CategoryCommerce},

	{"nytimes.com", CategoryPaywall},
	{"wsj.com", CategoryPaywall},
	{"ft.com", CategoryPaywall},
	{"economist.com", CategoryPaywall},
	{"washingtonpost.com", CategoryPaywall},
	{"medium.com", CategoryPaywall},

	{"quora.com", CategoryOther},
	{"glassdoor.com", CategoryOther},
	{"indeed.com", CategoryOther},
	{"typeform.com", CategoryOther},
	{"microsoft.com", CategoryOther},
	{"apple.com", CategoryOther},
	{"google.com", CategoryOther},
}

// Map providers use fragment-like path syntax ("#map=...") that is not a document anchor.
// An entry with a path only matches URLs under that path on the host.
var mapServices = []string{
	"mappy.com",
	"maps.google.com",
	"google.com/maps",
	"waze.com",
	"openstreetmap.org",
	"bing.com/maps",
	"yandex.com/maps",
	"mapquest.com",
}

// Domains returns a copy of the registry
func Domains() []Entry {
	out := make([]Entry, len(problematicDomains))
	copy(out, problematicDomains)
	return out
}

// Match returns the registry entry covering host: an exact match or a subdomain of the entry.
func Match(host string) (Entry, bool) {
	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if host == "" {
		return Entry{}, false
	}
	for _, e := range problematicDomains {
		if hostMatches(host, e.Domain) {
			return e, true
		}
	}
	return Entry{}, false
}

// IsProblematic reports whether host is covered by the registry
func IsProblematic(host string) bool {
	_, ok := Match(host)
	return ok
}

// IsSocial reports whether host belongs to a registered social platform
func IsSocial(host string) bool {
	e, ok := Match(host)
	return ok && e.Category == CategorySocial
}

// IsMapService reports whether u points into a map provider
func IsMapService(u *url.URL) bool {
	if u == nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	for _, svc := range mapServices {
		domain, path, hasPath := strings.Cut(svc, "/")
		if !hostMatches(host, domain) {
			continue
		}
		if !hasPath {
			return true
		}
		prefix := "/" + path
		if u.Path == prefix || strings.HasPrefix(u.Path, prefix+"/") {
			return true
		}
	}
	return false
}

func hostMatches(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
