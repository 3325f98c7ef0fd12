// Package links normalizes CMS-authored hrefs into internal paths or untouched external URLs.
package links

import "strings"

var passthroughPrefixes = []string{"http://", "https://", "mailto:", "tel:"}

// Normalize trims raw and returns it unchanged when it is an http(s), mailto: or tel: link.
// Anything else is treated as a site path with exactly one leading slash. Empty input
// yields fallback, which is normalized by the same rules so Normalize is idempotent.
func Normalize(raw, fallback string) string {
	if out := normalize(raw); out != "" {
		return out
	}
	if out := normalize(fallback); out != "" {
		return out
	}
	return fallback
}

func normalize(raw string) string {
	input := strings.TrimSpace(raw)
	if input == "" {
		return ""
	}
	if isExternal(input) {
		return input
	}
	return "/" + strings.TrimLeft(input, "/")
}

func isExternal(s string) bool {
	lower := strings.ToLower(s)
	for _, p := range passthroughPrefixes {
		if strings.HasPrefix(lower, p) {
			return true
		}
	}
	return false
}

// IsExternal reports whether href leaves the site.
func IsExternal(href string) bool {
	return isExternal(strings.TrimSpace(href))
}

// Localize prefixes an internal path with the locale segment. External links and
// paths already carrying the prefix are returned as-is.
func Localize(href, locale string) string {
	if href == "" || IsExternal(href) || locale == "" {
		return href
	}
	prefix := "/" + locale
	if href == prefix || strings.HasPrefix(href, prefix+"/") {
		return href
	}
	if href == "/" {
		return prefix
	}
	return prefix + href
}
