package cms

import (
	"strings"

	"github.com/goliatone/go-slug"
)

// NormalizeSlug returns the route form of a CMS slug, or "" when the value cannot
// address a page.
func NormalizeSlug(value string) string {
	value = strings.Trim(strings.TrimSpace(value), "/")
	if value == "" || strings.Contains(value, "..") {
		return ""
	}
	normalized, err := slug.Normalize(value)
	if err != nil || normalized == "" || !slug.IsValid(normalized) {
		return ""
	}
	return normalized
}

// ValidSlug reports whether value is already in route form.
func ValidSlug(value string) bool {
	return value != "" && slug.IsValid(value) && NormalizeSlug(value) == value
}
