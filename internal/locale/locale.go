// Package locale defines the supported site locales and the per-locale field record
// used by every CMS document.
package locale

import (
	"strings"

	"golang.org/x/text/language"
)

// Locale is a supported UI language code.
type Locale string

const (
	EN Locale = "en"
	FR Locale = "fr"
	AR Locale = "ar"
)

// Default is the locale every localized field falls back to.
const Default = EN

// All lists supported locales in display order. Default is first.
var All = []Locale{EN, FR, AR}

var labels = map[Locale]string{
	EN: "English",
	FR: "Français",
	AR: "العربية",
}

var rtl = map[Locale]struct{}{
	AR: {},
}

// IsLocale reports whether candidate is exactly one of the supported codes.
func IsLocale(candidate string) bool {
	for _, l := range All {
		if string(l) == candidate {
			return true
		}
	}
	return false
}

// Parse accepts an exact code or a region-qualified shorthand such as "fr-CA".
func Parse(candidate string) (Locale, bool) {
	candidate = strings.ToLower(strings.TrimSpace(candidate))
	if candidate == "" {
		return "", false
	}
	if IsLocale(candidate) {
		return Locale(candidate), true
	}
	if i := strings.IndexAny(candidate, "-_"); i > 0 {
		if short := candidate[:i]; IsLocale(short) {
			return Locale(short), true
		}
	}
	return "", false
}

// OrDefault returns l when supported, otherwise Default.
func OrDefault(candidate string) Locale {
	if l, ok := Parse(candidate); ok {
		return l
	}
	return Default
}

// Direction returns "rtl" for right-to-left locales and "ltr" otherwise.
func Direction(l Locale) string {
	if _, ok := rtl[l]; ok {
		return "rtl"
	}
	return "ltr"
}

// Label is the human name of the locale in its own language.
func (l Locale) Label() string {
	if v, ok := labels[l]; ok {
		return v
	}
	return string(l)
}

// Dir is Direction as a method, for templates.
func (l Locale) Dir() string { return Direction(l) }

func (l Locale) String() string { return string(l) }

// Others returns every supported locale except l.
func Others(l Locale) []Locale {
	out := make([]Locale, 0, len(All)-1)
	for _, c := range All {
		if c != l {
			out = append(out, c)
		}
	}
	return out
}

var matcher = language.NewMatcher(func() []language.Tag {
	tags := make([]language.Tag, 0, len(All))
	for _, l := range All {
		tags = append(tags, language.Make(string(l)))
	}
	return tags
}())

// Match negotiates the best supported locale for an Accept-Language header value.
func Match(acceptLanguage string) Locale {
	acceptLanguage = strings.TrimSpace(acceptLanguage)
	if acceptLanguage == "" {
		return Default
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return Default
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No || idx < 0 || idx >= len(All) {
		return Default
	}
	return All[idx]
}
