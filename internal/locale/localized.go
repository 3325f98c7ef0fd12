package locale

import "strings"

// Localized holds one optional value per supported locale. It mirrors the CMS
// `{en, fr, ar}` object shape.
type Localized[T any] struct {
	EN *T `json:"en,omitempty"`
	FR *T `json:"fr,omitempty"`
	AR *T `json:"ar,omitempty"`
}

// Text is a localized string field.
type Text = Localized[string]

// In returns the entry for l, or nil when absent.
func (f *Localized[T]) In(l Locale) *T {
	if f == nil {
		return nil
	}
	switch l {
	case EN:
		return f.EN
	case FR:
		return f.FR
	case AR:
		return f.AR
	}
	return nil
}

// Resolve returns the entry for l when present, then the Default entry, then fallback.
// present decides whether a value counts as set.
func Resolve[T any](f *Localized[T], l Locale, fallback T, present func(T) bool) T {
	if v := f.In(l); v != nil && present(*v) {
		return *v
	}
	if v := f.In(Default); v != nil && present(*v) {
		return *v
	}
	return fallback
}

// String resolves a localized string. Whitespace-only entries count as empty and the
// result is trimmed.
func String(f *Text, l Locale, fallback string) string {
	v := Resolve(f, l, "", func(s string) bool { return strings.TrimSpace(s) != "" })
	if v == "" {
		return fallback
	}
	return strings.TrimSpace(v)
}

// Slice resolves a localized sequence such as rich-text blocks. The fallback is an
// empty, non-nil slice.
func Slice[E any](f *Localized[[]E], l Locale) []E {
	return Resolve(f, l, []E{}, func(s []E) bool { return len(s) > 0 })
}

// NewText builds a Text from a locale map. Intended for tests and seed data.
func NewText(values map[Locale]string) *Text {
	t := &Text{}
	for l, v := range values {
		v := v
		switch l {
		case EN:
			t.EN = &v
		case FR:
			t.FR = &v
		case AR:
			t.AR = &v
		}
	}
	return t
}
