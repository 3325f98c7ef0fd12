// Package nav builds the localized main navigation, language switcher and breadcrumbs.
package nav

import (
	"path"
	"strings"

	"bitpoet.dev/bitpoet-web/internal/links"
	"bitpoet.dev/bitpoet-web/internal/locale"
)

// Item is a top-level navigation entry. Path is locale-relative.
type Item struct {
	Path     string
	LabelKey string
}

// RenderedItem is a view model for templates.
type RenderedItem struct {
	Href     string
	LabelKey string
	Active   bool
}

// Alternate is one entry of the language switcher.
type Alternate struct {
	Locale locale.Locale
	Label  string
	Href   string
	Dir    string
	Active bool
}

// Crumb is a breadcrumb entry. When LabelKey is empty, Label is shown.
type Crumb struct {
	Href     string
	LabelKey string
	Label    string
	Active   bool
}

// Main is the primary navigation definition.
var Main = []Item{
	{Path: "/", LabelKey: "nav.home"},
	{Path: "/about", LabelKey: "nav.about"},
	{Path: "/services", LabelKey: "nav.services"},
	{Path: "/projects", LabelKey: "nav.projects"},
	{Path: "/blog", LabelKey: "nav.blog"},
	{Path: "/contact", LabelKey: "nav.contact"},
}

// Build renders the main navigation for l. currentPath is the full request path.
func Build(l locale.Locale, currentPath string) []RenderedItem {
	rel := Strip(currentPath)
	items := make([]RenderedItem, 0, len(Main))
	for _, it := range Main {
		items = append(items, RenderedItem{
			Href:     links.Localize(it.Path, l.String()),
			LabelKey: it.LabelKey,
			Active:   isActive(it.Path, rel),
		})
	}
	return items
}

// Switcher links the current page in every supported locale.
func Switcher(current locale.Locale, currentPath string) []Alternate {
	rel := Strip(currentPath)
	out := make([]Alternate, 0, len(locale.All))
	for _, l := range locale.All {
		out = append(out, Alternate{
			Locale: l,
			Label:  l.Label(),
			Href:   links.Localize(rel, l.String()),
			Dir:    l.Dir(),
			Active: l == current,
		})
	}
	return out
}

// Strip removes a leading supported locale segment, returning a path that starts with "/".
func Strip(p string) string {
	if p == "" {
		return "/"
	}
	trimmed := strings.TrimPrefix(p, "/")
	first, rest, _ := strings.Cut(trimmed, "/")
	if locale.IsLocale(first) {
		if rest == "" {
			return "/"
		}
		return "/" + rest
	}
	return "/" + trimmed
}

func isActive(itemPath, rel string) bool {
	if itemPath == "/" {
		return rel == "/"
	}
	return rel == itemPath || strings.HasPrefix(rel, itemPath+"/")
}

// Breadcrumbs builds localized breadcrumbs for currentPath. last overrides the label
// of the final crumb, e.g. a post title instead of its slug.
func Breadcrumbs(l locale.Locale, currentPath, last string) []Crumb {
	rel := Strip(currentPath)
	home := links.Localize("/", l.String())
	crumbs := []Crumb{{Href: home, LabelKey: "nav.home", Active: rel == "/"}}
	if rel == "/" {
		return crumbs
	}

	parts := strings.Split(strings.Trim(path.Clean(rel), "/"), "/")
	href := ""
	for i, part := range parts {
		href += "/" + part
		c := Crumb{
			Href:   links.Localize(href, l.String()),
			Label:  titleFromSegment(part),
			Active: i == len(parts)-1,
		}
		if i == 0 {
			for _, it := range Main {
				if it.Path == href {
					c.LabelKey = it.LabelKey
				}
			}
		}
		if c.Active && strings.TrimSpace(last) != "" {
			c.LabelKey = ""
			c.Label = strings.TrimSpace(last)
		}
		crumbs = append(crumbs, c)
	}
	return crumbs
}

func titleFromSegment(seg string) string {
	s := strings.NewReplacer("-", " ", "_", " ").Replace(seg)
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] -= 'a' - 'A'
	}
	return string(r)
}
