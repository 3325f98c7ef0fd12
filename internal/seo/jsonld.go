package seo

import (
	"encoding/json"
	"html/template"
	"strings"
	"time"

	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/locale"
)

// JSON marshals v for a <script type="application/ld+json"> block. It returns an
// empty string on error.
func JSON(v any) template.JS {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return template.JS(b)
}

// Organization returns the schema.org Organization for the studio.
func Organization(l locale.Locale, settings cms.SiteSettings, base string) map[string]any {
	base = strings.TrimRight(base, "/")
	codes := make([]string, 0, len(locale.All))
	for _, c := range locale.All {
		codes = append(codes, c.String())
	}

	m := map[string]any{
		"@context":    "https://schema.org",
		"@type":       "Organization",
		"name":        firstNonEmpty(settings.Title, DefaultTitle),
		"description": firstNonEmpty(settings.Tagline, DefaultDescription),
		"url":         base + "/" + l.String(),
		"logo":        base + "/bitpoet-logo.png",
	}
	sameAs := make([]string, 0, len(settings.SocialLinks))
	for _, s := range settings.SocialLinks {
		if s.URL != "" {
			sameAs = append(sameAs, s.URL)
		}
	}
	if len(sameAs) > 0 {
		m["sameAs"] = sameAs
	}
	if email := strings.TrimSpace(settings.ContactEmail); email != "" {
		m["contactPoint"] = []map[string]any{{
			"@type":             "ContactPoint",
			"email":             email,
			"contactType":       "sales",
			"areaServed":        codes,
			"availableLanguage": codes,
		}}
	}
	return m
}

// Article returns a schema.org BlogPosting for a post page.
func Article(post cms.Post, url string) map[string]any {
	m := map[string]any{
		"@context": "https://schema.org",
		"@type":    "BlogPosting",
		"headline": post.Title,
	}
	if url != "" {
		m["url"] = url
		m["mainEntityOfPage"] = url
	}
	if post.Excerpt != "" {
		m["description"] = post.Excerpt
	}
	if post.CoverImage != nil && post.CoverImage.URL != "" {
		m["image"] = post.CoverImage.URL
	}
	if post.Author != nil {
		m["author"] = map[string]any{"@type": "Person", "name": post.Author.Name}
	}
	if !post.PublishedAt.IsZero() {
		m["datePublished"] = post.PublishedAt.UTC().Format(time.RFC3339)
	}
	return m
}

// BreadcrumbItem maps name and absolute item URL.
type BreadcrumbItem struct {
	Name string
	Item string
}

// BreadcrumbList builds schema.org BreadcrumbList.
func BreadcrumbList(items []BreadcrumbItem) map[string]any {
	el := make([]map[string]any, 0, len(items))
	for i, it := range items {
		el = append(el, map[string]any{
			"@type":    "ListItem",
			"position": i + 1,
			"name":     it.Name,
			"item":     it.Item,
		})
	}
	return map[string]any{
		"@context":        "https://schema.org",
		"@type":           "BreadcrumbList",
		"itemListElement": el,
	}
}
