// Package revalidate maps CMS publish events to cache invalidations.
package revalidate

import (
	"strings"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/locale"
)

// Plan lists what a publish event invalidates. All supersedes Paths and Tags.
type Plan struct {
	DocType string   `json:"type,omitempty"`
	Slug    string   `json:"slug,omitempty"`
	Paths   []string `json:"paths,omitempty"`
	Tags    []string `json:"tags,omitempty"`
	All     bool     `json:"all,omitempty"`
	Reason  string   `json:"reason,omitempty"`
}

// Invalidator drops cached entries. *cache.Store implements it.
type Invalidator interface {
	InvalidateTags(tags ...string) int
	InvalidateAll() int
}

// PlanFor returns the invalidation plan for a published document. Posts, projects
// and services also appear on the home page, so their plans include /{l}. Types that are
// not mapped, and slug-addressed types published without a slug, invalidate everything.
func PlanFor(docType, slug string) Plan {
	docType = strings.TrimSpace(docType)
	slug = cms.NormalizeSlug(slug)
	p := Plan{DocType: docType, Slug: slug}

	switch docType {
	case "blogPost":
		if slug == "" {
			return p.all("blogPost without slug")
		}
		p.Paths = append(p.Paths, "/blog")
		for _, l := range locale.All {
			p.Paths = append(p.Paths, "/"+l.String()+"/blog", "/"+l.String()+"/blog/"+slug)
		}
		p.Paths = append(p.Paths, localePaths("")...)
		p.Tags = []string{cms.TagPosts}
	case "project":
		if slug == "" {
			return p.all("project without slug")
		}
		p.Paths = append(p.Paths, "/projects")
		for _, l := range locale.All {
			p.Paths = append(p.Paths, "/"+l.String()+"/projects", "/"+l.String()+"/projects/"+slug)
		}
		p.Paths = append(p.Paths, localePaths("")...)
		p.Tags = []string{cms.TagProjects, cms.TagHomePage}
	case "page":
		if slug == "" {
			return p.all("page without slug")
		}
		for _, l := range locale.All {
			p.Paths = append(p.Paths, "/"+l.String()+"/"+slug)
		}
		p.Tags = []string{cms.TagPages}
	case "service":
		p.Paths = append(localePaths("/services"), localePaths("")...)
		p.Tags = []string{cms.TagServices}
	case "homePage":
		p.Paths = localePaths("")
		p.Tags = []string{cms.TagHomePage}
	case "aboutPage":
		p.Paths = localePaths("/about")
		p.Tags = []string{cms.TagAboutPage}
	case "siteSettings":
		// Settings feed every layout.
		return p.all("siteSettings changed")
	case "":
		return p.all("missing document type")
	default:
		return p.all("unmapped document type")
	}
	return p
}

func (p Plan) all(reason string) Plan {
	p.Paths = nil
	p.Tags = nil
	p.All = true
	p.Reason = reason
	return p
}

func localePaths(suffix string) []string {
	out := make([]string, 0, len(locale.All))
	for _, l := range locale.All {
		out = append(out, "/"+l.String()+suffix)
	}
	return out
}

// Apply executes the plan against inv and returns the number of entries dropped.
// Paths invalidate the page cache entries tagged with cache.PathTag.
func Apply(inv Invalidator, p Plan) int {
	if inv == nil {
		return 0
	}
	if p.All {
		return inv.InvalidateAll()
	}
	tags := make([]string, 0, len(p.Tags)+len(p.Paths))
	tags = append(tags, p.Tags...)
	for _, path := range p.Paths {
		tags = append(tags, cache.PathTag(path))
	}
	if len(tags) == 0 {
		return 0
	}
	return inv.InvalidateTags(tags...)
}
