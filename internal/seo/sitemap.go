package seo

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

// StaticRoutes are listed for every locale.
var StaticRoutes = []string{"", "services", "projects", "about", "blog", "contact"}

// SlugSource lists the slug-addressed documents included in the sitemap.
type SlugSource interface {
	PostSlugs(ctx context.Context) ([]string, error)
	ProjectSlugs(ctx context.Context) ([]string, error)
}

type Entry struct {
	Loc        string
	LastMod    time.Time
	ChangeFreq string
	Priority   float64
}

// Sitemap lists the root, static routes per locale, then posts and projects per
// locale. Slug lookup failures are logged and the static entries still returned.
func Sitemap(ctx context.Context, base string, src SlugSource, now time.Time, logger *zap.Logger) []Entry {
	if logger == nil {
		logger = zap.NewNop()
	}
	base = strings.TrimRight(base, "/")

	var posts, projects []string
	if src != nil {
		var err error
		if posts, err = src.PostSlugs(ctx); err != nil {
			logger.Warn("sitemap: post slugs unavailable", zap.Error(err))
			posts = nil
		}
		if projects, err = src.ProjectSlugs(ctx); err != nil {
			logger.Warn("sitemap: project slugs unavailable", zap.Error(err))
			projects = nil
		}
	}

	entries := []Entry{{Loc: base, LastMod: now, ChangeFreq: "weekly", Priority: 1}}
	for _, l := range locale.All {
		for _, route := range StaticRoutes {
			priority := 0.7
			if route == "" && l == locale.Default {
				priority = 1
			}
			entries = append(entries, Entry{
				Loc:        base + LocalizedPath(l, route),
				LastMod:    now,
				ChangeFreq: "weekly",
				Priority:   priority,
			})
		}
		for _, slug := range posts {
			entries = append(entries, Entry{
				Loc:        base + LocalizedPath(l, "blog/"+slug),
				LastMod:    now,
				ChangeFreq: "monthly",
				Priority:   0.6,
			})
		}
		for _, slug := range projects {
			entries = append(entries, Entry{
				Loc:        base + LocalizedPath(l, "projects/"+slug),
				LastMod:    now,
				ChangeFreq: "monthly",
				Priority:   0.6,
			})
		}
	}
	return entries
}

type xmlURLSet struct {
	XMLName xml.Name `xml:"urlset"`
	XMLNS   string   `xml:"xmlns,attr"`
	URLs    []xmlURL `xml:"url"`
}

type xmlURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

// WriteSitemap encodes entries in the sitemaps.org XML format.
func WriteSitemap(w io.Writer, entries []Entry) error {
	set := xmlURLSet{XMLNS: "http://www.sitemaps.org/schemas/sitemap/0.9", URLs: make([]xmlURL, 0, len(entries))}
	for _, e := range entries {
		u := xmlURL{Loc: e.Loc, ChangeFreq: e.ChangeFreq, Priority: fmt.Sprintf("%.1f", e.Priority)}
		if !e.LastMod.IsZero() {
			u.LastMod = e.LastMod.UTC().Format(time.RFC3339)
		}
		set.URLs = append(set.URLs, u)
	}
	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(set); err != nil {
		return fmt.Errorf("encode sitemap: %w", err)
	}
	return enc.Flush()
}

// Robots renders robots.txt allowing everything and pointing at the sitemap.
func Robots(base string) string {
	base = strings.TrimRight(base, "/")
	var b strings.Builder
	b.WriteString("User-agent: *\n")
	b.WriteString("Allow: /\n\n")
	b.WriteString("Sitemap: " + base + "/sitemap.xml\n")
	b.WriteString("Host: " + base + "\n")
	return b.String()
}
