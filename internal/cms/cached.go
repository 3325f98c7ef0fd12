package cms

import (
	"context"
	"strings"
	"time"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/locale"
)

// Cache tags, one per content family. The revalidation webhook invalidates these.
const (
	TagSiteSettings = "sanity:site-settings"
	TagServices     = "sanity:services"
	TagProjects     = "sanity:projects"
	TagHomePage     = "sanity:home-page"
	TagAboutPage    = "sanity:about-page"
	TagPages        = "sanity:pages"
	TagPosts        = "sanity:posts"
)

const (
	DefaultTTL = 300 * time.Second
	PostsTTL   = 180 * time.Second
)

// Cached memoizes every Content call in a tagged store.
type Cached struct {
	next  Content
	store *cache.Store
}

var _ Content = (*Cached)(nil)
var _ Content = (*Client)(nil)

// NewCached wraps next. A nil store disables caching.
func NewCached(next Content, store *cache.Store) *Cached {
	return &Cached{next: next, store: store}
}

func key(parts ...string) string {
	return strings.Join(parts, "|")
}

func (c *Cached) SiteSettings(ctx context.Context, l locale.Locale) (SiteSettings, error) {
	return cache.Memoize(ctx, c.store, key("site-settings", l.String()), DefaultTTL, []string{TagSiteSettings},
		func(ctx context.Context) (SiteSettings, error) { return c.next.SiteSettings(ctx, l) })
}

func (c *Cached) Services(ctx context.Context, l locale.Locale) ([]Service, error) {
	return cache.Memoize(ctx, c.store, key("services", l.String()), DefaultTTL, []string{TagServices},
		func(ctx context.Context) ([]Service, error) { return c.next.Services(ctx, l) })
}

func (c *Cached) Projects(ctx context.Context, l locale.Locale) ([]ProjectSummary, error) {
	return cache.Memoize(ctx, c.store, key("projects", l.String()), DefaultTTL, []string{TagProjects},
		func(ctx context.Context) ([]ProjectSummary, error) { return c.next.Projects(ctx, l) })
}

func (c *Cached) ProjectCaseStudy(ctx context.Context, slug string, l locale.Locale) (*ProjectCaseStudy, error) {
	return cache.Memoize(ctx, c.store, key("project-by-slug", l.String(), slug), DefaultTTL, []string{TagProjects},
		func(ctx context.Context) (*ProjectCaseStudy, error) { return c.next.ProjectCaseStudy(ctx, slug, l) })
}

func (c *Cached) ProjectSlugs(ctx context.Context) ([]string, error) {
	return cache.Memoize(ctx, c.store, "project-slugs", DefaultTTL, []string{TagProjects},
		func(ctx context.Context) ([]string, error) { return c.next.ProjectSlugs(ctx) })
}

func (c *Cached) HomePage(ctx context.Context, l locale.Locale) (*HomePage, error) {
	// The featured project is embedded, so project edits must evict the home page too.
	return cache.Memoize(ctx, c.store, key("home-page", l.String()), DefaultTTL, []string{TagHomePage, TagProjects},
		func(ctx context.Context) (*HomePage, error) { return c.next.HomePage(ctx, l) })
}

func (c *Cached) AboutPage(ctx context.Context, l locale.Locale) (*AboutPage, error) {
	return cache.Memoize(ctx, c.store, key("about-page", l.String()), DefaultTTL, []string{TagAboutPage},
		func(ctx context.Context) (*AboutPage, error) { return c.next.AboutPage(ctx, l) })
}

func (c *Cached) PageBySlug(ctx context.Context, slug string, l locale.Locale) (*Page, error) {
	return cache.Memoize(ctx, c.store, key("page-by-slug", l.String(), slug), DefaultTTL, []string{TagPages},
		func(ctx context.Context) (*Page, error) { return c.next.PageBySlug(ctx, slug, l) })
}

func (c *Cached) Posts(ctx context.Context, l locale.Locale) ([]Post, error) {
	return cache.Memoize(ctx, c.store, key("posts", l.String()), PostsTTL, []string{TagPosts},
		func(ctx context.Context) ([]Post, error) { return c.next.Posts(ctx, l) })
}

func (c *Cached) PostBySlug(ctx context.Context, slug string, l locale.Locale) (*Post, error) {
	return cache.Memoize(ctx, c.store, key("post-by-slug", l.String(), slug), PostsTTL, []string{TagPosts},
		func(ctx context.Context) (*Post, error) { return c.next.PostBySlug(ctx, slug, l) })
}

func (c *Cached) PostSlugs(ctx context.Context) ([]string, error) {
	return cache.Memoize(ctx, c.store, "post-slugs", PostsTTL, []string{TagPosts},
		func(ctx context.Context) ([]string, error) { return c.next.PostSlugs(ctx) })
}
