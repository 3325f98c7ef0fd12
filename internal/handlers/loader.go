package handlers

import (
	"context"
	"errors"
	"html/template"
	"time"

	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/links"
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/nav"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
	"bitpoet.dev/bitpoet-web/internal/seo"
)

// Translator resolves UI strings. *i18n.Bundle implements it.
type Translator interface {
	T(l locale.Locale, key string) string
	Tf(l locale.Locale, key string, pairs ...string) string
}

// Layout carries what the shared base template needs on every page.
type Layout struct {
	Locale      locale.Locale
	Dir         string
	Path        string
	Meta        seo.Metadata
	Site        cms.SiteSettings
	Nav         []nav.RenderedItem
	Switcher    []nav.Alternate
	Breadcrumbs []nav.Crumb
	JSONLD      []template.JS
	Year        int
	// Degraded is set when any content call failed; such pages are not cached.
	Degraded bool
}

// Loader assembles page view models from CMS content and UI catalogs.
type Loader struct {
	Content cms.Content
	SEO     seo.Builder
	Text    Translator
	Logger  *zap.Logger
	Now     func() time.Time
}

// page holds what every page build collects before shaping.
type page struct {
	l     locale.Locale
	path  string
	site  Result[cms.SiteSettings]
	input seo.Input
	crumb string
	ld    []any
}

func (ld *Loader) logger(ctx context.Context) *zap.Logger {
	if logger := requestctx.Logger(ctx); logger != requestctx.NoopLogger() {
		return logger
	}
	if ld.Logger != nil {
		return ld.Logger
	}
	return zap.NewNop()
}

func (ld *Loader) now() time.Time {
	if ld.Now != nil {
		return ld.Now()
	}
	return time.Now()
}

func (ld *Loader) t(l locale.Locale, key string) string {
	if ld.Text == nil {
		return key
	}
	return ld.Text.T(l, key)
}

func (ld *Loader) base() string {
	return seo.SiteURL(ld.SEO.BaseURL)
}

// href localizes an internal link for l.
func href(l locale.Locale, raw string) string {
	return links.Localize(raw, l.String())
}

// failed logs err and reports whether a content call failed.
func (ld *Loader) failed(ctx context.Context, what string, err error) bool {
	if err == nil {
		return false
	}
	fields := []zap.Field{zap.String("content", what), zap.Error(err)}
	if errors.Is(err, context.Canceled) {
		ld.logger(ctx).Debug("page content canceled", fields...)
	} else {
		ld.logger(ctx).Error("page content failed", fields...)
	}
	return true
}

func (ld *Loader) layout(ctx context.Context, p page) Layout {
	site := p.site.Value
	degraded := ld.failed(ctx, "site-settings", p.site.Err)
	if degraded {
		site = cms.SiteSettings{Title: cms.DefaultSiteTitle, Tagline: cms.DefaultSiteTagline}
	}

	p.input.Locale = p.l
	meta := ld.SEO.Build(ctx, p.input)
	base := ld.base()

	jsonld := []template.JS{seo.JSON(seo.Organization(p.l, site, base))}
	crumbs := nav.Breadcrumbs(p.l, p.path, p.crumb)
	if len(crumbs) > 1 {
		items := make([]seo.BreadcrumbItem, 0, len(crumbs))
		for _, c := range crumbs {
			name := c.Label
			if c.LabelKey != "" {
				name = ld.t(p.l, c.LabelKey)
			}
			items = append(items, seo.BreadcrumbItem{Name: name, Item: base + c.Href})
		}
		jsonld = append(jsonld, seo.JSON(seo.BreadcrumbList(items)))
	}
	for _, v := range p.ld {
		jsonld = append(jsonld, seo.JSON(v))
	}

	return Layout{
		Locale:      p.l,
		Dir:         p.l.Dir(),
		Path:        p.path,
		Meta:        meta,
		Site:        site,
		Nav:         nav.Build(p.l, p.path),
		Switcher:    nav.Switcher(p.l, p.path),
		Breadcrumbs: crumbs,
		JSONLD:      jsonld,
		Year:        ld.now().Year(),
		Degraded:    degraded,
	}
}

// Cacheable reports whether the rendered page may be stored by the page cache.
func (l Layout) Cacheable() bool { return !l.Degraded }
