package main

import (
	"bytes"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/locale"
	mw "bitpoet.dev/bitpoet-web/internal/middleware"
	"bitpoet.dev/bitpoet-web/internal/og"
	"bitpoet.dev/bitpoet-web/internal/platform/observability"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
	"bitpoet.dev/bitpoet-web/internal/seo"
)

const requestTimeout = 30 * time.Second

func (a *app) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	// RealIP trusts X-Forwarded-For; deploy behind a proxy that overwrites it.
	r.Use(chimw.RealIP)
	r.Use(observability.InjectLoggerMiddleware(a.logger))
	r.Use(observability.TraceMiddleware())
	r.Use(observability.RequestLoggerMiddleware())
	r.Use(observability.RecoveryMiddleware(a.logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(requestTimeout))
	r.NotFound(a.notFound)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, "ok")
	})
	r.Method(http.MethodGet, "/readyz", a.status.Handler())
	r.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
	r.Handle("/assets/*", mw.AssetsWithCache(a.assetsDir(), "/assets", a.cfg.Server.Dev, a.logger))
	r.Get("/sitemap.xml", a.sitemap)
	r.Get("/robots.txt", a.robots)

	r.Route("/api", func(r chi.Router) {
		r.Handle("/revalidate", a.revalidate)
		r.Handle("/contact", a.contact)
		r.Method(http.MethodGet, "/og", og.Handler())
	})

	r.Method(http.MethodGet, "/", mw.RootRedirect())
	legacy := mw.LegacyRedirect()
	r.Handle("/blog/{slug}", legacy)
	r.Handle("/contact", legacy)

	r.Route("/{"+mw.LocaleParam+"}", func(r chi.Router) {
		r.Use(mw.Locale(http.HandlerFunc(a.notFound)))
		r.Use(cache.PageCache(a.store, a.cfg.Server.PageCacheTTL))
		r.Get("/", a.home)
		r.Get("/about", a.about)
		r.Get("/services", a.services)
		r.Get("/projects", a.projects)
		r.Get("/projects/{slug}", a.project)
		r.Get("/blog", a.blog)
		r.Get("/blog/{slug}", a.post)
		r.Get("/contact", a.contactPage)
		r.Get("/{slug}", a.page)
	})
	return r
}

func (a *app) home(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.views.render(w, r, http.StatusOK, "home", a.loader.Home(ctx, requestctx.Locale(ctx)))
}

func (a *app) about(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.views.render(w, r, http.StatusOK, "about", a.loader.About(ctx, requestctx.Locale(ctx)))
}

func (a *app) services(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.views.render(w, r, http.StatusOK, "services", a.loader.Services(ctx, requestctx.Locale(ctx)))
}

func (a *app) projects(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.views.render(w, r, http.StatusOK, "projects", a.loader.Projects(ctx, requestctx.Locale(ctx)))
}

func (a *app) blog(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.views.render(w, r, http.StatusOK, "blog", a.loader.Blog(ctx, requestctx.Locale(ctx)))
}

func (a *app) contactPage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	a.views.render(w, r, http.StatusOK, "contact", a.loader.Contact(ctx, requestctx.Locale(ctx)))
}

func (a *app) project(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug, ok := slugParam(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	data, found, err := a.loader.Project(ctx, requestctx.Locale(ctx), slug)
	a.detail(w, r, "project", data, found, err)
}

func (a *app) post(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug, ok := slugParam(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	data, found, err := a.loader.Post(ctx, requestctx.Locale(ctx), slug)
	a.detail(w, r, "post", data, found, err)
}

func (a *app) page(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	slug, ok := slugParam(r)
	if !ok {
		a.notFound(w, r)
		return
	}
	data, found, err := a.loader.Page(ctx, requestctx.Locale(ctx), slug)
	a.detail(w, r, "page", data, found, err)
}

// detail renders a slug-addressed view, the 404 page when nothing matched, or the
// unavailable page when the lookup failed.
func (a *app) detail(w http.ResponseWriter, r *http.Request, view string, data any, found bool, err error) {
	ctx := r.Context()
	switch {
	case err != nil:
		a.views.render(w, r, http.StatusServiceUnavailable, "unavailable", a.loader.Unavailable(ctx, requestctx.Locale(ctx), r.URL.Path))
	case !found:
		a.notFound(w, r)
	default:
		a.views.render(w, r, http.StatusOK, view, data)
	}
}

func (a *app) notFound(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	l := notFoundLocale(r)
	a.views.render(w, r, http.StatusNotFound, "notfound", a.loader.NotFound(ctx, l, r.URL.Path))
}

// notFoundLocale prefers a valid locale prefix, then Accept-Language.
func notFoundLocale(r *http.Request) locale.Locale {
	first := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/"), "/", 2)[0]
	if locale.IsLocale(first) {
		return locale.Locale(first)
	}
	return locale.Match(r.Header.Get("Accept-Language"))
}

func slugParam(r *http.Request) (string, bool) {
	slug := chi.URLParam(r, "slug")
	return slug, cms.ValidSlug(slug)
}

func (a *app) sitemap(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entries := seo.Sitemap(ctx, seo.SiteURL(a.cfg.Site.URL), a.content, a.now(), requestctx.Logger(ctx))
	var buf bytes.Buffer
	if err := seo.WriteSitemap(&buf, entries); err != nil {
		requestctx.Logger(ctx).Error("sitemap encode failed", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	_, _ = buf.WriteTo(w)
}

func (a *app) robots(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = io.WriteString(w, seo.Robots(seo.SiteURL(a.cfg.Site.URL)))
}
