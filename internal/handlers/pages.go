package handlers

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/format"
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/seo"
)

const homePostCount = 3

// ProjectCard is a project in a listing. Href is empty for private or slugless projects.
type ProjectCard struct {
	Title      string
	Summary    string
	Href       string
	Thumbnail  *cms.Image
	Private    bool
	Categories []string
}

// PostCard is a post in a listing.
type PostCard struct {
	Title   string
	Href    string
	Excerpt string
	Date    string
	ISODate string
	Cover   *cms.Image
	Author  string
}

type HomeData struct {
	Layout
	Hero      cms.HomeHero
	Craft     *cms.Craft
	Manifesto *cms.Manifesto
	Featured  *cms.FeaturedProject
	FooterCTA *cms.FooterCTA
	Services  []cms.Service
	Projects  []ProjectCard
	Posts     []PostCard
	// Unavailable is set when some section could not be loaded.
	Unavailable bool
}

type ServicesData struct {
	Layout
	Services []cms.Service
	Failed   bool
}

type ProjectsData struct {
	Layout
	Projects []ProjectCard
	Failed   bool
}

type ProjectData struct {
	Layout
	Project  cms.ProjectCaseStudy
	BackHref string
}

type BlogData struct {
	Layout
	Posts  []PostCard
	Failed bool
}

type PostData struct {
	Layout
	Post     cms.Post
	Date     string
	ISODate  string
	BackHref string
}

type AboutData struct {
	Layout
	Hero     cms.Hero
	Sections []cms.AboutSection
	Profile  *cms.Image
	Failed   bool
}

type ContactData struct {
	Layout
	Email string
}

type PageData struct {
	Layout
	Page cms.Page
}

type NotFoundData struct {
	Layout
}

// Home loads every home section concurrently. Missing CMS copy falls back to the
// UI catalog so the page always renders a hero.
func (ld *Loader) Home(ctx context.Context, l locale.Locale) HomeData {
	var (
		g        errgroup.Group
		site     Result[cms.SiteSettings]
		home     Result[*cms.HomePage]
		services Result[[]cms.Service]
		projects Result[[]cms.ProjectSummary]
		posts    Result[[]cms.Post]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &home, func(ctx context.Context) (*cms.HomePage, error) { return ld.Content.HomePage(ctx, l) })
	load(ctx, &g, &services, func(ctx context.Context) ([]cms.Service, error) { return ld.Content.Services(ctx, l) })
	load(ctx, &g, &projects, func(ctx context.Context) ([]cms.ProjectSummary, error) { return ld.Content.Projects(ctx, l) })
	load(ctx, &g, &posts, func(ctx context.Context) ([]cms.Post, error) { return ld.Content.Posts(ctx, l) })
	_ = g.Wait()

	data := HomeData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String(), site: site,
			input: seo.Input{Title: ld.t(l, "meta.home.title"), Description: ld.t(l, "meta.home.description")},
		}),
	}

	if ld.failed(ctx, "home-page", home.Err) || home.Value == nil {
		data.Hero = ld.catalogHero(l)
	} else {
		h := home.Value
		data.Hero = h.Hero
		data.Hero.PrimaryCTA.Href = href(l, h.Hero.PrimaryCTA.Href)
		if h.Hero.SecondaryCTA != nil {
			cta := *h.Hero.SecondaryCTA
			cta.Href = href(l, cta.Href)
			data.Hero.SecondaryCTA = &cta
		}
		if h.Craft.Title != "" || h.Craft.Subtitle != "" {
			craft := h.Craft
			data.Craft = &craft
		}
		if len(h.Manifesto.Body) > 0 {
			m := h.Manifesto
			data.Manifesto = &m
		}
		if h.FeaturedProject != nil {
			fp := *h.FeaturedProject
			fp.Href = href(l, fp.Href)
			data.Featured = &fp
		}
		if h.FooterCTA.Title != "" || len(h.FooterCTA.Body) > 0 {
			f := h.FooterCTA
			f.Button.Href = href(l, f.Button.Href)
			data.FooterCTA = &f
		}
	}

	data.Services = services.Value
	data.Projects = projectCards(l, projects.Value)
	cards := postCards(l, posts.Value)
	if len(cards) > homePostCount {
		cards = cards[:homePostCount]
	}
	data.Posts = cards

	servicesFailed := ld.failed(ctx, "services", services.Err)
	projectsFailed := ld.failed(ctx, "projects", projects.Err)
	postsFailed := ld.failed(ctx, "posts", posts.Err)
	data.Unavailable = home.Err != nil || servicesFailed || projectsFailed || postsFailed
	data.Degraded = data.Degraded || data.Unavailable
	return data
}

func (ld *Loader) catalogHero(l locale.Locale) cms.HomeHero {
	return cms.HomeHero{
		Eyebrow:      ld.t(l, "hero.eyebrow"),
		Title:        ld.t(l, "hero.title"),
		Subtitle:     ld.t(l, "hero.subtitle"),
		PrimaryCTA:   cms.CTA{Label: ld.t(l, "hero.primaryCta"), Href: href(l, "/contact")},
		SecondaryCTA: &cms.CTA{Label: ld.t(l, "hero.secondaryCta"), Href: href(l, "/projects")},
	}
}

// Services loads the services listing.
func (ld *Loader) Services(ctx context.Context, l locale.Locale) ServicesData {
	var (
		g        errgroup.Group
		site     Result[cms.SiteSettings]
		services Result[[]cms.Service]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &services, func(ctx context.Context) ([]cms.Service, error) { return ld.Content.Services(ctx, l) })
	_ = g.Wait()

	data := ServicesData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String() + "/services", site: site,
			input: seo.Input{Path: "services", Title: ld.t(l, "meta.services.title"), Description: ld.t(l, "meta.services.description")},
		}),
		Services: services.Value,
		Failed:   ld.failed(ctx, "services", services.Err),
	}
	data.Degraded = data.Degraded || data.Failed
	return data
}

// Projects loads the project listing.
func (ld *Loader) Projects(ctx context.Context, l locale.Locale) ProjectsData {
	var (
		g        errgroup.Group
		site     Result[cms.SiteSettings]
		projects Result[[]cms.ProjectSummary]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &projects, func(ctx context.Context) ([]cms.ProjectSummary, error) { return ld.Content.Projects(ctx, l) })
	_ = g.Wait()

	data := ProjectsData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String() + "/projects", site: site,
			input: seo.Input{Path: "projects", Title: ld.t(l, "meta.projects.title"), Description: ld.t(l, "meta.projects.description")},
		}),
		Projects: projectCards(l, projects.Value),
		Failed:   ld.failed(ctx, "projects", projects.Err),
	}
	data.Degraded = data.Degraded || data.Failed
	return data
}

// Project loads one case study. It returns false when the project does not exist.
// A CMS failure is returned so the caller can render the error page.
func (ld *Loader) Project(ctx context.Context, l locale.Locale, slug string) (ProjectData, bool, error) {
	var (
		g       errgroup.Group
		site    Result[cms.SiteSettings]
		project Result[*cms.ProjectCaseStudy]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &project, func(ctx context.Context) (*cms.ProjectCaseStudy, error) {
		return ld.Content.ProjectCaseStudy(ctx, slug, l)
	})
	_ = g.Wait()

	if ld.failed(ctx, "project", project.Err) {
		return ProjectData{}, true, project.Err
	}
	if project.Value == nil {
		return ProjectData{}, false, nil
	}
	p := *project.Value
	in := seo.Input{
		Path:        "projects/" + p.Slug,
		Title:       p.Title,
		Description: firstNonEmpty(p.SEODescription, p.Overview, p.Tagline),
		Type:        "article",
	}
	if p.HeroImage != nil {
		in.OGImageURL = p.HeroImage.URL
	}
	return ProjectData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String() + "/projects/" + p.Slug, site: site, input: in, crumb: p.Title,
		}),
		Project:  p,
		BackHref: href(l, "/projects"),
	}, true, nil
}

// Blog loads the post index. A failure keeps the header and flags the inline error.
func (ld *Loader) Blog(ctx context.Context, l locale.Locale) BlogData {
	var (
		g     errgroup.Group
		site  Result[cms.SiteSettings]
		posts Result[[]cms.Post]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &posts, func(ctx context.Context) ([]cms.Post, error) { return ld.Content.Posts(ctx, l) })
	_ = g.Wait()

	data := BlogData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String() + "/blog", site: site,
			input: seo.Input{Path: "blog", Title: ld.t(l, "meta.blog.title"), Description: ld.t(l, "meta.blog.description")},
		}),
		Posts:  postCards(l, posts.Value),
		Failed: ld.failed(ctx, "posts", posts.Err),
	}
	data.Degraded = data.Degraded || data.Failed
	return data
}

// Post loads one article. It returns false when the post does not exist.
func (ld *Loader) Post(ctx context.Context, l locale.Locale, slug string) (PostData, bool, error) {
	var (
		g    errgroup.Group
		site Result[cms.SiteSettings]
		post Result[*cms.Post]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &post, func(ctx context.Context) (*cms.Post, error) { return ld.Content.PostBySlug(ctx, slug, l) })
	_ = g.Wait()

	if ld.failed(ctx, "post", post.Err) {
		return PostData{}, true, post.Err
	}
	if post.Value == nil {
		return PostData{}, false, nil
	}
	p := *post.Value
	path := "/" + l.String() + "/blog/" + p.Slug
	in := seo.Input{
		Path:        "blog/" + p.Slug,
		Title:       p.Title,
		Description: firstNonEmpty(p.SEODescription, p.Excerpt),
		Type:        "article",
	}
	if p.CoverImage != nil {
		in.OGImageURL = p.CoverImage.URL
	}
	return PostData{
		Layout: ld.layout(ctx, page{
			l: l, path: path, site: site, input: in, crumb: p.Title,
			ld: []any{seo.Article(p, ld.base()+path)},
		}),
		Post:     p,
		Date:     format.Date(p.PublishedAt, l, format.Long),
		ISODate:  format.ISODate(p.PublishedAt),
		BackHref: href(l, "/blog"),
	}, true, nil
}

// About loads the about page. An absent document falls back to catalog copy.
func (ld *Loader) About(ctx context.Context, l locale.Locale) AboutData {
	var (
		g     errgroup.Group
		site  Result[cms.SiteSettings]
		about Result[*cms.AboutPage]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &about, func(ctx context.Context) (*cms.AboutPage, error) { return ld.Content.AboutPage(ctx, l) })
	_ = g.Wait()

	data := AboutData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String() + "/about", site: site,
			input: seo.Input{Path: "about", Title: ld.t(l, "meta.about.title"), Description: ld.t(l, "meta.about.description")},
		}),
		Hero:   cms.Hero{Eyebrow: ld.t(l, "about.eyebrow"), Title: ld.t(l, "about.title")},
		Failed: ld.failed(ctx, "about-page", about.Err),
	}
	if a := about.Value; a != nil {
		if a.Hero.Title != "" {
			data.Hero = a.Hero
		}
		data.Sections = a.Sections
		data.Profile = a.ProfileImage
	}
	data.Degraded = data.Degraded || data.Failed
	return data
}

// Contact builds the contact page; only site settings come from the CMS.
func (ld *Loader) Contact(ctx context.Context, l locale.Locale) ContactData {
	site, err := ld.Content.SiteSettings(ctx, l)
	layout := ld.layout(ctx, page{
		l: l, path: "/" + l.String() + "/contact", site: Result[cms.SiteSettings]{Value: site, Err: err},
		input: seo.Input{Path: "contact", Title: ld.t(l, "meta.contact.title"), Description: ld.t(l, "meta.contact.description")},
	})
	return ContactData{Layout: layout, Email: layout.Site.ContactEmail}
}

// Page loads a generic CMS page by slug. It returns false when nothing matches.
func (ld *Loader) Page(ctx context.Context, l locale.Locale, slug string) (PageData, bool, error) {
	var (
		g    errgroup.Group
		site Result[cms.SiteSettings]
		pg   Result[*cms.Page]
	)
	load(ctx, &g, &site, func(ctx context.Context) (cms.SiteSettings, error) { return ld.Content.SiteSettings(ctx, l) })
	load(ctx, &g, &pg, func(ctx context.Context) (*cms.Page, error) { return ld.Content.PageBySlug(ctx, slug, l) })
	_ = g.Wait()

	if ld.failed(ctx, "page", pg.Err) {
		return PageData{}, true, pg.Err
	}
	if pg.Value == nil {
		return PageData{}, false, nil
	}
	p := *pg.Value
	title := firstNonEmpty(p.Title, p.Hero.Title)
	return PageData{
		Layout: ld.layout(ctx, page{
			l: l, path: "/" + l.String() + "/" + p.Slug, site: site, crumb: title,
			input: seo.Input{Path: p.Slug, Title: title, Description: firstNonEmpty(p.SEODescription, p.Hero.Subtitle)},
		}),
		Page: p,
	}, true, nil
}

// NotFound builds the 404 page for l at path.
func (ld *Loader) NotFound(ctx context.Context, l locale.Locale, path string) NotFoundData {
	site, err := ld.Content.SiteSettings(ctx, l)
	layout := ld.layout(ctx, page{
		l: l, path: path, site: Result[cms.SiteSettings]{Value: site, Err: err},
		input: seo.Input{Title: ld.t(l, "meta.notFound.title")},
	})
	layout.Breadcrumbs = nil
	layout.JSONLD = layout.JSONLD[:1]
	return NotFoundData{Layout: layout}
}

func projectCards(l locale.Locale, in []cms.ProjectSummary) []ProjectCard {
	out := make([]ProjectCard, 0, len(in))
	for _, p := range in {
		card := ProjectCard{
			Title:      p.Title,
			Summary:    p.Summary,
			Thumbnail:  p.Thumbnail,
			Private:    p.Private,
			Categories: p.Categories,
		}
		if p.Slug != "" && !p.Private {
			card.Href = href(l, "/projects/"+p.Slug)
		}
		out = append(out, card)
	}
	return out
}

func postCards(l locale.Locale, in []cms.Post) []PostCard {
	out := make([]PostCard, 0, len(in))
	for _, p := range in {
		card := PostCard{
			Title:   p.Title,
			Href:    href(l, "/blog/"+p.Slug),
			Excerpt: p.Excerpt,
			Date:    format.Date(p.PublishedAt, l, format.Medium),
			ISODate: format.ISODate(p.PublishedAt),
			Cover:   p.CoverImage,
		}
		if p.Author != nil {
			card.Author = p.Author.Name
		}
		out = append(out, card)
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}

// Unavailable builds the error page shown when a detail lookup failed.
func (ld *Loader) Unavailable(ctx context.Context, l locale.Locale, path string) NotFoundData {
	data := ld.NotFound(ctx, l, path)
	data.Meta.Title = ld.t(l, "errors.cms")
	data.Degraded = true
	return data
}
