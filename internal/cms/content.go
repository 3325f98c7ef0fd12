package cms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"bitpoet.dev/bitpoet-web/internal/links"
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/portabletext"
	"bitpoet.dev/bitpoet-web/internal/sanity"
)

// Fallback copy used when the CMS leaves a field empty in every locale.
const (
	DefaultSiteTitle       = "BitPoet"
	DefaultSiteTagline     = "Software with a Soul"
	DefaultPrimaryCTA      = "Start a Conversation"
	DefaultCraftBadge      = "Signature Craft"
	DefaultManifestoTitle  = "Against the Soulless Web."
	DefaultFeaturedCTA     = "Read the Full Case Study"
	DefaultFooterCTAButton = "Start a Conversation"
)

// Querier runs a GROQ query and decodes the result into out.
type Querier interface {
	Query(ctx context.Context, query string, params map[string]any, out any) error
}

// ImageResolver turns an asset reference into a CDN URL. *sanity.Client implements it.
type ImageResolver interface {
	ImageURL(ref string, width int) string
}

// Content is the read side of the CMS used by pages, the sitemap and metadata.
// Slug-addressed lookups return nil with a nil error when nothing matches.
type Content interface {
	SiteSettings(ctx context.Context, l locale.Locale) (SiteSettings, error)
	Services(ctx context.Context, l locale.Locale) ([]Service, error)
	Projects(ctx context.Context, l locale.Locale) ([]ProjectSummary, error)
	ProjectCaseStudy(ctx context.Context, slug string, l locale.Locale) (*ProjectCaseStudy, error)
	ProjectSlugs(ctx context.Context) ([]string, error)
	HomePage(ctx context.Context, l locale.Locale) (*HomePage, error)
	AboutPage(ctx context.Context, l locale.Locale) (*AboutPage, error)
	PageBySlug(ctx context.Context, slug string, l locale.Locale) (*Page, error)
	Posts(ctx context.Context, l locale.Locale) ([]Post, error)
	PostBySlug(ctx context.Context, slug string, l locale.Locale) (*Post, error)
	PostSlugs(ctx context.Context) ([]string, error)
}

// Image is a resolved CMS image.
type Image struct {
	Ref string
	URL string
	Alt string
}

type SocialLink struct {
	Key   string
	Label string
	URL   string
}

type SiteSettings struct {
	ID           string
	Title        string
	Tagline      string
	FooterNote   string
	ContactEmail string
	SocialLinks  []SocialLink
}

type Service struct {
	ID      string
	Title   string
	Summary string
}

type ProjectSummary struct {
	ID         string
	Title      string
	Summary    string
	Slug       string
	Thumbnail  *Image
	Private    bool
	Categories []string
}

type CaseStudySections struct {
	Spark            []portabletext.Block
	PoeticChoice     []portabletext.Block
	ResultBeyondCode []portabletext.Block
}

type ProjectCaseStudy struct {
	ID             string
	Title          string
	Tagline        string
	Slug           string
	HeroImage      *Image
	Overview       string
	Sections       CaseStudySections
	Technologies   []string
	Testimonial    *string
	SEODescription string
}

type CTA struct {
	Label string
	Href  string
}

type HomeHero struct {
	Eyebrow         string
	Title           string
	Subtitle        string
	PrimaryCTA      CTA
	SecondaryCTA    *CTA
	PhilosophyTitle string
	PhilosophyCopy  string
}

type Craft struct {
	Eyebrow    string
	Title      string
	Subtitle   string
	BadgeLabel string
}

type Manifesto struct {
	Title string
	Body  []portabletext.Block
}

type FeaturedProject struct {
	Project  ProjectSummary
	Tagline  string
	Image    *Image
	CTALabel string
	Href     string
}

type FooterCTA struct {
	Title  string
	Body   []portabletext.Block
	Button CTA
}

type HomePage struct {
	ID              string
	Hero            HomeHero
	Craft           Craft
	Manifesto       Manifesto
	FeaturedProject *FeaturedProject
	FooterCTA       FooterCTA
}

type Hero struct {
	Eyebrow  string
	Title    string
	Subtitle string
}

type AboutSection struct {
	Key   string
	Title string
	Body  []portabletext.Block
}

type AboutPage struct {
	ID           string
	Hero         Hero
	Sections     []AboutSection
	ProfileImage *Image
}

type PageSection struct {
	Key     string
	Heading string
	Body    []portabletext.Block
}

type Page struct {
	ID             string
	Title          string
	Slug           string
	Hero           Hero
	Sections       []PageSection
	SEODescription string
}

type Author struct {
	ID     string
	Name   string
	Role   string
	Avatar *Image
}

type Post struct {
	ID             string
	Title          string
	Slug           string
	Excerpt        string
	Body           []portabletext.Block
	CoverImage     *Image
	PublishedAt    time.Time
	SEODescription string
	Author         *Author
}

// Client shapes raw CMS documents into locale-resolved view models.
type Client struct {
	q      Querier
	images ImageResolver
}

// NewClient wraps q. When q also resolves image URLs (as *sanity.Client does) images get CDN URLs.
func NewClient(q Querier) *Client {
	c := &Client{q: q}
	if r, ok := q.(ImageResolver); ok {
		c.images = r
	}
	return c
}

func (c *Client) query(ctx context.Context, name, groq string, params map[string]any, out any) error {
	if c == nil || c.q == nil {
		return fmt.Errorf("cms: %s: %w", name, sanity.ErrNotConfigured)
	}
	if err := c.q.Query(ctx, groq, params, out); err != nil {
		return fmt.Errorf("cms: %s: %w", name, err)
	}
	return nil
}

func (c *Client) SiteSettings(ctx context.Context, l locale.Locale) (SiteSettings, error) {
	var raw *rawSiteSettings
	if err := c.query(ctx, "site settings", siteSettingsQuery, nil, &raw); err != nil {
		return SiteSettings{}, err
	}
	if raw == nil {
		raw = &rawSiteSettings{}
	}
	out := SiteSettings{
		ID:           raw.ID,
		Title:        locale.String(raw.Title, l, DefaultSiteTitle),
		Tagline:      locale.String(raw.Tagline, l, DefaultSiteTagline),
		FooterNote:   locale.String(raw.FooterNote, l, ""),
		ContactEmail: strings.TrimSpace(raw.ContactEmail),
		SocialLinks:  make([]SocialLink, 0, len(raw.SocialLinks)),
	}
	for _, s := range raw.SocialLinks {
		url := links.Normalize(s.URL, "")
		if url == "" {
			continue
		}
		out.SocialLinks = append(out.SocialLinks, SocialLink{
			Key:   s.Key,
			Label: strings.TrimSpace(s.Label),
			URL:   url,
		})
	}
	return out, nil
}

func (c *Client) Services(ctx context.Context, l locale.Locale) ([]Service, error) {
	var raw []rawService
	if err := c.query(ctx, "services", servicesQuery, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Service, 0, len(raw))
	for _, s := range raw {
		out = append(out, Service{
			ID:      s.ID,
			Title:   locale.String(s.Title, l, ""),
			Summary: locale.String(s.Summary, l, ""),
		})
	}
	return out, nil
}

func (c *Client) Projects(ctx context.Context, l locale.Locale) ([]ProjectSummary, error) {
	var raw []rawProject
	if err := c.query(ctx, "projects", projectsQuery, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]ProjectSummary, 0, len(raw))
	for i := range raw {
		out = append(out, c.projectSummary(&raw[i], l))
	}
	return out, nil
}

func (c *Client) projectSummary(p *rawProject, l locale.Locale) ProjectSummary {
	return ProjectSummary{
		ID:         p.ID,
		Title:      locale.String(p.Title, l, ""),
		Summary:    locale.String(p.Summary, l, ""),
		Slug:       NormalizeSlug(p.Slug.value()),
		Thumbnail:  c.image(p.Thumbnail, l),
		Private:    p.Private,
		Categories: nonNil(p.Categories),
	}
}

func (c *Client) ProjectCaseStudy(ctx context.Context, slug string, l locale.Locale) (*ProjectCaseStudy, error) {
	var raw *rawProject
	params := map[string]any{"slug": slug}
	if err := c.query(ctx, "project case study", projectBySlugQuery, params, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	resolved := NormalizeSlug(raw.Slug.value())
	if resolved == "" {
		return nil, nil
	}
	out := &ProjectCaseStudy{
		ID:        raw.ID,
		Title:     locale.String(raw.Title, l, ""),
		Tagline:   locale.String(raw.Tagline, l, ""),
		Slug:      resolved,
		HeroImage: c.image(firstImage(raw.HeroImage, raw.Thumbnail), l),
		Overview:  locale.String(raw.Summary, l, ""),
		Sections: CaseStudySections{
			Spark:            locale.Slice(raw.TheSpark, l),
			PoeticChoice:     locale.Slice(raw.ThePoeticChoice, l),
			ResultBeyondCode: locale.Slice(raw.TheResultBeyondCode, l),
		},
		Technologies:   nonNil(raw.Technologies),
		SEODescription: locale.String(raw.SEO.description(), l, ""),
	}
	if t := locale.String(raw.Testimonial, l, ""); t != "" {
		out.Testimonial = &t
	}
	return out, nil
}

func (c *Client) ProjectSlugs(ctx context.Context) ([]string, error) {
	return c.slugs(ctx, "project slugs", projectSlugsQuery)
}

func (c *Client) HomePage(ctx context.Context, l locale.Locale) (*HomePage, error) {
	var raw *rawHomePage
	if err := c.query(ctx, "home page", homePageQuery, nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	out := &HomePage{
		ID: raw.ID,
		Hero: HomeHero{
			Eyebrow:  locale.String(raw.HeroEyebrow, l, ""),
			Title:    locale.String(raw.HeroTitle, l, ""),
			Subtitle: locale.String(raw.HeroSubtitle, l, ""),
			PrimaryCTA: CTA{
				Label: locale.String(raw.HeroPrimaryCtaLabel, l, DefaultPrimaryCTA),
				Href:  links.Normalize(raw.HeroPrimaryCtaLink, "/contact"),
			},
			PhilosophyTitle: locale.String(raw.HeroPhilosophyTitle, l, ""),
			PhilosophyCopy:  locale.String(raw.HeroPhilosophyCopy, l, ""),
		},
		Craft: Craft{
			Eyebrow:    locale.String(raw.CraftEyebrow, l, ""),
			Title:      locale.String(raw.CraftTitle, l, ""),
			Subtitle:   locale.String(raw.CraftSubtitle, l, ""),
			BadgeLabel: locale.String(raw.CraftBadgeLabel, l, DefaultCraftBadge),
		},
		Manifesto: Manifesto{
			Title: locale.String(raw.ManifestoTitle, l, DefaultManifestoTitle),
			Body:  locale.Slice(raw.ManifestoBody, l),
		},
		FooterCTA: FooterCTA{
			Title: locale.String(raw.FooterCtaTitle, l, ""),
			Body:  locale.Slice(raw.FooterCtaBody, l),
			Button: CTA{
				Label: locale.String(raw.FooterCtaButtonLabel, l, DefaultFooterCTAButton),
				Href:  links.Normalize(raw.FooterCtaButtonLink, "/contact"),
			},
		},
	}
	if label := locale.String(raw.HeroSecondaryCtaLabel, l, ""); label != "" {
		out.Hero.SecondaryCTA = &CTA{
			Label: label,
			Href:  links.Normalize(raw.HeroSecondaryCtaLink, "/projects"),
		}
	}
	if fp := raw.FeaturedProject; fp != nil {
		summary := c.projectSummary(fp, l)
		href := "/projects"
		if summary.Slug != "" {
			href = "/projects/" + summary.Slug
		}
		out.FeaturedProject = &FeaturedProject{
			Project:  summary,
			Tagline:  locale.String(fp.Tagline, l, ""),
			Image:    c.image(firstImage(fp.HeroImage, fp.Thumbnail), l),
			CTALabel: locale.String(raw.FeaturedProjectCtaLabel, l, DefaultFeaturedCTA),
			Href:     href,
		}
	}
	return out, nil
}

func (c *Client) AboutPage(ctx context.Context, l locale.Locale) (*AboutPage, error) {
	var raw *rawAboutPage
	if err := c.query(ctx, "about page", aboutPageQuery, nil, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	out := &AboutPage{
		ID: raw.ID,
		Hero: Hero{
			Eyebrow:  locale.String(raw.HeroEyebrow, l, ""),
			Title:    locale.String(raw.HeroTitle, l, ""),
			Subtitle: locale.String(raw.HeroSubtitle, l, ""),
		},
		Sections:     make([]AboutSection, 0, len(raw.Sections)),
		ProfileImage: c.image(raw.ProfileImage, l),
	}
	for _, s := range raw.Sections {
		out.Sections = append(out.Sections, AboutSection{
			Key:   s.Key,
			Title: locale.String(s.Title, l, ""),
			Body:  locale.Slice(s.Body, l),
		})
	}
	return out, nil
}

func (c *Client) PageBySlug(ctx context.Context, slug string, l locale.Locale) (*Page, error) {
	var raw *rawPage
	params := map[string]any{"slug": slug}
	if err := c.query(ctx, "page", pageBySlugQuery, params, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	resolved := NormalizeSlug(raw.Slug.value())
	if resolved == "" {
		return nil, nil
	}
	out := &Page{
		ID:    raw.ID,
		Title: locale.String(raw.Title, l, ""),
		Slug:  resolved,
		Hero: Hero{
			Eyebrow:  locale.String(raw.HeroEyebrow, l, ""),
			Title:    locale.String(raw.HeroTitle, l, ""),
			Subtitle: locale.String(raw.HeroSubtitle, l, ""),
		},
		Sections:       make([]PageSection, 0, len(raw.Sections)),
		SEODescription: locale.String(raw.SEO.description(), l, ""),
	}
	for _, s := range raw.Sections {
		out.Sections = append(out.Sections, PageSection{
			Key:     s.Key,
			Heading: locale.String(s.Heading, l, ""),
			Body:    locale.Slice(s.Body, l),
		})
	}
	return out, nil
}

func (c *Client) Posts(ctx context.Context, l locale.Locale) ([]Post, error) {
	var raw []rawPost
	if err := c.query(ctx, "posts", postsQuery, nil, &raw); err != nil {
		return nil, err
	}
	out := make([]Post, 0, len(raw))
	for i := range raw {
		if p, ok := c.post(&raw[i], l); ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (c *Client) PostBySlug(ctx context.Context, slug string, l locale.Locale) (*Post, error) {
	var raw *rawPost
	params := map[string]any{"slug": slug}
	if err := c.query(ctx, "post", postBySlugQuery, params, &raw); err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	p, ok := c.post(raw, l)
	if !ok {
		return nil, nil
	}
	return &p, nil
}

func (c *Client) PostSlugs(ctx context.Context) ([]string, error) {
	return c.slugs(ctx, "post slugs", postSlugsQuery)
}

func (c *Client) post(p *rawPost, l locale.Locale) (Post, bool) {
	slug := NormalizeSlug(p.Slug.value())
	if slug == "" {
		return Post{}, false
	}
	out := Post{
		ID:             p.ID,
		Title:          locale.String(p.Title, l, ""),
		Slug:           slug,
		Excerpt:        locale.String(p.Excerpt, l, ""),
		Body:           locale.Slice(p.Body, l),
		CoverImage:     c.image(p.CoverImage, l),
		PublishedAt:    parseContentDate(p.PublishedAt),
		SEODescription: locale.String(p.SEO.description(), l, ""),
	}
	if out.Excerpt == "" {
		out.Excerpt = portabletext.Excerpt(out.Body, 180)
	}
	if a := p.Author; a != nil && strings.TrimSpace(a.Name) != "" {
		out.Author = &Author{
			ID:     a.ID,
			Name:   strings.TrimSpace(a.Name),
			Role:   strings.TrimSpace(a.Role),
			Avatar: c.image(a.Avatar, l),
		}
	}
	return out, true
}

func (c *Client) slugs(ctx context.Context, name, groq string) ([]string, error) {
	var rows []slugRow
	if err := c.query(ctx, name, groq, nil, &rows); err != nil {
		return nil, err
	}
	out := make([]string, 0, len(rows))
	seen := make(map[string]struct{}, len(rows))
	for _, r := range rows {
		s := NormalizeSlug(r.Slug)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out, nil
}

func (c *Client) image(img *rawImage, l locale.Locale) *Image {
	ref := img.ref()
	if ref == "" {
		return nil
	}
	out := &Image{Ref: ref, Alt: locale.String(img.Alt, l, "")}
	if c.images != nil {
		out.URL = c.images.ImageURL(ref, 0)
	}
	return out
}

func firstImage(images ...*rawImage) *rawImage {
	for _, img := range images {
		if img.ref() != "" {
			return img
		}
	}
	return nil
}

// IsNotConfigured reports whether err stems from a missing CMS project id.
func IsNotConfigured(err error) bool {
	return errors.Is(err, sanity.ErrNotConfigured)
}

func nonNil[E any](s []E) []E {
	if s == nil {
		return []E{}
	}
	return s
}

func parseContentDate(v string) time.Time {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}
	}
	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02",
		"2006/01/02",
		"2006-1-2",
	}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}
