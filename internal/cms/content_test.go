package cms

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/sanity"
)

// fakeQuerier answers queries from JSON fixtures keyed by the query text.
type fakeQuerier struct {
	mu       sync.Mutex
	fixtures map[string]string
	err      error
	calls    map[string]int
	params   []map[string]any
}

func newFakeQuerier(fixtures map[string]string) *fakeQuerier {
	return &fakeQuerier{fixtures: fixtures, calls: map[string]int{}}
}

func (f *fakeQuerier) Query(_ context.Context, query string, params map[string]any, out any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[query]++
	f.params = append(f.params, params)
	if f.err != nil {
		return f.err
	}
	body, ok := f.fixtures[query]
	if !ok || body == "" {
		return nil
	}
	return json.Unmarshal([]byte(body), out)
}

func (f *fakeQuerier) ImageURL(ref string, width int) string {
	return "https://img.test/" + ref
}

func (f *fakeQuerier) count(query string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[query]
}

func TestNotConfiguredFailsFast(t *testing.T) {
	ctx := context.Background()
	for name, c := range map[string]*Client{
		"nil querier":        NewClient(nil),
		"missing project id": NewClient(sanity.New(sanity.Config{})),
	} {
		t.Run(name, func(t *testing.T) {
			_, err := c.SiteSettings(ctx, locale.EN)
			require.Error(t, err)
			assert.True(t, errors.Is(err, sanity.ErrNotConfigured))
			assert.True(t, IsNotConfigured(err))

			posts, err := c.Posts(ctx, locale.FR)
			assert.Nil(t, posts)
			assert.ErrorIs(t, err, sanity.ErrNotConfigured)

			home, err := c.HomePage(ctx, locale.AR)
			assert.Nil(t, home)
			assert.ErrorIs(t, err, sanity.ErrNotConfigured)
		})
	}
}

func TestSiteSettingsFallbacksAndSocialLinks(t *testing.T) {
	q := newFakeQuerier(map[string]string{siteSettingsQuery: `{
		"_id": "siteSettings",
		"title": {"en": "BitPoet Studio", "fr": "  "},
		"contactEmail": " hello@bitpoet.dev ",
		"socialLinks": [
			{"_key": "a", "label": "GitHub", "url": "https://github.com/bitpoet"},
			{"_key": "b", "label": "Blog", "url": "blog"},
			{"_key": "c", "label": "Empty", "url": "   "}
		]
	}`})
	got, err := NewClient(q).SiteSettings(context.Background(), locale.FR)
	require.NoError(t, err)
	assert.Equal(t, "BitPoet Studio", got.Title, "blank fr falls back to en")
	assert.Equal(t, DefaultSiteTagline, got.Tagline)
	assert.Equal(t, "hello@bitpoet.dev", got.ContactEmail)
	require.Len(t, got.SocialLinks, 2)
	assert.Equal(t, "https://github.com/bitpoet", got.SocialLinks[0].URL)
	assert.Equal(t, "/blog", got.SocialLinks[1].URL)
}

func TestSiteSettingsMissingDocument(t *testing.T) {
	got, err := NewClient(newFakeQuerier(nil)).SiteSettings(context.Background(), locale.EN)
	require.NoError(t, err)
	assert.Equal(t, DefaultSiteTitle, got.Title)
	assert.Equal(t, DefaultSiteTagline, got.Tagline)
	assert.NotNil(t, got.SocialLinks)
}

func TestPostsExcludeSlugless(t *testing.T) {
	q := newFakeQuerier(map[string]string{postsQuery: `[
		{"_id": "p1", "title": {"en": "First"}, "slug": {"current": "first"}, "publishedAt": "2025-02-01T10:00:00Z",
		 "author": {"_id": "a1", "name": "Nadia", "role": "Founder"}},
		{"_id": "p2", "title": {"en": "Broken"}},
		{"_id": "p3", "title": {"en": "Blank"}, "slug": {"current": "  "}},
		{"_id": "p4", "title": {"en": "Older", "ar": "أقدم"}, "slug": {"current": "older"}, "publishedAt": "2024-12-24"}
	]`})
	posts, err := NewClient(q).Posts(context.Background(), locale.AR)
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, "first", posts[0].Slug)
	assert.Equal(t, "First", posts[0].Title)
	assert.Equal(t, time.Date(2025, 2, 1, 10, 0, 0, 0, time.UTC), posts[0].PublishedAt)
	require.NotNil(t, posts[0].Author)
	assert.Equal(t, "Founder", posts[0].Author.Role)
	assert.Nil(t, posts[0].Author.Avatar)
	assert.Equal(t, "أقدم", posts[1].Title)
	assert.Nil(t, posts[1].Author)
}

func TestPostBySlug(t *testing.T) {
	q := newFakeQuerier(map[string]string{postBySlugQuery: `{
		"_id": "p1", "slug": {"current": "hello"},
		"title": {"en": "Hello"},
		"body": {"en": [{"_type": "block", "style": "normal", "children": [{"_type": "span", "text": "Body copy here."}]}]},
		"coverImage": {"asset": {"_ref": "image-abc-10x10-png"}, "alt": {"en": "Cover"}}
	}`})
	post, err := NewClient(q).PostBySlug(context.Background(), "hello", locale.FR)
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, "Body copy here.", post.Excerpt, "excerpt derives from body when unset")
	require.NotNil(t, post.CoverImage)
	assert.Equal(t, "https://img.test/image-abc-10x10-png", post.CoverImage.URL)
	assert.Equal(t, "Cover", post.CoverImage.Alt)
	assert.Equal(t, map[string]any{"slug": "hello"}, q.params[0])

	missing, err := NewClient(newFakeQuerier(nil)).PostBySlug(context.Background(), "nope", locale.EN)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestProjectCaseStudy(t *testing.T) {
	q := newFakeQuerier(map[string]string{projectBySlugQuery: `{
		"_id": "pr1",
		"title": {"en": "Atlas"},
		"summary": {"en": "A map of everything", "fr": "Une carte de tout"},
		"slug": {"current": "atlas"},
		"thumbnail": {"asset": {"_ref": "image-thumb-100x100-jpg"}},
		"theSpark": {"en": [{"_type": "block", "children": [{"_type": "span", "text": "spark"}]}]},
		"thePoeticChoice": {"fr": [{"_type": "block", "children": [{"_type": "span", "text": "choix"}]}]},
		"testimonial": {"en": "   "}
	}`})
	cs, err := NewClient(q).ProjectCaseStudy(context.Background(), "atlas", locale.FR)
	require.NoError(t, err)
	require.NotNil(t, cs)
	assert.Equal(t, "Une carte de tout", cs.Overview)
	require.NotNil(t, cs.HeroImage, "hero image falls back to thumbnail")
	assert.Equal(t, "image-thumb-100x100-jpg", cs.HeroImage.Ref)
	require.Len(t, cs.Sections.Spark, 1)
	require.Len(t, cs.Sections.PoeticChoice, 1)
	assert.Equal(t, "choix", cs.Sections.PoeticChoice[0].Children[0].Text)
	assert.NotNil(t, cs.Sections.ResultBeyondCode)
	assert.Empty(t, cs.Sections.ResultBeyondCode)
	assert.NotNil(t, cs.Technologies)
	assert.Nil(t, cs.Testimonial, "blank testimonial resolves to nil")
}

func TestProjectCaseStudyTestimonialTrimmed(t *testing.T) {
	q := newFakeQuerier(map[string]string{projectBySlugQuery: `{
		"_id": "pr1", "slug": {"current": "atlas"}, "testimonial": {"en": "  They listened.  "}
	}`})
	cs, err := NewClient(q).ProjectCaseStudy(context.Background(), "atlas", locale.EN)
	require.NoError(t, err)
	require.NotNil(t, cs.Testimonial)
	assert.Equal(t, "They listened.", *cs.Testimonial)
}

func TestSluglessDocumentsResolveToNil(t *testing.T) {
	q := newFakeQuerier(map[string]string{
		projectBySlugQuery: `{"_id": "pr1", "title": {"en": "No slug"}}`,
		pageBySlugQuery:    `{"_id": "pg1", "title": {"en": "No slug"}, "slug": {"current": ""}}`,
	})
	c := NewClient(q)
	cs, err := c.ProjectCaseStudy(context.Background(), "x", locale.EN)
	require.NoError(t, err)
	assert.Nil(t, cs)

	page, err := c.PageBySlug(context.Background(), "x", locale.EN)
	require.NoError(t, err)
	assert.Nil(t, page)
}

func TestPageBySlug(t *testing.T) {
	q := newFakeQuerier(map[string]string{pageBySlugQuery: `{
		"_id": "pg1", "title": {"en": "Process"}, "slug": {"current": "process"},
		"heroTitle": {"en": "How we work"},
		"sections": [{"_key": "s1", "heading": {"en": "Listen"}, "body": {"en": []}}],
		"seo": {"description": {"en": "Our process"}}
	}`})
	page, err := NewClient(q).PageBySlug(context.Background(), "process", locale.AR)
	require.NoError(t, err)
	require.NotNil(t, page)
	assert.Equal(t, "How we work", page.Hero.Title)
	require.Len(t, page.Sections, 1)
	assert.Equal(t, "Listen", page.Sections[0].Heading)
	assert.NotNil(t, page.Sections[0].Body)
	assert.Equal(t, "Our process", page.SEODescription)
}

func TestHomePageDefaults(t *testing.T) {
	q := newFakeQuerier(map[string]string{homePageQuery: `{
		"_id": "homePage",
		"heroTitle": {"en": "Software and Soul"},
		"heroPrimaryCtaLink": "contact",
		"heroSecondaryCtaLabel": {"fr": " "},
		"footerCtaButtonLink": "",
		"featuredProject": {
			"_id": "pr1", "title": {"en": "Atlas"},
			"thumbnail": {"asset": {"_ref": "image-t-1x1-png"}}
		}
	}`})
	home, err := NewClient(q).HomePage(context.Background(), locale.FR)
	require.NoError(t, err)
	require.NotNil(t, home)
	assert.Equal(t, "Software and Soul", home.Hero.Title)
	assert.Equal(t, CTA{Label: DefaultPrimaryCTA, Href: "/contact"}, home.Hero.PrimaryCTA)
	assert.Nil(t, home.Hero.SecondaryCTA)
	assert.Equal(t, DefaultCraftBadge, home.Craft.BadgeLabel)
	assert.Equal(t, DefaultManifestoTitle, home.Manifesto.Title)
	assert.NotNil(t, home.Manifesto.Body)
	assert.Equal(t, CTA{Label: DefaultFooterCTAButton, Href: "/contact"}, home.FooterCTA.Button)
	require.NotNil(t, home.FeaturedProject)
	assert.Equal(t, "/projects", home.FeaturedProject.Href, "slugless featured project links to the index")
	assert.Equal(t, DefaultFeaturedCTA, home.FeaturedProject.CTALabel)
	require.NotNil(t, home.FeaturedProject.Image)
	assert.Equal(t, "image-t-1x1-png", home.FeaturedProject.Image.Ref)
}

func TestHomePageSecondaryCTAAndFeaturedHref(t *testing.T) {
	q := newFakeQuerier(map[string]string{homePageQuery: `{
		"_id": "homePage",
		"heroSecondaryCtaLabel": {"en": "See the work"},
		"featuredProject": {"_id": "pr1", "slug": {"current": "atlas"}, "heroImage": {"asset": {"_ref": "image-h-2x2-png"}}}
	}`})
	home, err := NewClient(q).HomePage(context.Background(), locale.EN)
	require.NoError(t, err)
	require.NotNil(t, home.Hero.SecondaryCTA)
	assert.Equal(t, CTA{Label: "See the work", Href: "/projects"}, *home.Hero.SecondaryCTA)
	assert.Equal(t, "/projects/atlas", home.FeaturedProject.Href)
	assert.Equal(t, "image-h-2x2-png", home.FeaturedProject.Image.Ref)
}

func TestHomeAndAboutAbsent(t *testing.T) {
	c := NewClient(newFakeQuerier(nil))
	home, err := c.HomePage(context.Background(), locale.EN)
	require.NoError(t, err)
	assert.Nil(t, home)
	about, err := c.AboutPage(context.Background(), locale.EN)
	require.NoError(t, err)
	assert.Nil(t, about)
}

func TestSlugsAreCleanedAndDeduplicated(t *testing.T) {
	q := newFakeQuerier(map[string]string{postSlugsQuery: `[{"slug": "a"}, {"slug": " a "}, {"slug": ""}, {"slug": "../etc"}, {"slug": "b"}]`})
	slugs, err := NewClient(q).PostSlugs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, slugs)
}

func TestQueryErrorsAreWrapped(t *testing.T) {
	boom := &sanity.APIError{Status: 500, Body: "down"}
	q := newFakeQuerier(nil)
	q.err = boom
	_, err := NewClient(q).Services(context.Background(), locale.EN)
	var apiErr *sanity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, strings.HasPrefix(err.Error(), "cms: services:"))
}

func TestQueriesExcludeDrafts(t *testing.T) {
	for _, q := range []string{servicesQuery, projectsQuery, projectBySlugQuery, pageBySlugQuery, postsQuery, postBySlugQuery, postSlugsQuery, projectSlugsQuery} {
		assert.Contains(t, q, "!(_id in path('drafts.**'))")
	}
	assert.Contains(t, postsQuery, "defined(slug.current)")
	assert.Contains(t, postsQuery, "order(publishedAt desc)")
	assert.Contains(t, servicesQuery, "order(orderRank asc)")
}

func TestCachedRecomputesAfterInvalidation(t *testing.T) {
	q := newFakeQuerier(map[string]string{servicesQuery: `[{"_id": "s1", "title": {"en": "Design"}}]`})
	store := cache.New()
	c := NewCached(NewClient(q), store)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		got, err := c.Services(ctx, locale.EN)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, 1, q.count(servicesQuery))

	_, err := c.Services(ctx, locale.FR)
	require.NoError(t, err)
	assert.Equal(t, 2, q.count(servicesQuery), "locales are cached separately")

	store.InvalidateTags(TagServices)
	_, err = c.Services(ctx, locale.EN)
	require.NoError(t, err)
	assert.Equal(t, 3, q.count(servicesQuery))
}

func TestCachedHomePageEvictedByProjectTag(t *testing.T) {
	q := newFakeQuerier(map[string]string{homePageQuery: `{"_id": "homePage"}`})
	store := cache.New()
	c := NewCached(NewClient(q), store)
	ctx := context.Background()

	_, err := c.HomePage(ctx, locale.EN)
	require.NoError(t, err)
	store.InvalidateTags(TagProjects)
	_, err = c.HomePage(ctx, locale.EN)
	require.NoError(t, err)
	assert.Equal(t, 2, q.count(homePageQuery))
}

func TestCachedDoesNotCacheErrors(t *testing.T) {
	c := NewCached(NewClient(nil), cache.New())
	_, err := c.Posts(context.Background(), locale.EN)
	assert.ErrorIs(t, err, sanity.ErrNotConfigured)
	_, err = c.Posts(context.Background(), locale.EN)
	assert.ErrorIs(t, err, sanity.ErrNotConfigured)
}
