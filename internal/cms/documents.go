package cms

import (
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/portabletext"
)

// Raw CMS document shapes as returned by the GROQ projections in queries.go.

type richText = locale.Localized[[]portabletext.Block]

type slugField struct {
	Current string `json:"current"`
}

func (s *slugField) value() string {
	if s == nil {
		return ""
	}
	return s.Current
}

type rawImage struct {
	Asset *struct {
		Ref string `json:"_ref"`
	} `json:"asset"`
	Alt *locale.Text `json:"alt"`
}

func (i *rawImage) ref() string {
	if i == nil || i.Asset == nil {
		return ""
	}
	return i.Asset.Ref
}

type rawSEO struct {
	Description *locale.Text `json:"description"`
}

func (s *rawSEO) description() *locale.Text {
	if s == nil {
		return nil
	}
	return s.Description
}

type rawSiteSettings struct {
	ID           string          `json:"_id"`
	Title        *locale.Text    `json:"title"`
	Tagline      *locale.Text    `json:"tagline"`
	FooterNote   *locale.Text    `json:"footerNote"`
	ContactEmail string          `json:"contactEmail"`
	SocialLinks  []rawSocialLink `json:"socialLinks"`
}

type rawSocialLink struct {
	Key   string `json:"_key"`
	Label string `json:"label"`
	URL   string `json:"url"`
}

type rawService struct {
	ID      string       `json:"_id"`
	Title   *locale.Text `json:"title"`
	Summary *locale.Text `json:"summary"`
}

type rawProject struct {
	ID                  string       `json:"_id"`
	Title               *locale.Text `json:"title"`
	Summary             *locale.Text `json:"summary"`
	Tagline             *locale.Text `json:"tagline"`
	Slug                *slugField   `json:"slug"`
	Thumbnail           *rawImage    `json:"thumbnail"`
	HeroImage           *rawImage    `json:"heroImage"`
	Private             bool         `json:"private"`
	Categories          []string     `json:"categories"`
	TheSpark            *richText    `json:"theSpark"`
	ThePoeticChoice     *richText    `json:"thePoeticChoice"`
	TheResultBeyondCode *richText    `json:"theResultBeyondCode"`
	Technologies        []string     `json:"technologies"`
	Testimonial         *locale.Text `json:"testimonial"`
	SEO                 *rawSEO      `json:"seo"`
}

type rawHomePage struct {
	ID                      string       `json:"_id"`
	HeroEyebrow             *locale.Text `json:"heroEyebrow"`
	HeroTitle               *locale.Text `json:"heroTitle"`
	HeroSubtitle            *locale.Text `json:"heroSubtitle"`
	HeroPrimaryCtaLabel     *locale.Text `json:"heroPrimaryCtaLabel"`
	HeroPrimaryCtaLink      string       `json:"heroPrimaryCtaLink"`
	HeroSecondaryCtaLabel   *locale.Text `json:"heroSecondaryCtaLabel"`
	HeroSecondaryCtaLink    string       `json:"heroSecondaryCtaLink"`
	HeroPhilosophyTitle     *locale.Text `json:"heroPhilosophyTitle"`
	HeroPhilosophyCopy      *locale.Text `json:"heroPhilosophyCopy"`
	CraftEyebrow            *locale.Text `json:"craftEyebrow"`
	CraftTitle              *locale.Text `json:"craftTitle"`
	CraftSubtitle           *locale.Text `json:"craftSubtitle"`
	CraftBadgeLabel         *locale.Text `json:"craftBadgeLabel"`
	ManifestoTitle          *locale.Text `json:"manifestoTitle"`
	ManifestoBody           *richText    `json:"manifestoBody"`
	FeaturedProject         *rawProject  `json:"featuredProject"`
	FeaturedProjectCtaLabel *locale.Text `json:"featuredProjectCtaLabel"`
	FooterCtaTitle          *locale.Text `json:"footerCtaTitle"`
	FooterCtaBody           *richText    `json:"footerCtaBody"`
	FooterCtaButtonLabel    *locale.Text `json:"footerCtaButtonLabel"`
	FooterCtaButtonLink     string       `json:"footerCtaButtonLink"`
}

type rawAboutPage struct {
	ID           string            `json:"_id"`
	HeroEyebrow  *locale.Text      `json:"heroEyebrow"`
	HeroTitle    *locale.Text      `json:"heroTitle"`
	HeroSubtitle *locale.Text      `json:"heroSubtitle"`
	Sections     []rawAboutSection `json:"sections"`
	ProfileImage *rawImage         `json:"profileImage"`
}

type rawAboutSection struct {
	Key   string       `json:"_key"`
	Title *locale.Text `json:"title"`
	Body  *richText    `json:"body"`
}

type rawPage struct {
	ID           string           `json:"_id"`
	Title        *locale.Text     `json:"title"`
	Slug         *slugField       `json:"slug"`
	HeroEyebrow  *locale.Text     `json:"heroEyebrow"`
	HeroTitle    *locale.Text     `json:"heroTitle"`
	HeroSubtitle *locale.Text     `json:"heroSubtitle"`
	Sections     []rawPageSection `json:"sections"`
	SEO          *rawSEO          `json:"seo"`
}

type rawPageSection struct {
	Key     string       `json:"_key"`
	Heading *locale.Text `json:"heading"`
	Body    *richText    `json:"body"`
}

type rawPost struct {
	ID          string       `json:"_id"`
	Title       *locale.Text `json:"title"`
	Slug        *slugField   `json:"slug"`
	Excerpt     *locale.Text `json:"excerpt"`
	Body        *richText    `json:"body"`
	CoverImage  *rawImage    `json:"coverImage"`
	PublishedAt string       `json:"publishedAt"`
	Author      *rawAuthor   `json:"author"`
	SEO         *rawSEO      `json:"seo"`
}

type rawAuthor struct {
	ID     string    `json:"_id"`
	Name   string    `json:"name"`
	Avatar *rawImage `json:"avatar"`
	Role   string    `json:"role"`
}

type slugRow struct {
	Slug string `json:"slug"`
}
