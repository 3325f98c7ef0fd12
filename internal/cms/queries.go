package cms

// GROQ projections. Published documents only; collections keep the studio's manual order.

const notDraft = `!(_id in path('drafts.**'))`

const projectSummarySelection = `
  _id,
  title,
  summary,
  slug,
  thumbnail,
  private,
  categories
`

const projectDetailSelection = `
  _id,
  title,
  summary,
  tagline,
  slug,
  thumbnail,
  heroImage,
  private,
  categories,
  theSpark,
  thePoeticChoice,
  theResultBeyondCode,
  technologies,
  testimonial,
  seo
`

const postSelection = `
  _id,
  title,
  slug,
  excerpt,
  body,
  coverImage,
  publishedAt,
  author->{_id, name, avatar, role},
  seo
`

const (
	siteSettingsQuery = `*[_type == "siteSettings"][0]{
  _id,
  title,
  tagline,
  footerNote,
  contactEmail,
  socialLinks
}`

	servicesQuery = `*[_type == "service" && ` + notDraft + `]|order(orderRank asc){
  _id,
  title,
  summary
}`

	projectsQuery = `*[_type == "project" && ` + notDraft + `]|order(orderRank asc){` + projectSummarySelection + `}`

	projectBySlugQuery = `*[_type == "project" && slug.current == $slug && ` + notDraft + `][0]{` + projectDetailSelection + `}`

	projectSlugsQuery = `*[_type == "project" && defined(slug.current) && ` + notDraft + `]{ "slug": slug.current }`

	homePageQuery = `*[_type == "homePage"][0]{
  _id,
  heroEyebrow,
  heroTitle,
  heroSubtitle,
  heroPrimaryCtaLabel,
  heroPrimaryCtaLink,
  heroSecondaryCtaLabel,
  heroSecondaryCtaLink,
  heroPhilosophyTitle,
  heroPhilosophyCopy,
  craftEyebrow,
  craftTitle,
  craftSubtitle,
  craftBadgeLabel,
  manifestoTitle,
  manifestoBody,
  featuredProject->{` + projectDetailSelection + `},
  featuredProjectCtaLabel,
  footerCtaTitle,
  footerCtaBody,
  footerCtaButtonLabel,
  footerCtaButtonLink
}`

	aboutPageQuery = `*[_type == "aboutPage"][0]{
  _id,
  heroEyebrow,
  heroTitle,
  heroSubtitle,
  sections,
  profileImage
}`

	pageBySlugQuery = `*[_type == "page" && slug.current == $slug && ` + notDraft + `][0]{
  _id,
  title,
  slug,
  heroEyebrow,
  heroTitle,
  heroSubtitle,
  sections,
  seo
}`

	postsQuery = `*[_type == "blogPost" && ` + notDraft + ` && defined(slug.current)]|order(publishedAt desc){` + postSelection + `}`

	postBySlugQuery = `*[_type == "blogPost" && slug.current == $slug && ` + notDraft + `][0]{` + postSelection + `}`

	postSlugsQuery = `*[_type == "blogPost" && defined(slug.current) && ` + notDraft + `]{ "slug": slug.current }`
)
