package nav

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

func TestBuildLocalizesAndMarksActive(t *testing.T) {
	items := Build(locale.FR, "/fr/blog/hello")
	require.Len(t, items, len(Main))
	assert.Equal(t, "/fr", items[0].Href)
	assert.False(t, items[0].Active)
	for _, it := range items {
		if it.LabelKey == "nav.blog" {
			assert.Equal(t, "/fr/blog", it.Href)
			assert.True(t, it.Active)
		} else {
			assert.False(t, it.Active, it.LabelKey)
		}
	}

	home := Build(locale.AR, "/ar")
	assert.True(t, home[0].Active)
}

func TestSwitcherKeepsThePage(t *testing.T) {
	alts := Switcher(locale.EN, "/en/projects/atlas")
	require.Len(t, alts, 3)
	assert.Equal(t, "/en/projects/atlas", alts[0].Href)
	assert.True(t, alts[0].Active)
	assert.Equal(t, "/fr/projects/atlas", alts[1].Href)
	assert.Equal(t, "/ar/projects/atlas", alts[2].Href)
	assert.Equal(t, "rtl", alts[2].Dir)
	assert.Equal(t, "العربية", alts[2].Label)

	assert.Equal(t, "/fr", Switcher(locale.EN, "/en")[1].Href)
}

func TestStrip(t *testing.T) {
	assert.Equal(t, "/", Strip(""))
	assert.Equal(t, "/", Strip("/fr"))
	assert.Equal(t, "/", Strip("/fr/"))
	assert.Equal(t, "/blog", Strip("/ar/blog"))
	assert.Equal(t, "/de/blog", Strip("/de/blog"))
}

func TestBreadcrumbs(t *testing.T) {
	crumbs := Breadcrumbs(locale.FR, "/fr/blog/my-first-post", "Mon premier article")
	require.Len(t, crumbs, 3)
	assert.Equal(t, Crumb{Href: "/fr", LabelKey: "nav.home"}, crumbs[0])
	assert.Equal(t, Crumb{Href: "/fr/blog", LabelKey: "nav.blog", Label: "Blog"}, crumbs[1])
	assert.Equal(t, Crumb{Href: "/fr/blog/my-first-post", Label: "Mon premier article", Active: true}, crumbs[2])

	crumbs = Breadcrumbs(locale.EN, "/en/our-process", "")
	require.Len(t, crumbs, 2)
	assert.Equal(t, "Our process", crumbs[1].Label)

	assert.Len(t, Breadcrumbs(locale.EN, "/en", ""), 1)
}
