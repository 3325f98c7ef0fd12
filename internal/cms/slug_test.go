package cms

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeSlug(t *testing.T) {
	for in, want := range map[string]string{
		"atlas":           "atlas",
		" /process/ ":     "process",
		"Landing Page":    "landing-page",
		"Blog_Post Draft": "blog-post-draft",
		"../etc":          "",
		"   ":             "",
	} {
		assert.Equal(t, want, NormalizeSlug(in), "%q", in)
	}
}

func TestValidSlug(t *testing.T) {
	for _, s := range []string{"atlas", "hello-world", "case-2024"} {
		assert.True(t, ValidSlug(s), s)
	}
	for _, s := range []string{"", "Not_A_Slug", "Hello", "with space", "../etc"} {
		assert.False(t, ValidSlug(s), s)
	}
}
