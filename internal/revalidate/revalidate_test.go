package revalidate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/locale"
)

func TestPlanFor(t *testing.T) {
	t.Run("blogPost", func(t *testing.T) {
		p := PlanFor("blogPost", "hello")
		assert.False(t, p.All)
		assert.Equal(t, []string{
			"/blog",
			"/en/blog", "/en/blog/hello",
			"/fr/blog", "/fr/blog/hello",
			"/ar/blog", "/ar/blog/hello",
			"/en", "/fr", "/ar",
		}, p.Paths)
		assert.Equal(t, []string{cms.TagPosts}, p.Tags)
	})
	t.Run("project", func(t *testing.T) {
		p := PlanFor("project", "atlas")
		assert.Contains(t, p.Paths, "/projects")
		assert.Contains(t, p.Paths, "/fr/projects")
		assert.Contains(t, p.Paths, "/ar/projects/atlas")
		assert.Subset(t, p.Paths, []string{"/en", "/fr", "/ar"})
		assert.ElementsMatch(t, []string{cms.TagProjects, cms.TagHomePage}, p.Tags)
	})
	t.Run("page", func(t *testing.T) {
		p := PlanFor("page", "/process/")
		assert.Equal(t, []string{"/en/process", "/fr/process", "/ar/process"}, p.Paths)
	})
	t.Run("singletons need no slug", func(t *testing.T) {
		assert.Equal(t, []string{"/en/services", "/fr/services", "/ar/services", "/en", "/fr", "/ar"}, PlanFor("service", "").Paths)
		assert.Equal(t, []string{"/en", "/fr", "/ar"}, PlanFor("homePage", "").Paths)
		assert.Equal(t, []string{cms.TagAboutPage}, PlanFor("aboutPage", "").Tags)
	})
	for _, tc := range []struct{ docType, slug string }{
		{"siteSettings", ""},
		{"", "hello"},
		{"mystery", "x"},
		{"blogPost", ""},
		{"project", "  "},
		{"page", ""},
	} {
		p := PlanFor(tc.docType, tc.slug)
		assert.True(t, p.All, "%q/%q should invalidate everything", tc.docType, tc.slug)
		assert.NotEmpty(t, p.Reason)
		assert.Empty(t, p.Paths)
	}
}

func TestApplyInvalidatesTagsAndPaths(t *testing.T) {
	store := cache.New()
	store.Set("posts|en", "x", time.Hour, cms.TagPosts)
	store.Set("page|/fr/blog", "y", time.Hour, cache.PathTag("/fr/blog"))
	store.Set("services|en", "z", time.Hour, cms.TagServices)

	Apply(store, PlanFor("blogPost", "hello"))
	_, ok := store.Get("posts|en")
	assert.False(t, ok)
	_, ok = store.Get("page|/fr/blog")
	assert.False(t, ok)
	_, ok = store.Get("services|en")
	assert.True(t, ok)

	Apply(store, PlanFor("siteSettings", ""))
	assert.Equal(t, 0, store.Len())
}

func post(h http.Handler, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, target, strings.NewReader(body)))
	return rec
}

func TestHandlerRejectsWrongSecretRegardlessOfBody(t *testing.T) {
	store := cache.New()
	store.Set("k", 1, time.Hour, cms.TagPosts)
	h := NewHandler("s3cret", store)

	for _, body := range []string{
		"",
		"not json",
		`{"payload":{"_type":"blogPost","slug":{"current":"a"}}}`,
		`{"payload":{"_type":"siteSettings"}}`,
	} {
		for _, target := range []string{"/api/revalidate", "/api/revalidate?secret=wrong", "/api/revalidate?secret=s3cret2"} {
			rec := post(h, target, body)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "Invalid token", rec.Body.String())
			assert.Contains(t, rec.Header().Get("Content-Type"), "text/plain")
		}
	}
	assert.Equal(t, 1, store.Len(), "no partial action on auth failure")
}

func TestHandlerWithoutConfiguredSecretRejects(t *testing.T) {
	rec := post(NewHandler("", cache.New()), "/api/revalidate?secret=", `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestHandlerRevalidatesPaths(t *testing.T) {
	fixed := time.UnixMilli(1_740_000_000_000)
	h := NewHandler("s3cret", cache.New(), WithClock(func() time.Time { return fixed }))
	rec := post(h, "/api/revalidate?secret=s3cret", `{"payload":{"_type":"blogPost","slug":{"current":"hello"}}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Revalidated bool     `json:"revalidated"`
		Now         int64    `json:"now"`
		Paths       []string `json:"paths"`
		Message     string   `json:"message"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Revalidated)
	assert.Equal(t, fixed.UnixMilli(), resp.Now)
	assert.Contains(t, resp.Paths, "/fr/blog/hello")
	assert.Empty(t, resp.Message)
}

func TestHandlerFullInvalidation(t *testing.T) {
	for _, body := range []string{"", "garbage", `{}`, `{"payload":{"_type":"siteSettings"}}`} {
		store := cache.New()
		store.Set("k", 1, time.Hour)
		rec := post(NewHandler("s3cret", store), "/api/revalidate?secret=s3cret", body)
		require.Equal(t, http.StatusOK, rec.Code, body)
		assert.Contains(t, rec.Body.String(), `"message":"Revalidated all pages"`)
		assert.Equal(t, 0, store.Len())
	}
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler("s3cret", cache.New()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/revalidate?secret=s3cret", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, http.MethodPost, rec.Header().Get("Allow"))
}

type recordingBroadcaster struct{ plans []Plan }

func (r *recordingBroadcaster) Broadcast(_ context.Context, p Plan) error {
	r.plans = append(r.plans, p)
	return nil
}

func TestHandlerBroadcastsPlan(t *testing.T) {
	b := &recordingBroadcaster{}
	h := NewHandler("s3cret", cache.New(), WithBroadcaster(b))
	rec := post(h, "/api/revalidate?secret=s3cret", `{"payload":{"_type":"service"}}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, b.plans, 1)
	assert.Equal(t, "service", b.plans[0].DocType)
}

// fakeContent counts Services calls so the webhook's effect on cached content is observable.
type fakeContent struct {
	cms.Content
	services int
}

func (f *fakeContent) Services(context.Context, locale.Locale) ([]cms.Service, error) {
	f.services++
	return []cms.Service{{ID: "s1"}}, nil
}

func TestCachedContentRecomputedAfterWebhook(t *testing.T) {
	store := cache.New()
	src := &fakeContent{}
	content := cms.NewCached(src, store)
	ctx := context.Background()

	_, _ = content.Services(ctx, locale.EN)
	_, _ = content.Services(ctx, locale.EN)
	require.Equal(t, 1, src.services)

	rec := post(NewHandler("s3cret", store), "/api/revalidate?secret=s3cret", `{"payload":{"_type":"service"}}`)
	require.Equal(t, http.StatusOK, rec.Code)

	_, _ = content.Services(ctx, locale.EN)
	assert.Equal(t, 2, src.services)
}
