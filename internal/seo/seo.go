// Package seo derives per-locale page metadata, structured data, the sitemap and robots policy.
package seo

import (
	"context"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/locale"
)

const (
	DefaultSiteURL     = "http://localhost:3000"
	DefaultTitle       = "BitPoet"
	DefaultDescription = "Software and Soul"

	OGImageWidth  = 1200
	OGImageHeight = 630
)

type Image struct {
	URL    string
	Width  int
	Height int
	Alt    string
}

type OpenGraph struct {
	Title           string
	Description     string
	URL             string
	Type            string
	Locale          string
	AlternateLocale []string
	Images          []Image
}

type Twitter struct {
	Card        string
	Title       string
	Description string
	Images      []string
}

type Alternates struct {
	Canonical string
	// Languages maps a locale code, plus "x-default", to its absolute URL.
	Languages map[string]string
}

// Metadata is everything the layout needs for the document head.
type Metadata struct {
	Base        string
	Title       string
	Description string
	Alternates  Alternates
	OpenGraph   OpenGraph
	Twitter     Twitter
}

// Input describes one page. Path is relative to the locale prefix.
type Input struct {
	Locale      locale.Locale
	Path        string
	Title       string
	Description string
	OGImagePath string
	OGImageURL  string
	// Type is the Open Graph type, "website" unless set to "article".
	Type string
}

// SettingsSource supplies the site-wide title and tagline fallbacks.
type SettingsSource interface {
	SiteSettings(ctx context.Context, l locale.Locale) (cms.SiteSettings, error)
}

// Builder builds Metadata relative to BaseURL.
type Builder struct {
	BaseURL  string
	Settings SettingsSource
	Logger   *zap.Logger
}

// Build resolves title and description fallbacks, canonical and alternate URLs,
// and the Open Graph image.
func (b Builder) Build(ctx context.Context, in Input) Metadata {
	l := in.Locale
	if !locale.IsLocale(string(l)) {
		l = locale.Default
	}
	base := strings.TrimRight(b.BaseURL, "/")
	if base == "" {
		base = DefaultSiteURL
	}

	var settings cms.SiteSettings
	if b.Settings != nil {
		s, err := b.Settings.SiteSettings(ctx, l)
		if err != nil {
			b.logger().Warn("seo: site settings unavailable, using defaults", zap.String("locale", l.String()), zap.Error(err))
		} else {
			settings = s
		}
	}

	title := firstNonEmpty(in.Title, settings.Title, DefaultTitle)
	description := firstNonEmpty(in.Description, settings.Tagline, DefaultDescription)

	canonical := base + LocalizedPath(l, in.Path)
	languages := make(map[string]string, len(locale.All)+1)
	for _, other := range locale.All {
		languages[other.String()] = base + LocalizedPath(other, in.Path)
	}
	languages["x-default"] = base + LocalizedPath(locale.Default, in.Path)

	ogImage := b.ogImage(base, l, title, in)
	ogType := "website"
	if in.Type == "article" {
		ogType = "article"
	}
	alternate := make([]string, 0, len(locale.All)-1)
	for _, other := range locale.Others(l) {
		alternate = append(alternate, other.String())
	}

	return Metadata{
		Base:        base,
		Title:       title,
		Description: description,
		Alternates: Alternates{
			Canonical: canonical,
			Languages: languages,
		},
		OpenGraph: OpenGraph{
			Title:           title,
			Description:     description,
			URL:             canonical,
			Type:            ogType,
			Locale:          l.String(),
			AlternateLocale: alternate,
			Images: []Image{{
				URL:    ogImage,
				Width:  OGImageWidth,
				Height: OGImageHeight,
				Alt:    title + " — BitPoet",
			}},
		},
		Twitter: Twitter{
			Card:        "summary_large_image",
			Title:       title,
			Description: description,
			Images:      []string{ogImage},
		},
	}
}

func (b Builder) ogImage(base string, l locale.Locale, title string, in Input) string {
	if u := strings.TrimSpace(in.OGImageURL); u != "" {
		if strings.HasPrefix(u, "http") {
			return u
		}
		return joinBase(base, u)
	}
	if p := strings.TrimSpace(in.OGImagePath); p != "" {
		return joinBase(base, p)
	}
	return base + "/api/og?locale=" + l.String() + "&title=" + EncodeURIComponent(title)
}

func (b Builder) logger() *zap.Logger {
	if b.Logger == nil {
		return zap.NewNop()
	}
	return b.Logger
}

// LocalizedPath returns "/<locale>" followed by path with one leading and one
// trailing slash removed.
func LocalizedPath(l locale.Locale, path string) string {
	trimmed := strings.TrimPrefix(path, "/")
	trimmed = strings.TrimSuffix(trimmed, "/")
	if trimmed == "" {
		return "/" + l.String()
	}
	return "/" + l.String() + "/" + trimmed
}

// SiteURL normalizes the configured public base URL. Empty or unparsable values
// fall back to DefaultSiteURL.
func SiteURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultSiteURL
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return DefaultSiteURL
	}
	return strings.TrimSuffix(u.String(), "/")
}

// uriComponentMarks undoes the QueryEscape encodings that encodeURIComponent in a
// browser leaves alone: spaces become %20 and !'()* stay literal.
var uriComponentMarks = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s for use as a query value with the same output as a
// browser's encodeURIComponent.
func EncodeURIComponent(s string) string {
	return uriComponentMarks.Replace(url.QueryEscape(s))
}

func joinBase(base, p string) string {
	if strings.HasPrefix(p, "/") {
		return base + p
	}
	return base + "/" + p
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
