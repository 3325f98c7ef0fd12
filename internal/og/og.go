// Package og renders the generated Open Graph card served at /api/og.
package og

import (
	"bytes"
	"encoding/xml"
	"net/http"
	"strings"
	"text/template"
	"unicode/utf8"

	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

const (
	Width  = 1200
	Height = 630

	maxTitleRunes   = 120
	maxTaglineRunes = 140
	lineRunes       = 26
	maxLines        = 4
)

const brand = "BitPoet"

var taglines = map[locale.Locale]string{
	locale.EN: "Software and Soul",
	locale.FR: "Logiciel et âme",
	locale.AR: "برمجيات بروح",
}

// Card is the resolved content of one image.
type Card struct {
	Locale  locale.Locale
	Dir     string
	Lines   []string
	Tagline string
}

// Resolve applies the query defaults and length caps.
func Resolve(localeParam, title, tagline string) Card {
	l, ok := locale.Parse(localeParam)
	if !ok {
		l = locale.Default
	}
	sub := truncate(strings.TrimSpace(tagline), maxTaglineRunes)
	if sub == "" {
		sub = taglines[l]
	}
	head := truncate(strings.TrimSpace(title), maxTitleRunes)
	if head == "" {
		head = brand + " — " + taglines[l]
	}
	return Card{
		Locale:  l,
		Dir:     l.Dir(),
		Lines:   wrap(head, lineRunes, maxLines),
		Tagline: sub,
	}
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// wrap splits s on spaces into at most max lines of roughly width runes.
func wrap(s string, width, max int) []string {
	words := strings.Fields(s)
	lines := make([]string, 0, max)
	var cur strings.Builder
	for _, w := range words {
		if cur.Len() > 0 && utf8.RuneCountInString(cur.String())+1+utf8.RuneCountInString(w) > width {
			lines = append(lines, cur.String())
			cur.Reset()
			if len(lines) == max {
				break
			}
		}
		if cur.Len() > 0 {
			cur.WriteByte(' ')
		}
		cur.WriteString(w)
	}
	if cur.Len() > 0 && len(lines) < max {
		lines = append(lines, cur.String())
	}
	return lines
}

var svg = template.Must(template.New("og").Funcs(template.FuncMap{
	"x": func(s string) string {
		var b bytes.Buffer
		_ = xml.EscapeText(&b, []byte(s))
		return b.String()
	},
	"lineY": func(i, n int) int {
		return Height/2 - (n-1)*42 + i*84 - 20
	},
}).Parse(`<svg xmlns="http://www.w3.org/2000/svg" width="{{.W}}" height="{{.H}}" viewBox="0 0 {{.W}} {{.H}}" direction="{{.Card.Dir}}">
  <defs>
    <radialGradient id="g1" cx="20%" cy="20%" r="55%"><stop offset="0" stop-color="#0fffc1" stop-opacity="0.28"/><stop offset="1" stop-color="#0fffc1" stop-opacity="0"/></radialGradient>
    <radialGradient id="g2" cx="80%" cy="80%" r="45%"><stop offset="0" stop-color="#5d3fd3" stop-opacity="0.32"/><stop offset="1" stop-color="#5d3fd3" stop-opacity="0"/></radialGradient>
  </defs>
  <rect width="100%" height="100%" fill="#0d1220"/>
  <rect width="100%" height="100%" fill="url(#g1)"/>
  <rect width="100%" height="100%" fill="url(#g2)"/>
  <text x="50%" y="120" text-anchor="middle" font-family="Inter, Segoe UI, sans-serif" font-size="20" letter-spacing="12" fill="#0fffc1" fill-opacity="0.85">BITPOET</text>
{{- $n := len .Card.Lines}}
{{- range $i, $line := .Card.Lines}}
  <text x="50%" y="{{lineY $i $n}}" text-anchor="middle" font-family="Inter, Segoe UI, sans-serif" font-size="72" font-weight="600" fill="#f5f5ff">{{x $line}}</text>
{{- end}}
  <text x="50%" y="{{.TaglineY}}" text-anchor="middle" font-family="Inter, Segoe UI, sans-serif" font-size="28" fill="#f5f5ff" fill-opacity="0.78">{{x .Card.Tagline}}</text>
</svg>
`))

// Render writes the SVG for c.
func Render(c Card) ([]byte, error) {
	var buf bytes.Buffer
	n := len(c.Lines)
	err := svg.Execute(&buf, struct {
		W, H     int
		Card     Card
		TaglineY int
	}{Width, Height, c, Height/2 + n*42 + 40})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Handler serves GET /api/og?locale=&title=&tagline=.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		body, err := Render(Resolve(q.Get("locale"), q.Get("title"), q.Get("tagline")))
		if err != nil {
			requestctx.Logger(r.Context()).Error("og: render failed", zap.Error(err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/svg+xml")
		w.Header().Set("Cache-Control", "public, max-age=86400, immutable")
		_, _ = w.Write(body)
	})
}
