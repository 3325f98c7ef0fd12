package middleware

import (
	"net/http"
	"strings"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

// RootRedirect sends "/" to the negotiated locale home with a temporary redirect.
func RootRedirect() http.Handler {
	return VaryLocale(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := locale.Match(r.Header.Get("Accept-Language"))
		http.Redirect(w, r, "/"+l.String(), http.StatusFound)
	}))
}

// LegacyRedirect permanently moves an unprefixed path under the default locale,
// keeping the query string.
func LegacyRedirect() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		target := "/" + locale.Default.String() + "/" + strings.TrimLeft(r.URL.Path, "/")
		if r.URL.RawQuery != "" {
			target += "?" + r.URL.RawQuery
		}
		http.Redirect(w, r, target, http.StatusPermanentRedirect)
	})
}
