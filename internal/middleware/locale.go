// Package middleware holds the HTTP glue shared by the page routes.
package middleware

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

// LocaleParam is the chi URL parameter carrying the locale segment.
const LocaleParam = "locale"

// Locale validates the {locale} segment. Unsupported values are handed to notFound;
// supported ones are stored in the request context and surfaced as Content-Language.
func Locale(notFound http.Handler) func(http.Handler) http.Handler {
	if notFound == nil {
		notFound = http.NotFoundHandler()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := chi.URLParam(r, LocaleParam)
			if !locale.IsLocale(raw) {
				notFound.ServeHTTP(w, r)
				return
			}
			l := locale.Locale(raw)
			w.Header().Set("Content-Language", l.String())
			next.ServeHTTP(w, r.WithContext(requestctx.WithLocale(r.Context(), l)))
		})
	}
}

// VaryLocale marks responses that depend on Accept-Language.
func VaryLocale(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Add("Vary", "Accept-Language")
		next.ServeHTTP(w, r)
	})
}
