package observability

import (
	"net"
	"net/http"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
)

// UnmatchedRoute labels requests that no route pattern served.
const UnmatchedRoute = "unmatched"

const (
	maxPathField   = 180
	maxMethodField = 10
	maxAddrField   = 64
)

// SanitizeRoute makes a path or route pattern safe for a log field or span name.
// Control characters are dropped and the result is capped at 180 runes.
func SanitizeRoute(route string) string {
	if route == "" {
		return "/"
	}
	return clean(route, maxPathField)
}

// SanitizeMethod upper-cases and caps a request method.
func SanitizeMethod(method string) string {
	return clean(strings.ToUpper(method), maxMethodField)
}

// RouteLabel is the chi pattern that served r, such as /{locale}/blog/{slug}.
// Requests outside every pattern share UnmatchedRoute so path scans stay out of
// span names and route fields.
func RouteLabel(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return SanitizeRoute(pattern)
		}
	}
	return UnmatchedRoute
}

// Health probes, metrics scrapes and assets only log when they fail.
func isQuietPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics" || strings.HasPrefix(path, "/assets/")
}

// realIP reads RemoteAddr, which chi's RealIP has already rewritten from proxy headers.
func realIP(r *http.Request) string {
	addr := strings.TrimSpace(r.RemoteAddr)
	if addr == "" {
		return ""
	}
	if host, _, err := net.SplitHostPort(addr); err == nil {
		addr = host
	}
	return clean(addr, maxAddrField)
}

func clean(value string, limit int) string {
	value = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, value)
	if utf8.RuneCountInString(value) > limit {
		value = string([]rune(value)[:limit])
	}
	return value
}
