package cache

import (
	"bytes"
	"net/http"
	"strings"
	"time"
)

// PathTag is the tag under which rendered responses for path are cached.
func PathTag(path string) string {
	if path == "" {
		path = "/"
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return "path:" + path
}

type cachedPage struct {
	status int
	header http.Header
	body   []byte
}

// PageCache caches successful GET responses per URL in store, tagged with PathTag so
// path-based revalidation evicts them. A non-positive ttl disables caching.
func PageCache(store *Store, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil || ttl <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet && r.Method != http.MethodHead {
				next.ServeHTTP(w, r)
				return
			}
			key := "page|" + r.URL.RequestURI()
			if v, ok := store.Get(key); ok {
				if page, ok := v.(*cachedPage); ok {
					store.metrics.hits.Inc()
					writePage(w, r, page)
					return
				}
			}
			store.metrics.misses.Inc()
			w.Header().Set("X-Cache", "MISS")
			rec := &pageRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			if rec.status != http.StatusOK || r.Method != http.MethodGet {
				return
			}
			if strings.Contains(rec.Header().Get("Cache-Control"), "no-store") {
				return
			}
			header := rec.Header().Clone()
			// Outer middleware may encode the stream; the recorded body is the raw one.
			header.Del("Content-Encoding")
			header.Del("Content-Length")
			header.Del("X-Cache")
			for _, h := range hopHeaders {
				header.Del(h)
			}
			store.Set(key, &cachedPage{
				status: rec.status,
				header: header,
				body:   rec.buf.Bytes(),
			}, ttl, PathTag(r.URL.Path))
		})
	}
}

// hopHeaders belong to one connection and are never replayed.
var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// writePage replaces header values. The recorded header already includes what outer
// middleware set, and that middleware has set it again on this response.
func writePage(w http.ResponseWriter, r *http.Request, page *cachedPage) {
	dst := w.Header()
	for k, vals := range page.header {
		dst[k] = append([]string(nil), vals...)
	}
	w.Header().Set("X-Cache", "HIT")
	w.WriteHeader(page.status)
	if r.Method == http.MethodHead {
		return
	}
	_, _ = w.Write(page.body)
}

type pageRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
	buf         bytes.Buffer
}

func (p *pageRecorder) WriteHeader(status int) {
	if p.wroteHeader {
		return
	}
	p.wroteHeader = true
	p.status = status
	p.ResponseWriter.WriteHeader(status)
}

func (p *pageRecorder) Write(b []byte) (int, error) {
	if !p.wroteHeader {
		p.WriteHeader(http.StatusOK)
	}
	p.buf.Write(b)
	return p.ResponseWriter.Write(b)
}
