package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// AssetsWithCache serves dir under prefix with long-lived caching and content ETags.
// ETags are computed on first request per file; dev mode recomputes on every request.
func AssetsWithCache(dir, prefix string, dev bool, logger *zap.Logger) http.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		mu    sync.RWMutex
		etags = map[string]string{}
	)
	etagFor := func(rel string) string {
		if !dev {
			mu.RLock()
			et, ok := etags[rel]
			mu.RUnlock()
			if ok {
				return et
			}
		}
		et, err := fileETag(filepath.Join(dir, filepath.FromSlash(rel)))
		if err != nil {
			if !os.IsNotExist(err) {
				logger.Warn("assets: etag failed", zap.String("path", rel), zap.Error(err))
			}
			return ""
		}
		if !dev {
			mu.Lock()
			etags[rel] = et
			mu.Unlock()
		}
		return et
	}

	files := http.StripPrefix(prefix, http.FileServer(noDirFS{http.Dir(dir)}))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rel := strings.TrimPrefix(strings.TrimPrefix(r.URL.Path, prefix), "/")
		if dev {
			w.Header().Set("Cache-Control", "no-cache")
		} else {
			w.Header().Set("Cache-Control", "public, max-age=604800, stale-while-revalidate=86400")
		}
		w.Header().Add("Vary", "Accept-Encoding")
		if et := etagFor(rel); et != "" {
			w.Header().Set("ETag", et)
			if etagMatches(r.Header.Get("If-None-Match"), et) {
				w.WriteHeader(http.StatusNotModified)
				return
			}
		}
		files.ServeHTTP(w, r)
	})
}

func etagMatches(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || candidate == etag || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

func fileETag(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if info, err := f.Stat(); err != nil || info.IsDir() {
		return "", fs.ErrNotExist
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return `"` + hex.EncodeToString(h.Sum(nil)[:16]) + `"`, nil
}

// noDirFS hides directory listings.
type noDirFS struct{ http.FileSystem }

func (n noDirFS) Open(name string) (http.File, error) {
	f, err := n.FileSystem.Open(name)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	return f, nil
}
