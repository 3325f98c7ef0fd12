package main

import (
	"bytes"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/format"
	"bitpoet.dev/bitpoet-web/internal/i18n"
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
	"bitpoet.dev/bitpoet-web/internal/portabletext"
)

// renderer executes page templates inside the shared "base" layout. Each file in
// pages/ becomes a view named after it; layouts/ and partials/ are shared.
type renderer struct {
	dir  string
	text *i18n.Bundle
	dev  bool

	mu    sync.RWMutex
	views map[string]*template.Template
}

func newRenderer(dir string, text *i18n.Bundle, dev bool) (*renderer, error) {
	r := &renderer{dir: dir, text: text, dev: dev}
	views, err := r.parse()
	if err != nil {
		return nil, err
	}
	r.views = views
	return r, nil
}

func (r *renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"t": func(l locale.Locale, key string) string { return r.text.T(l, key) },
		"tf": func(l locale.Locale, key string, pairs ...string) string {
			return r.text.Tf(l, key, pairs...)
		},
		"pt":   portabletext.Render,
		"date": func(t time.Time, l locale.Locale) string { return format.Date(t, l, format.Medium) },
		"iso":  format.ISODate,
	}
}

func (r *renderer) parse() (map[string]*template.Template, error) {
	shared, err := r.collect("layouts", "partials")
	if err != nil {
		return nil, err
	}
	if len(shared) == 0 {
		return nil, fmt.Errorf("no layout templates found under %s", r.dir)
	}
	root, err := template.New("_root").Funcs(r.funcs()).ParseFiles(shared...)
	if err != nil {
		return nil, fmt.Errorf("parse layouts: %w", err)
	}

	pages, err := r.collect("pages")
	if err != nil {
		return nil, err
	}
	views := make(map[string]*template.Template, len(pages))
	for _, p := range pages {
		view, err := template.Must(root.Clone()).ParseFiles(p)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", p, err)
		}
		views[strings.TrimSuffix(filepath.Base(p), ".tmpl")] = view
	}
	return views, nil
}

// collect walks the named subdirectories for .tmpl files. WalkDir is used since
// ParseGlob does not support **.
func (r *renderer) collect(subdirs ...string) ([]string, error) {
	var files []string
	for _, sub := range subdirs {
		root := filepath.Join(r.dir, sub)
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && strings.HasSuffix(d.Name(), ".tmpl") {
				files = append(files, path)
			}
			return nil
		})
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("walk %s: %w", root, err)
		}
	}
	return files, nil
}

func (r *renderer) view(name string) (*template.Template, error) {
	if r.dev {
		views, err := r.parse()
		if err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.views = views
		r.mu.Unlock()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.views[name]
	if !ok {
		return nil, fmt.Errorf("unknown view %q", name)
	}
	return t, nil
}

type cacheable interface {
	Cacheable() bool
}

// render executes view into a buffer first so template errors never leave a
// half-written page behind.
func (r *renderer) render(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	logger := requestctx.Logger(req.Context())
	t, err := r.view(name)
	if err != nil {
		logger.Error("template lookup failed", zap.String("view", name), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}
	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		logger.Error("template exec failed", zap.String("view", name), zap.Error(err))
		http.Error(w, "template error", http.StatusInternalServerError)
		return
	}

	h := w.Header()
	h.Set("Content-Type", "text/html; charset=utf-8")
	if c, ok := data.(cacheable); (ok && !c.Cacheable()) || status != http.StatusOK {
		h.Set("Cache-Control", "no-store")
	} else {
		h.Set("Cache-Control", "public, max-age=0, must-revalidate")
	}
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}
