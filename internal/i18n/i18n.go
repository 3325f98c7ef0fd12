// Package i18n holds the UI string catalogs, one YAML file per locale.
package i18n

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

// Bundle is safe for concurrent use; Reload swaps catalogs atomically.
type Bundle struct {
	dir string

	mu   sync.RWMutex
	dict map[locale.Locale]map[string]string
}

// Load reads <dir>/<locale>.yaml for every supported locale. Nested mappings are
// flattened into dotted keys. Only the default locale's catalog is mandatory.
func Load(dir string) (*Bundle, error) {
	b := &Bundle{dir: dir}
	if err := b.Reload(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reload re-reads every catalog. On error the previous catalogs stay in place.
func (b *Bundle) Reload() error {
	dict := make(map[locale.Locale]map[string]string, len(locale.All))
	for _, l := range locale.All {
		path := filepath.Join(b.dir, l.String()+".yaml")
		raw, err := os.ReadFile(path)
		if err != nil {
			if l != locale.Default && errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load locale %s: %w", l, err)
		}
		var tree map[string]any
		if err := yaml.Unmarshal(raw, &tree); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		flat := make(map[string]string)
		flatten("", tree, flat)
		dict[l] = flat
	}
	b.mu.Lock()
	b.dict = dict
	b.mu.Unlock()
	return nil
}

func flatten(prefix string, node map[string]any, out map[string]string) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch val := v.(type) {
		case map[string]any:
			flatten(key, val, out)
		case nil:
		case string:
			out[key] = val
		default:
			out[key] = fmt.Sprint(val)
		}
	}
}

// T returns the translation for key in l, falling back to the default locale and
// finally to key itself.
func (b *Bundle) T(l locale.Locale, key string) string {
	if b == nil {
		return key
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if v, ok := b.dict[l][key]; ok && v != "" {
		return v
	}
	if v, ok := b.dict[locale.Default][key]; ok && v != "" {
		return v
	}
	return key
}

// Tf is T with "{name}" placeholders substituted from pairs of name, value.
func (b *Bundle) Tf(l locale.Locale, key string, pairs ...string) string {
	s := b.T(l, key)
	if len(pairs) < 2 {
		return s
	}
	repl := make([]string, 0, len(pairs))
	for i := 0; i+1 < len(pairs); i += 2 {
		repl = append(repl, "{"+pairs[i]+"}", pairs[i+1])
	}
	return strings.NewReplacer(repl...).Replace(s)
}

// Keys lists the keys of l's own catalog, sorted.
func (b *Bundle) Keys(l locale.Locale) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.dict[l]))
	for k := range b.dict[l] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Resolve chooses the best supported locale from an Accept-Language header.
func (b *Bundle) Resolve(acceptLang string) locale.Locale {
	return locale.Match(acceptLang)
}

// Watch reloads the catalogs whenever a file in the directory changes, until ctx
// is done. Bursts of events are coalesced.
func (b *Bundle) Watch(ctx context.Context, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("i18n watch: %w", err)
	}
	defer w.Close()
	if err := w.Add(b.dir); err != nil {
		return fmt.Errorf("i18n watch %s: %w", b.dir, err)
	}

	const settle = 100 * time.Millisecond
	var timer <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Ext(ev.Name) != ".yaml" {
				continue
			}
			timer = time.After(settle)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Warn("i18n watch error", zap.Error(err))
		case <-timer:
			timer = nil
			if err := b.Reload(); err != nil {
				logger.Error("i18n reload failed", zap.Error(err))
				continue
			}
			logger.Info("i18n catalogs reloaded", zap.String("dir", b.dir))
		}
	}
}
