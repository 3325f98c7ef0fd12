package i18n

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

func writeCatalog(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestLoadFlattensAndFallsBack(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "en.yaml", "nav:\n  home: Home\n  blog: Insights\ncount: 3\n")
	writeCatalog(t, dir, "fr.yaml", "nav:\n  home: Accueil\n  blog: \"\"\n")

	b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Accueil", b.T(locale.FR, "nav.home"))
	assert.Equal(t, "Insights", b.T(locale.FR, "nav.blog"), "empty value falls back to default locale")
	assert.Equal(t, "Home", b.T(locale.AR, "nav.home"), "missing catalog falls back")
	assert.Equal(t, "3", b.T(locale.EN, "count"))
	assert.Equal(t, "missing.key", b.T(locale.EN, "missing.key"))
}

func TestLoadRequiresDefaultCatalog(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "fr.yaml", "a: b\n")
	_, err := Load(dir)
	assert.Error(t, err)
}

func TestTf(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "en.yaml", "blog:\n  writtenBy: Written by {name}\n")
	b, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "Written by Nadia", b.Tf(locale.EN, "blog.writtenBy", "name", "Nadia"))
}

func TestResolveAcceptLanguage(t *testing.T) {
	var b *Bundle
	assert.Equal(t, locale.FR, b.Resolve("fr-CA,fr;q=0.9,en;q=0.5"))
	assert.Equal(t, locale.EN, b.Resolve("en;q=0.8, ar;q=0.7"))
	assert.Equal(t, locale.Default, b.Resolve("de"))
}

func TestShippedCatalogsCoverDefaultKeys(t *testing.T) {
	b, err := Load("../../locales")
	require.NoError(t, err)
	keys := b.Keys(locale.Default)
	require.NotEmpty(t, keys)
	for _, l := range locale.Others(locale.Default) {
		have := map[string]struct{}{}
		for _, k := range b.Keys(l) {
			have[k] = struct{}{}
		}
		for _, k := range keys {
			_, ok := have[k]
			assert.True(t, ok, "%s catalog is missing %q", l, k)
		}
	}
	assert.Equal(t, "Message reçu. Nous reviendrons vers vous très vite.", b.T(locale.FR, "contact.api.success"))
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeCatalog(t, dir, "en.yaml", "greeting: Hello\n")
	b, err := Load(dir)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- b.Watch(ctx, nil) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeCatalog(t, dir, "en.yaml", "greeting: Howdy\n")

	assert.Eventually(t, func() bool { return b.T(locale.EN, "greeting") == "Howdy" }, 3*time.Second, 20*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}
