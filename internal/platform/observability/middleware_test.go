package observability

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

func chain(logger *zap.Logger, h http.Handler) http.Handler {
	return InjectLoggerMiddleware(logger)(RequestLoggerMiddleware()(RecoveryMiddleware(logger)(h)))
}

func TestRequestLoggerLevelFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	for path, status := range map[string]int{"/en": http.StatusOK, "/en/missing": http.StatusNotFound} {
		h := chain(logger, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	done := logs.FilterMessage("request completed")
	require.Equal(t, 2, done.Len())
	levels := map[string]zapcore.Level{}
	for _, e := range done.All() {
		levels[e.ContextMap()["path"].(string)] = e.Level
	}
	assert.Equal(t, zapcore.InfoLevel, levels["/en"])
	assert.Equal(t, zapcore.WarnLevel, levels["/en/missing"])
}

func TestQuietPathsOnlyLogFailures(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := chain(zap.New(core), http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, 0, logs.Len())
}

func TestRecoveryWritesJSONError(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := chain(zap.New(core), http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/en", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "internal_error", body["reason"])
	assert.Equal(t, "Internal Server Error", body["message"])
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestHandlersSeeRequestLogger(t *testing.T) {
	logger := zap.NewExample()
	var got *zap.Logger
	h := chain(logger, http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got = requestctx.Logger(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/en", nil))
	require.NotNil(t, got)
	assert.NotSame(t, requestctx.NoopLogger(), got)
}

func TestRouteLabelUsesMatchedPattern(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	r := chi.NewRouter()
	r.Use(InjectLoggerMiddleware(zap.New(core)), RequestLoggerMiddleware())
	r.Get("/{locale}/blog/{slug}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fr/blog/hello", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/wp-login.php", nil))

	routes := map[string]string{}
	for _, e := range logs.FilterMessage("request completed").All() {
		fields := e.ContextMap()
		routes[fields["path"].(string)] = fields["route"].(string)
	}
	assert.Equal(t, "/{locale}/blog/{slug}", routes["/fr/blog/hello"])
	assert.Equal(t, UnmatchedRoute, routes["/wp-login.php"])
}

func TestSanitizeDropsControlCharacters(t *testing.T) {
	assert.Equal(t, "/en/fake log line", SanitizeRoute("/en/fake\n log\r line"))
	assert.Equal(t, "/", SanitizeRoute(""))
	assert.Equal(t, "GET", SanitizeMethod("get\x00"))
	assert.Len(t, []rune(SanitizeRoute("/"+strings.Repeat("é", 300))), maxPathField)
}
