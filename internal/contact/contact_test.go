package contact

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bitpoet.dev/bitpoet-web/internal/locale"
)

func TestSubmissionValidation(t *testing.T) {
	short := Submission{Name: "Al", Email: "a@b.com", Message: "short"}.Normalize()
	err := short.Validate()
	require.Error(t, err)
	fields := FieldErrors(err)
	assert.Contains(t, fields, "message")
	assert.NotContains(t, fields, "name")
	assert.NotContains(t, fields, "email")

	trimmed := Submission{Name: "  Ada  ", Email: "\tada@example.com ", Message: "  Hello there, friends!  \n"}.Normalize()
	assert.Equal(t, Submission{Name: "Ada", Email: "ada@example.com", Message: "Hello there, friends!"}, trimmed)
	assert.NoError(t, trimmed.Validate())

	bad := Submission{Name: "A", Email: "nope", Message: strings.Repeat("x", 5001)}.Validate()
	assert.Len(t, FieldErrors(bad), 3)

	long := Submission{Name: "Ada", Email: strings.Repeat("a", 260) + "@b.com", Message: "Hello there, friends!"}.Validate()
	assert.Contains(t, FieldErrors(long), "email")

	arabic := Submission{Name: "ليلى", Email: "l@example.com", Message: "مرحبا، أود التحدث"}.Validate()
	assert.NoError(t, arabic, "lengths count runes, not bytes")
}

func TestMemoryLimiterSlidingWindow(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	l := NewMemoryLimiter(5, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		d, err := l.Allow(ctx, "contact:1.2.3.4")
		require.NoError(t, err)
		require.True(t, d.Allowed, "request %d", i)
		now = now.Add(10 * time.Second)
	}
	d, _ := l.Allow(ctx, "contact:1.2.3.4")
	assert.False(t, d.Allowed)
	assert.Equal(t, 10*time.Second, d.RetryAfter)

	other, _ := l.Allow(ctx, "contact:5.6.7.8")
	assert.True(t, other.Allowed, "keys are independent")

	now = now.Add(11 * time.Second)
	d, _ = l.Allow(ctx, "contact:1.2.3.4")
	assert.True(t, d.Allowed, "oldest hit slid out of the window")
}

func TestNewMemoryLimiterDisabled(t *testing.T) {
	assert.Nil(t, NewMemoryLimiter(0, time.Minute, nil))
	var l *MemoryLimiter
	d, err := l.Allow(context.Background(), "x")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiter(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	l := NewRedisLimiter(client, "bitpoet", 2, time.Minute)
	l.clock = func() time.Time { return now }
	ctx := context.Background()

	d, err := l.Allow(ctx, "contact:ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Remaining)

	now = now.Add(15 * time.Second)
	d, err = l.Allow(ctx, "contact:ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	d, err = l.Allow(ctx, "contact:ip")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 45*time.Second, d.RetryAfter)
	assert.True(t, mr.Exists("bitpoet:contact:ip"))

	now = now.Add(46 * time.Second)
	d, err = l.Allow(ctx, "contact:ip")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestRedisLimiterReportsBackendErrors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })
	mr.Close()

	_, err := NewRedisLimiter(client, "", 5, time.Minute).Allow(context.Background(), "k")
	assert.Error(t, err)
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []Submission
	err  error
}

func (f *fakeMailer) Send(_ context.Context, s Submission) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, s)
	return nil
}

type catalog map[string]string

func (c catalog) T(l locale.Locale, key string) string {
	if v, ok := c[l.String()+"."+key]; ok {
		return v
	}
	return key
}

var messages = catalog{
	"en.contact.api.success":     "Message received. We will reply shortly.",
	"en.contact.api.error":       "Something went wrong. Please try again or reach us directly.",
	"fr.contact.api.success":     "Message reçu. Nous reviendrons vers vous très vite.",
	"ar.contact.api.error":       "حدث خطأ ما. يرجى المحاولة مرة أخرى أو مراسلتنا مباشرة.",
	"en.contact.api.rateLimited": "Too many messages.",
}

const validBody = `{"name":"  Ada Lovelace ","email":"ada@example.com","message":"I would love to build something together."}`

func postContact(h http.Handler, body string, headers map[string]string) (*httptest.ResponseRecorder, map[string]any) {
	req := httptest.NewRequest(http.MethodPost, "/api/contact", strings.NewReader(body))
	req.RemoteAddr = "203.0.113.9:5555"
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	var out map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func TestHandlerSuccess(t *testing.T) {
	m := &fakeMailer{}
	h := NewHandler(nil, m, messages, nil)
	rec, out := postContact(h, validBody, map[string]string{LocaleHeader: "fr-CA"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["success"])
	assert.Equal(t, "Message reçu. Nous reviendrons vers vous très vite.", out["message"])
	assert.Len(t, out["id"], 26, "ULID submission id")
	require.Len(t, m.sent, 1)
	assert.Equal(t, "Ada Lovelace", m.sent[0].Name)
}

func TestHandlerInvalidPayload(t *testing.T) {
	m := &fakeMailer{}
	h := NewHandler(nil, m, messages, nil)

	rec, out := postContact(h, `{"name":"Al","email":"a@b.com","message":"short"}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, false, out["success"])
	assert.Equal(t, "invalid_payload", out["reason"])
	assert.Contains(t, out["fields"], "message")

	rec, out = postContact(h, `not json`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_payload", out["reason"])
	assert.Empty(t, m.sent)
}

func TestHandlerMailFailure(t *testing.T) {
	for _, mailErr := range []error{ErrTransportNotConfigured, errors.New("sendgrid down")} {
		h := NewHandler(nil, &fakeMailer{err: mailErr}, messages, nil)
		rec, out := postContact(h, validBody, map[string]string{"Accept-Language": "ar-EG,ar;q=0.9"})
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "email_failed", out["reason"])
		assert.Equal(t, "حدث خطأ ما. يرجى المحاولة مرة أخرى أو مراسلتنا مباشرة.", out["message"])
	}
}

func TestHandlerRateLimited(t *testing.T) {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	limiter := NewMemoryLimiter(5, time.Minute, func() time.Time { return now })
	m := &fakeMailer{}
	h := NewHandler(limiter, m, messages, nil)

	for i := 0; i < 5; i++ {
		rec, _ := postContact(h, validBody, nil)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec, out := postContact(h, validBody, nil)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate_limited", out["reason"])
	assert.Equal(t, float64(60), out["retryAfter"])
	assert.Equal(t, "Too many messages.", out["message"])
	assert.Len(t, m.sent, 5)

	rec, _ = postContact(h, validBody, map[string]string{"X-Forwarded-For": "198.51.100.1, 10.0.0.1"})
	assert.Equal(t, http.StatusOK, rec.Code, "a different client has its own window")
}

type failingLimiter struct{}

func (failingLimiter) Allow(context.Context, string) (Decision, error) {
	return Decision{}, errors.New("redis unreachable")
}

func TestHandlerFailsOpenOnLimiterError(t *testing.T) {
	rec, _ := postContact(NewHandler(failingLimiter{}, &fakeMailer{}, messages, nil), validBody, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerMethodNotAllowed(t *testing.T) {
	rec := httptest.NewRecorder()
	NewHandler(nil, &fakeMailer{}, messages, nil).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/contact", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestResolveLocale(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	assert.Equal(t, locale.EN, ResolveLocale(req))
	req.Header.Set("Accept-Language", "fr-FR,fr;q=0.9")
	assert.Equal(t, locale.FR, ResolveLocale(req))
	req.Header.Set(LocaleHeader, "ar")
	assert.Equal(t, locale.AR, ResolveLocale(req), "explicit header wins")
	req.Header.Set(LocaleHeader, "de, AR-eg")
	assert.Equal(t, locale.AR, ResolveLocale(req))
}

type fakeSender struct {
	got    *mail.SGMailV3
	status int
}

func (f *fakeSender) SendWithContext(_ context.Context, m *mail.SGMailV3) (*rest.Response, error) {
	f.got = m
	return &rest.Response{StatusCode: f.status, Body: "bad request"}, nil
}

func TestSendGridMailer(t *testing.T) {
	s := Submission{Name: "Ada", Email: "ada@example.com", Message: "Hello <script>alert(1)</script>\nSecond line"}

	unconfigured := NewSendGridMailer(SendGridConfig{APIKey: "k"})
	assert.ErrorIs(t, unconfigured.Send(context.Background(), s), ErrTransportNotConfigured)

	fs := &fakeSender{status: http.StatusAccepted}
	m := NewSendGridMailer(SendGridConfig{APIKey: "k", From: "site@bitpoet.dev", To: "hello@bitpoet.dev"})
	m.client = fs
	require.NoError(t, m.Send(context.Background(), s))
	require.NotNil(t, fs.got)
	assert.Equal(t, "New BitPoet inquiry from Ada", fs.got.Subject)
	assert.Equal(t, "ada@example.com", fs.got.ReplyTo.Address)
	require.Len(t, fs.got.Content, 2)
	assert.Equal(t, s.Message, fs.got.Content[0].Value)
	htmlBody := fs.got.Content[1].Value
	assert.Contains(t, htmlBody, "<strong>New contact form submission</strong>")
	assert.Contains(t, htmlBody, "<strong>Name:</strong> Ada")
	assert.NotContains(t, htmlBody, "<script>")
	assert.Contains(t, htmlBody, "<br")

	fs.status = http.StatusBadRequest
	assert.Error(t, m.Send(context.Background(), s))
}
