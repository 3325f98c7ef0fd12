package contact

import (
	"encoding/json"
	"errors"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/platform/httpx"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

// LocaleHeader lets the contact form pin the response language.
const LocaleHeader = "X-BitPoet-Locale"

const maxBodyBytes = 64 << 10

// Translator resolves UI strings. *i18n.Bundle implements it.
type Translator interface {
	T(l locale.Locale, key string) string
}

type accepted struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      string `json:"id"`
}

// Handler serves POST /api/contact.
type Handler struct {
	limiter     Limiter
	mailer      Mailer
	tr          Translator
	logger      *zap.Logger
	submissions *prometheus.CounterVec
}

// NewHandler wires the endpoint. A nil limiter leaves submissions unrestricted.
func NewHandler(limiter Limiter, mailer Mailer, tr Translator, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		limiter: limiter,
		mailer:  mailer,
		tr:      tr,
		logger:  logger,
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bitpoet",
			Subsystem: "contact",
			Name:      "submissions_total",
			Help:      "Contact submissions by outcome.",
		}, []string{"outcome"}),
	}
}

// Collectors exposes the handler metrics for registration.
func (h *Handler) Collectors() []prometheus.Collector {
	return []prometheus.Collector{h.submissions}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, r, http.MethodPost)
		return
	}
	ctx := r.Context()
	logger := requestctx.Logger(ctx)
	if logger == requestctx.NoopLogger() {
		logger = h.logger
	}
	l := ResolveLocale(r)

	if h.limiter != nil {
		ip := ClientIP(r)
		d, err := h.limiter.Allow(ctx, "contact:"+ip)
		switch {
		case err != nil:
			logger.Error("contact: rate limiter failed, allowing request", zap.Error(err))
		case !d.Allowed:
			h.submissions.WithLabelValues("rate_limited").Inc()
			secs := int(math.Ceil(d.RetryAfter.Seconds()))
			if secs < 1 {
				secs = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(secs))
			httpx.Fail(ctx, w, http.StatusTooManyRequests, httpx.Failure{
				Message:    h.t(l, "contact.api.rateLimited"),
				Reason:     httpx.ReasonRateLimited,
				RetryAfter: &secs,
			})
			return
		}
	}

	var sub Submission
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&sub); err != nil {
		h.submissions.WithLabelValues("invalid").Inc()
		httpx.Fail(ctx, w, http.StatusBadRequest, httpx.Failure{
			Message: h.t(l, "contact.api.invalid"),
			Reason:  httpx.ReasonInvalidPayload,
			Fields:  map[string]string{"_": "body must be a JSON object"},
		})
		return
	}
	sub = sub.Normalize()
	if err := sub.Validate(); err != nil {
		h.submissions.WithLabelValues("invalid").Inc()
		httpx.Fail(ctx, w, http.StatusBadRequest, httpx.Failure{
			Message: h.t(l, "contact.api.invalid"),
			Reason:  httpx.ReasonInvalidPayload,
			Fields:  FieldErrors(err),
		})
		return
	}

	id := ulid.Make().String()
	if err := h.mailer.Send(ctx, sub); err != nil {
		h.submissions.WithLabelValues("email_failed").Inc()
		logger.Error("contact: send failed",
			zap.String("submission_id", id),
			zap.Bool("not_configured", errors.Is(err, ErrTransportNotConfigured)),
			zap.Error(err),
		)
		httpx.Fail(ctx, w, http.StatusBadGateway, httpx.Failure{
			Message: h.t(l, "contact.api.error"),
			Reason:  httpx.ReasonEmailFailed,
		})
		return
	}

	h.submissions.WithLabelValues("sent").Inc()
	logger.Info("contact: submission sent", zap.String("submission_id", id), zap.String("locale", l.String()))
	httpx.WriteJSON(w, http.StatusOK, accepted{
		Success: true,
		Message: h.t(l, "contact.api.success"),
		ID:      id,
	})
}

func (h *Handler) t(l locale.Locale, key string) string {
	if h.tr == nil {
		return key
	}
	return h.tr.T(l, key)
}

// ResolveLocale reads the explicit locale header first, then Accept-Language.
func ResolveLocale(r *http.Request) locale.Locale {
	if v := r.Header.Get(LocaleHeader); v != "" {
		for _, part := range strings.Split(v, ",") {
			tag, _, _ := strings.Cut(strings.TrimSpace(part), ";")
			if l, ok := locale.Parse(tag); ok {
				return l
			}
		}
	}
	return locale.Match(r.Header.Get("Accept-Language"))
}

// ClientIP prefers the first X-Forwarded-For hop, then the connection address.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
