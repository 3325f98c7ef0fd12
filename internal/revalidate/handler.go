package revalidate

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/platform/httpx"
	"bitpoet.dev/bitpoet-web/internal/platform/requestctx"
)

const maxBodyBytes = 1 << 20

// Broadcaster forwards an applied plan to the other instances.
type Broadcaster interface {
	Broadcast(ctx context.Context, p Plan) error
}

// Handler serves POST /api/revalidate.
type Handler struct {
	secret      string
	store       Invalidator
	broadcaster Broadcaster
	logger      *zap.Logger
	now         func() time.Time
	requests    *prometheus.CounterVec
}

// Option configures a Handler.
type Option func(*Handler)

// WithBroadcaster publishes every applied plan through b.
func WithBroadcaster(b Broadcaster) Option {
	return func(h *Handler) { h.broadcaster = b }
}

// WithLogger sets the fallback logger used when the request carries none.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithClock overrides the clock used for the "now" field.
func WithClock(now func() time.Time) Option {
	return func(h *Handler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewHandler builds the webhook handler. An empty secret rejects every request.
func NewHandler(secret string, store Invalidator, opts ...Option) *Handler {
	h := &Handler{
		secret: secret,
		store:  store,
		logger: zap.NewNop(),
		now:    time.Now,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bitpoet",
			Subsystem: "revalidate",
			Name:      "requests_total",
			Help:      "Revalidation webhook calls by outcome.",
		}, []string{"outcome"}),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Collectors exposes the handler metrics for registration.
func (h *Handler) Collectors() []prometheus.Collector {
	return []prometheus.Collector{h.requests}
}

type webhookBody struct {
	Payload *struct {
		Type string `json:"_type"`
		Slug *struct {
			Current string `json:"current"`
		} `json:"slug"`
	} `json:"payload"`
}

func (b webhookBody) fields() (docType, slug string) {
	if b.Payload == nil {
		return "", ""
	}
	if b.Payload.Slug != nil {
		slug = b.Payload.Slug.Current
	}
	return b.Payload.Type, slug
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httpx.MethodNotAllowed(w, r, http.MethodPost)
		return
	}
	logger := requestctx.Logger(r.Context())
	if logger == requestctx.NoopLogger() {
		logger = h.logger
	}

	if !h.authorized(r.URL.Query().Get("secret")) {
		h.requests.WithLabelValues("unauthorized").Inc()
		logger.Warn("revalidate: invalid token")
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, "Invalid token")
		return
	}

	var body webhookBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&body); err != nil && err != io.EOF {
		logger.Warn("revalidate: undecodable body, treating as untyped", zap.Error(err))
		body = webhookBody{}
	}
	docType, slug := body.fields()
	plan := PlanFor(docType, slug)
	dropped := Apply(h.store, plan)

	if plan.All {
		h.requests.WithLabelValues("all").Inc()
		logger.Warn("revalidate: full invalidation",
			zap.String("type", plan.DocType),
			zap.String("reason", plan.Reason),
			zap.Int("dropped", dropped),
		)
	} else {
		h.requests.WithLabelValues("targeted").Inc()
		logger.Info("revalidate: applied",
			zap.String("type", plan.DocType),
			zap.String("slug", plan.Slug),
			zap.Strings("paths", plan.Paths),
			zap.Strings("tags", plan.Tags),
			zap.Int("dropped", dropped),
		)
	}

	if h.broadcaster != nil {
		if err := h.broadcaster.Broadcast(r.Context(), plan); err != nil {
			logger.Error("revalidate: broadcast failed", zap.Error(err))
		}
	}

	resp := map[string]any{
		"revalidated": true,
		"now":         h.now().UnixMilli(),
	}
	if plan.All {
		resp["message"] = "Revalidated all pages"
	} else {
		resp["paths"] = plan.Paths
	}
	httpx.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) authorized(got string) bool {
	if h.secret == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.secret)) == 1
}
