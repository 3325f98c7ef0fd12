package main

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"bitpoet.dev/bitpoet-web/internal/cache"
	"bitpoet.dev/bitpoet-web/internal/cms"
	"bitpoet.dev/bitpoet-web/internal/contact"
	"bitpoet.dev/bitpoet-web/internal/handlers"
	"bitpoet.dev/bitpoet-web/internal/i18n"
	"bitpoet.dev/bitpoet-web/internal/locale"
	"bitpoet.dev/bitpoet-web/internal/platform/config"
	"bitpoet.dev/bitpoet-web/internal/revalidate"
	"bitpoet.dev/bitpoet-web/internal/sanity"
	"bitpoet.dev/bitpoet-web/internal/seo"
	"bitpoet.dev/bitpoet-web/internal/status"
)

// planListener applies revalidation plans published by other instances.
type planListener interface {
	Run(ctx context.Context) error
}

var (
	newRedisClient  = redis.NewClient
	newPubSubClient = func(ctx context.Context, projectID string) (*pubsub.Client, error) {
		return pubsub.NewClient(ctx, projectID)
	}
)

// app holds the wired dependencies behind the router.
type app struct {
	cfg        config.Config
	logger     *zap.Logger
	store      *cache.Store
	content    cms.Content
	text       *i18n.Bundle
	loader     *handlers.Loader
	views      *renderer
	contact    http.Handler
	revalidate http.Handler
	registry   *prometheus.Registry
	listener   planListener
	status     *status.Checker
	closers    []func() error
	now        func() time.Time
}

// newApp wires content, catalogs, mail, rate limiting and revalidation from cfg.
// Clients opened before a failing step are closed again.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *app, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &app{
		cfg:      cfg,
		logger:   logger,
		store:    cache.New(cache.WithLogger(logger.Named("cache"))),
		registry: prometheus.NewRegistry(),
		now:      time.Now,
	}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	client := newSanityClient(cfg)
	if !client.Configured() {
		logger.Warn("sanity project id not set; pages render fallback content")
	}
	direct := cms.NewClient(client)
	a.content = cms.NewCached(direct, a.store)
	probes := map[string]status.Probe{
		"cms": func(ctx context.Context) error {
			_, err := direct.SiteSettings(ctx, locale.Default)
			if cms.IsNotConfigured(err) {
				return status.ErrDisabled
			}
			return err
		},
		"ratelimit": func(context.Context) error { return status.ErrDisabled },
		"pubsub":    func(context.Context) error { return status.ErrDisabled },
	}
	a.status = status.NewChecker(probes)

	text, err := i18n.Load(cfg.Paths.LocalesDir)
	if err != nil {
		return nil, fmt.Errorf("load catalogs: %w", err)
	}
	a.text = text

	views, err := newRenderer(cfg.Paths.TemplatesDir, text, cfg.Server.Dev)
	if err != nil {
		return nil, err
	}
	a.views = views

	a.loader = &handlers.Loader{
		Content: a.content,
		SEO:     seo.Builder{BaseURL: cfg.Site.URL, Settings: a.content, Logger: logger.Named("seo")},
		Text:    text,
		Logger:  logger,
		Now:     func() time.Time { return a.now() },
	}

	limiter, err := a.newLimiter()
	if err != nil {
		return nil, err
	}
	mailer := contact.NewSendGridMailer(contact.SendGridConfig{
		APIKey: cfg.Mail.SendGridAPIKey,
		From:   cfg.Mail.FromEmail,
		To:     cfg.Mail.ToEmail,
	})
	contactHandler := contact.NewHandler(limiter, mailer, text, logger.Named("contact"))
	a.contact = contactHandler

	revalidateOpts := []revalidate.Option{revalidate.WithLogger(logger.Named("revalidate"))}
	if cfg.PubSub.Enabled() {
		opts, err := a.newPubSub(ctx)
		if err != nil {
			return nil, err
		}
		revalidateOpts = append(revalidateOpts, opts...)
	}
	revalidateHandler := revalidate.NewHandler(cfg.Revalidate.Secret, a.store, revalidateOpts...)
	a.revalidate = revalidateHandler

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.registry.MustRegister(a.store.Collectors()...)
	a.registry.MustRegister(contactHandler.Collectors()...)
	a.registry.MustRegister(revalidateHandler.Collectors()...)
	return a, nil
}

func (a *app) newLimiter() (contact.Limiter, error) {
	rl := a.cfg.RateLimit
	switch rl.Store {
	case config.RateLimitStoreMemory:
		return contact.NewMemoryLimiter(rl.Limit, rl.Window, nil), nil
	case config.RateLimitStoreRedis:
		opts, err := redis.ParseURL(rl.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := newRedisClient(opts)
		a.closers = append(a.closers, client.Close)
		a.status.Set("ratelimit", func(ctx context.Context) error { return client.Ping(ctx).Err() })
		return contact.NewRedisLimiter(client, "bitpoet:contact", rl.Limit, rl.Window), nil
	default:
		return nil, nil
	}
}

func (a *app) newPubSub(ctx context.Context) ([]revalidate.Option, error) {
	ps := a.cfg.PubSub
	client, err := newPubSubClient(ctx, ps.ProjectID)
	if err != nil {
		return nil, fmt.Errorf("pubsub client: %w", err)
	}
	a.closers = append(a.closers, client.Close)

	origin := revalidate.NewOrigin()
	topic := client.Topic(ps.Topic)
	a.status.Set("pubsub", func(ctx context.Context) error {
		ok, err := topic.Exists(ctx)
		if err == nil && !ok {
			return fmt.Errorf("topic %s not found", ps.Topic)
		}
		return err
	})
	broadcaster, err := revalidate.NewPubSubBroadcaster(topic, origin)
	if err != nil {
		return nil, err
	}
	if ps.Subscription != "" {
		listener, err := revalidate.NewListener(client.Subscription(ps.Subscription), origin, a.store, a.logger.Named("revalidate"))
		if err != nil {
			return nil, err
		}
		a.listener = listener
	}
	a.logger.Info("cross-instance revalidation enabled",
		zap.String("topic", ps.Topic),
		zap.String("subscription", ps.Subscription),
		zap.String("origin", origin),
	)
	return []revalidate.Option{revalidate.WithBroadcaster(broadcaster)}, nil
}

// listen applies remote plans until ctx is done. A receive failure leaves this
// instance invalidating on its own webhooks only; it never stops the server.
func (a *app) listen(ctx context.Context) {
	if a.listener == nil {
		return
	}
	if err := a.listener.Run(ctx); err != nil {
		a.logger.Error("cross-instance revalidation stopped; continuing with local invalidation", zap.Error(err))
	}
}

// Close releases external clients.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("close error", zap.Error(err))
		}
	}
}

func (a *app) assetsDir() string {
	return filepath.Join(a.cfg.Paths.PublicDir, "assets")
}

func newSanityClient(cfg config.Config) *sanity.Client {
	return sanity.New(sanity.Config{
		ProjectID:  cfg.Sanity.ProjectID,
		Dataset:    cfg.Sanity.Dataset,
		APIVersion: cfg.Sanity.APIVersion,
		Token:      cfg.Sanity.ReadToken,
		UseCDN:     cfg.Sanity.UseCDN,
		Timeout:    cfg.Sanity.Timeout,
	})
}
