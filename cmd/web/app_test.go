package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"bitpoet.dev/bitpoet-web/internal/platform/config"
)

func TestNewAppClosesOpenedClientsWhenALaterStepFails(t *testing.T) {
	mr := miniredis.RunT(t)
	prevRedis, prevPubSub := newRedisClient, newPubSubClient
	t.Cleanup(func() { newRedisClient, newPubSubClient = prevRedis, prevPubSub })

	var opened *redis.Client
	newRedisClient = func(opts *redis.Options) *redis.Client {
		opened = redis.NewClient(opts)
		return opened
	}
	newPubSubClient = func(context.Context, string) (*pubsub.Client, error) {
		return nil, errors.New("pubsub unavailable")
	}

	cfg := testConfig()
	cfg.RateLimit = config.RateLimitConfig{
		Store:    config.RateLimitStoreRedis,
		RedisURL: "redis://" + mr.Addr(),
		Limit:    5,
		Window:   time.Minute,
	}
	cfg.PubSub = config.PubSubConfig{ProjectID: "bitpoet-test", Topic: "revalidate"}

	a, err := newApp(context.Background(), cfg, zap.NewNop())
	require.ErrorContains(t, err, "pubsub unavailable")
	assert.Nil(t, a)
	require.NotNil(t, opened)
	assert.ErrorIs(t, opened.Ping(context.Background()).Err(), redis.ErrClosed)
}

type failingListener struct{ err error }

func (f failingListener) Run(context.Context) error { return f.err }

func TestListenerFailureKeepsLocalInvalidation(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	a, srv := newTestServer(t, &servicesContent{})
	a.logger = zap.New(core)
	a.listener = failingListener{err: errors.New("subscription not found")}

	a.listen(context.Background())
	assert.Equal(t, 1, logs.FilterMessageSnippet("cross-instance revalidation stopped").Len())

	rec := do(srv, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	hook := httptest.NewRecorder()
	srv.ServeHTTP(hook, httptest.NewRequest(http.MethodPost, "/api/revalidate?secret=s3cret", strings.NewReader(`{"payload":{"_type":"service"}}`)))
	assert.Equal(t, http.StatusOK, hook.Code)
}
