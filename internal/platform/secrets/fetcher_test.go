package secrets

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	secretmanager "cloud.google.com/go/secretmanager/apiv1"
	"cloud.google.com/go/secretmanager/apiv1/secretmanagerpb"
	"github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const hookResource = "projects/bitpoet/secrets/revalidate_secret/versions/latest"

func writeFallback(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ".secrets.local")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestResolveCachesRemoteSecret(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values[hookResource] = "remote-secret"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("bitpoet"), WithLogger(zap.NewNop()))
	require.NoError(t, err)
	defer fetcher.Close()

	for i := 0; i < 3; i++ {
		got, err := fetcher.Resolve(ctx, "secret://revalidate_secret")
		require.NoError(t, err)
		assert.Equal(t, "remote-secret", got)
	}
	assert.Equal(t, 1, client.callCount(hookResource))

	fetcher.Invalidate("sm://revalidate_secret")
	_, err = fetcher.Resolve(ctx, "secret://revalidate_secret")
	require.NoError(t, err)
	assert.Equal(t, 2, client.callCount(hookResource))
}

func TestResolveHonoursVersionAndProjectQuery(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.values["projects/other/secrets/sendgrid_key/versions/5"] = "v5"

	fetcher, err := NewFetcher(ctx, WithSecretManagerClient(client), WithProject("bitpoet"))
	require.NoError(t, err)

	got, err := fetcher.ResolveSecret(ctx, "secret://sendgrid_key?version=5&project=other")
	require.NoError(t, err)
	assert.Equal(t, "v5", got)
}

func TestResolveFallsBackWhenSecretManagerUnavailable(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errors[hookResource] = status.Error(codes.PermissionDenied, "denied")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithProject("bitpoet"),
		WithFallbackFile(writeFallback(t, "# local\nsm://revalidate_secret=local-secret\n")),
	)
	require.NoError(t, err)

	got, err := fetcher.Resolve(ctx, "secret://revalidate_secret")
	require.NoError(t, err)
	assert.Equal(t, "local-secret", got)
}

func TestResolveDoesNotFallbackOnNotFound(t *testing.T) {
	ctx := context.Background()
	client := newFakeSecretClient()
	client.errors[hookResource] = status.Error(codes.NotFound, "missing")

	fetcher, err := NewFetcher(ctx,
		WithSecretManagerClient(client),
		WithProject("bitpoet"),
		WithFallbackFile(writeFallback(t, "secret://revalidate_secret=local-secret\n")),
	)
	require.NoError(t, err)

	_, err = fetcher.Resolve(ctx, "secret://revalidate_secret")
	require.Error(t, err)
	assert.Equal(t, codes.NotFound, status.Code(errors.Unwrap(err)))
}

func TestNewFetcherWithoutCredentialsUsesFallback(t *testing.T) {
	original := secretManagerClientFactory
	secretManagerClientFactory = func(context.Context, ...option.ClientOption) (*secretmanager.Client, error) {
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { secretManagerClientFactory = original })

	fetcher, err := NewFetcher(context.Background(),
		WithProject("bitpoet"),
		WithFallbackFile(writeFallback(t, "secret://revalidate_secret=local-secret\n")),
	)
	require.NoError(t, err)
	defer fetcher.Close()

	value, err := fetcher.Resolve(context.Background(), "secret://revalidate_secret")
	require.NoError(t, err)
	assert.Equal(t, "local-secret", value)

	_, err = fetcher.Resolve(context.Background(), "secret://unknown")
	assert.Error(t, err)
}

func TestParseReference(t *testing.T) {
	ref, err := parseReference("sm://api/key?version=3")
	require.NoError(t, err)
	assert.Equal(t, "secret://api/key", ref.Canonical)
	assert.Equal(t, "api/key", ref.Secret)
	assert.Equal(t, "3", ref.Version)

	for _, bad := range []string{"", "https://x", "secret://"} {
		_, err := parseReference(bad)
		assert.Error(t, err, bad)
	}
}

type fakeSecretClient struct {
	mu      sync.Mutex
	values  map[string]string
	errors  map[string]error
	counter map[string]int
}

func newFakeSecretClient() *fakeSecretClient {
	return &fakeSecretClient{
		values:  make(map[string]string),
		errors:  make(map[string]error),
		counter: make(map[string]int),
	}
}

func (f *fakeSecretClient) AccessSecretVersion(_ context.Context, req *secretmanagerpb.AccessSecretVersionRequest, _ ...gax.CallOption) (*secretmanagerpb.AccessSecretVersionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name := req.GetName()
	f.counter[name]++
	if err, ok := f.errors[name]; ok {
		return nil, err
	}
	if value, ok := f.values[name]; ok {
		return &secretmanagerpb.AccessSecretVersionResponse{
			Payload: &secretmanagerpb.SecretPayload{Data: []byte(value)},
		}, nil
	}
	return nil, status.Error(codes.NotFound, "not found")
}

func (f *fakeSecretClient) Close() error { return nil }

func (f *fakeSecretClient) callCount(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counter[name]
}
