package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	envPrefix            = "BITPOET_"
	defaultEnvFile       = ".env"
	defaultPort          = "8080"
	defaultReadTimeout   = 15 * time.Second
	defaultWriteTimeout  = 30 * time.Second
	defaultIdleTimeout   = 120 * time.Second
	defaultSiteURL       = "http://localhost:3000"
	defaultDataset       = "production"
	defaultAPIVersion    = "2024-05-22"
	defaultSanityTimeout = 10 * time.Second
	defaultRateLimit     = 5
	defaultRateWindow    = time.Minute
	defaultPageCacheTTL  = 60 * time.Second
	defaultTemplatesDir  = "templates"
	defaultPublicDir     = "public"
	defaultLocalesDir    = "locales"
)

// Rate limiter stores.
const (
	RateLimitStoreNone   = ""
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server     ServerConfig
	Site       SiteConfig
	Sanity     SanityConfig
	Revalidate RevalidateConfig
	Mail       MailConfig
	RateLimit  RateLimitConfig
	PubSub     PubSubConfig
	Secrets    SecretsConfig
	Paths      PathsConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Dev          bool
	PageCacheTTL time.Duration
}

// SiteConfig holds the public site settings.
type SiteConfig struct {
	URL string
}

// SanityConfig points the content client at a project and dataset.
type SanityConfig struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	ReadToken  string
	UseCDN     bool
	Timeout    time.Duration
}

// RevalidateConfig holds the webhook shared secret.
type RevalidateConfig struct {
	Secret string
}

// MailConfig configures the contact transport.
type MailConfig struct {
	SendGridAPIKey string
	FromEmail      string
	ToEmail        string
}

// RateLimitConfig controls contact throttling.
type RateLimitConfig struct {
	Store    string
	RedisURL string
	Limit    int
	Window   time.Duration
}

// PubSubConfig enables cross-instance revalidation when Topic is set.
type PubSubConfig struct {
	ProjectID    string
	Topic        string
	Subscription string
}

// Enabled reports whether a broadcast topic is configured.
func (c PubSubConfig) Enabled() bool { return c.Topic != "" }

// SecretsConfig configures Secret Manager lookups.
type SecretsConfig struct {
	ProjectID string
}

// PathsConfig locates on-disk assets.
type PathsConfig struct {
	TemplatesDir string
	PublicDir    string
	LocalesDir   string
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when configuration fields are invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError indicates that one or more required secrets are empty after resolution.
type MissingSecretsError struct {
	secrets []missingSecret
}

type missingSecret struct {
	name     string
	redacted string
}

// Error implements the error interface.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.secrets) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// RedactedNames returns the hashed secret identifiers, safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.redacted)
	}
	sort.Strings(out)
	return out
}

// Names returns the underlying secret identifiers.
func (e *MissingSecretsError) Names() []string {
	if e == nil || len(e.secrets) == 0 {
		return nil
	}
	out := make([]string, 0, len(e.secrets))
	for _, secret := range e.secrets {
		out = append(out, secret.name)
	}
	sort.Strings(out)
	return out
}

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile         string
	envMap          map[string]string
	useSystemEnv    bool
	secret          SecretResolver
	requiredSecrets []string
}

// WithEnvFile overrides the .env file path used for local overrides.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map that takes precedence over the OS environment.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for sm:// and secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// WithRequiredSecrets marks secret fields that must be non-empty after resolution,
// e.g. "Revalidate.Secret".
func WithRequiredSecrets(names ...string) Option {
	return func(o *loaderOptions) {
		o.requiredSecrets = append(o.requiredSecrets, names...)
	}
}

func newOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// EnvironmentValues returns the effective environment after applying the same
// precedence as Load. It lets callers build the secret fetcher before loading.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newOptions(opts)
	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return nil, err
	}

	values := make(map[string]string, len(dotEnvValues))
	for k, v := range dotEnvValues {
		values[k] = v
	}
	if options.useSystemEnv {
		for _, entry := range os.Environ() {
			key, value, ok := strings.Cut(entry, "=")
			if !ok || strings.TrimSpace(key) == "" {
				continue
			}
			values[key] = value
		}
	}
	for k, v := range options.envMap {
		values[k] = v
	}
	return values, nil
}

// Load assembles the configuration from defaults, the .env file, the environment
// and optional Secret Manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newOptions(opts)
	if options.secret == nil {
		options.secret = SecretResolverFunc(func(_ context.Context, ref string) (string, error) {
			return "", errSecretResolverNotConfigured
		})
	}

	dotEnvValues, err := loadDotEnv(options.envFile)
	if err != nil {
		return Config{}, err
	}

	raw := func(key string) (string, bool) {
		if value, ok := options.envMap[key]; ok {
			return value, true
		}
		if options.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		if value, ok := dotEnvValues[key]; ok {
			return value, true
		}
		return "", false
	}
	lookup := func(key string) (string, bool) {
		value, ok := raw(envPrefix + key)
		return strings.TrimSpace(value), ok
	}

	port := stringWithDefault(lookup, "PORT", "")
	if port == "" {
		if v, ok := raw("PORT"); ok && strings.TrimSpace(v) != "" {
			port = strings.TrimSpace(v)
		} else {
			port = defaultPort
		}
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         port,
			ReadTimeout:  durationWithDefault(lookup, "SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
			Dev:          boolWithDefault(lookup, "DEV", false),
			PageCacheTTL: durationWithDefault(lookup, "PAGE_CACHE_TTL", defaultPageCacheTTL),
		},
		Site: SiteConfig{
			URL: stringWithDefault(lookup, "SITE_URL", defaultSiteURL),
		},
		Sanity: SanityConfig{
			ProjectID:  stringWithDefault(lookup, "SANITY_PROJECT_ID", ""),
			Dataset:    stringWithDefault(lookup, "SANITY_DATASET", defaultDataset),
			APIVersion: stringWithDefault(lookup, "SANITY_API_VERSION", defaultAPIVersion),
			ReadToken:  stringWithDefault(lookup, "SANITY_READ_TOKEN", ""),
			UseCDN:     boolWithDefault(lookup, "SANITY_USE_CDN", true),
			Timeout:    durationWithDefault(lookup, "SANITY_TIMEOUT", defaultSanityTimeout),
		},
		Revalidate: RevalidateConfig{
			Secret: stringWithDefault(lookup, "REVALIDATE_SECRET", ""),
		},
		Mail: MailConfig{
			SendGridAPIKey: stringWithDefault(lookup, "SENDGRID_API_KEY", ""),
			FromEmail:      stringWithDefault(lookup, "SENDGRID_FROM_EMAIL", ""),
			ToEmail:        stringWithDefault(lookup, "SENDGRID_TO_EMAIL", ""),
		},
		RateLimit: RateLimitConfig{
			Store:    strings.ToLower(stringWithDefault(lookup, "RATELIMIT_STORE", RateLimitStoreNone)),
			RedisURL: stringWithDefault(lookup, "RATELIMIT_REDIS_URL", ""),
			Limit:    intWithDefault(lookup, "RATELIMIT_LIMIT", defaultRateLimit),
			Window:   durationWithDefault(lookup, "RATELIMIT_WINDOW", defaultRateWindow),
		},
		PubSub: PubSubConfig{
			ProjectID:    stringWithDefault(lookup, "PUBSUB_PROJECT_ID", ""),
			Topic:        stringWithDefault(lookup, "PUBSUB_TOPIC", ""),
			Subscription: stringWithDefault(lookup, "PUBSUB_SUBSCRIPTION", ""),
		},
		Secrets: SecretsConfig{
			ProjectID: stringWithDefault(lookup, "SECRETS_PROJECT_ID", ""),
		},
		Paths: PathsConfig{
			TemplatesDir: stringWithDefault(lookup, "TEMPLATES_DIR", defaultTemplatesDir),
			PublicDir:    stringWithDefault(lookup, "PUBLIC_DIR", defaultPublicDir),
			LocalesDir:   stringWithDefault(lookup, "LOCALES_DIR", defaultLocalesDir),
		},
	}

	// Secret Manager defaults to the Pub/Sub project when unspecified.
	if cfg.Secrets.ProjectID == "" {
		cfg.Secrets.ProjectID = cfg.PubSub.ProjectID
	}

	resolved := make(map[string]string)
	secretFields := []struct {
		name  string
		field *string
	}{
		{"Sanity.ReadToken", &cfg.Sanity.ReadToken},
		{"Revalidate.Secret", &cfg.Revalidate.Secret},
		{"Mail.SendGridAPIKey", &cfg.Mail.SendGridAPIKey},
	}
	for _, target := range secretFields {
		value, err := resolveSecret(ctx, *target.field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*target.field = value
		resolved[target.name] = strings.TrimSpace(value)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	if missing := findMissingSecrets(options.requiredSecrets, resolved); missing != nil {
		return Config{}, missing
	}
	return cfg, nil
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if value == "" || !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	if u, err := url.Parse(cfg.Site.URL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		invalid = append(invalid, "Site.URL")
	}
	switch cfg.RateLimit.Store {
	case RateLimitStoreNone, RateLimitStoreMemory:
	case RateLimitStoreRedis:
		if cfg.RateLimit.RedisURL == "" {
			invalid = append(invalid, "RateLimit.RedisURL")
		}
	default:
		invalid = append(invalid, "RateLimit.Store")
	}
	if cfg.RateLimit.Store != RateLimitStoreNone {
		if cfg.RateLimit.Limit <= 0 {
			invalid = append(invalid, "RateLimit.Limit")
		}
		if cfg.RateLimit.Window <= 0 {
			invalid = append(invalid, "RateLimit.Window")
		}
	}
	if cfg.PubSub.Topic != "" && cfg.PubSub.ProjectID == "" {
		invalid = append(invalid, "PubSub.ProjectID")
	}
	if cfg.PubSub.Subscription != "" && cfg.PubSub.Topic == "" {
		invalid = append(invalid, "PubSub.Topic")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	if len(required) == 0 {
		return nil
	}
	var missing []missingSecret
	seen := make(map[string]struct{})
	for _, name := range required {
		trimmed := strings.TrimSpace(name)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if resolved[trimmed] != "" {
			continue
		}
		missing = append(missing, missingSecret{name: trimmed, redacted: redactSecretName(trimmed)})
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{secrets: missing}
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func redactSecretName(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:8])
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	values, err := godotenv.Read(absPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", absPath, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && value != "" {
		return value
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		switch strings.ToLower(value) {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return fallback
}
