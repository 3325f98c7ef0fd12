// Package sanity is a read-only GROQ query client for the Sanity content API.
package sanity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultAPIVersion = "2024-05-22"
	DefaultDataset    = "production"
	defaultTimeout    = 10 * time.Second
	maxErrorBody      = 2048
)

// ErrNotConfigured is returned by every query when no project id is set.
var ErrNotConfigured = errors.New("sanity: client is not configured (set BITPOET_SANITY_PROJECT_ID)")

var tracer = otel.Tracer("bitpoet.dev/bitpoet-web/internal/sanity")

// Config describes how to reach a Sanity dataset.
type Config struct {
	ProjectID  string
	Dataset    string
	APIVersion string
	Token      string
	UseCDN     bool
	Timeout    time.Duration
	// BaseURL overrides the computed API host, e.g. for tests.
	BaseURL    string
	HTTPClient *http.Client
}

// Client issues GROQ queries. A nil or unconfigured Client fails every query with
// ErrNotConfigured.
type Client struct {
	projectID  string
	dataset    string
	apiVersion string
	token      string
	baseURL    string
	http       *http.Client
}

// APIError is a non-2xx response from the query endpoint.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sanity: query failed with status %d: %s", e.Status, e.Body)
}

// New builds a Client. An empty ProjectID yields a client that is not configured.
func New(cfg Config) *Client {
	c := &Client{
		projectID:  strings.TrimSpace(cfg.ProjectID),
		dataset:    firstNonEmpty(cfg.Dataset, DefaultDataset),
		apiVersion: strings.TrimPrefix(firstNonEmpty(cfg.APIVersion, DefaultAPIVersion), "v"),
		token:      strings.TrimSpace(cfg.Token),
		http:       cfg.HTTPClient,
	}
	if c.http == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	switch {
	case strings.TrimSpace(cfg.BaseURL) != "":
		c.baseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	case c.projectID != "":
		host := "api"
		// Authenticated reads bypass the CDN.
		if cfg.UseCDN && c.token == "" {
			host = "apicdn"
		}
		c.baseURL = fmt.Sprintf("https://%s.%s.sanity.io", c.projectID, host)
	}
	return c
}

// Configured reports whether queries can be issued.
func (c *Client) Configured() bool {
	return c != nil && c.projectID != "" && c.baseURL != ""
}

// ProjectID returns the configured project id.
func (c *Client) ProjectID() string {
	if c == nil {
		return ""
	}
	return c.projectID
}

// Dataset returns the configured dataset.
func (c *Client) Dataset() string {
	if c == nil {
		return DefaultDataset
	}
	return c.dataset
}

// Query runs a GROQ query and decodes the result into out. A null result leaves out
// untouched. Params are JSON encoded as $name query parameters.
func (c *Client) Query(ctx context.Context, query string, params map[string]any, out any) (err error) {
	if !c.Configured() {
		return ErrNotConfigured
	}
	ctx, span := tracer.Start(ctx, "sanity.query", trace.WithSpanKind(trace.SpanKindClient))
	span.SetAttributes(
		attribute.String("sanity.project", c.projectID),
		attribute.String("sanity.dataset", c.dataset),
	)
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	endpoint, err := c.queryURL(query, params)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sanity: query request: %w", err)
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var payload struct {
		Result json.RawMessage `json:"result"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return fmt.Errorf("sanity: decode response: %w", err)
	}
	if len(payload.Result) == 0 || string(payload.Result) == "null" || out == nil {
		return nil
	}
	if err := json.Unmarshal(payload.Result, out); err != nil {
		return fmt.Errorf("sanity: decode result: %w", err)
	}
	return nil
}

func (c *Client) queryURL(query string, params map[string]any) (string, error) {
	endpoint, err := url.JoinPath(c.baseURL, "v"+c.apiVersion, "data", "query", c.dataset)
	if err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("query", query)
	for name, value := range params {
		raw, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("sanity: encode param %s: %w", name, err)
		}
		q.Set("$"+strings.TrimPrefix(name, "$"), string(raw))
	}
	return endpoint + "?" + q.Encode(), nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
