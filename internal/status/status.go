// Package status reports whether the site's dependencies are reachable.
package status

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"bitpoet.dev/bitpoet-web/internal/platform/httpx"
)

// Component states.
const (
	StateOperational = "operational"
	StateDegraded    = "degraded"
	StateDisabled    = "disabled"
)

const (
	defaultTTL     = 30 * time.Second
	defaultTimeout = 3 * time.Second
)

// Summary captures the state of every probed component.
type Summary struct {
	State      string      `json:"state"`
	UpdatedAt  time.Time   `json:"updated_at"`
	Components []Component `json:"components"`
}

// Component is the result of one probe.
type Component struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

// Probe checks one dependency. Returning ErrDisabled marks the component as not
// configured rather than failing.
type Probe func(ctx context.Context) error

// ErrDisabled is returned by probes for dependencies that are switched off.
var ErrDisabled = disabledError{}

type disabledError struct{}

func (disabledError) Error() string { return "status: component disabled" }

// Checker runs probes concurrently and caches the summary for a short TTL.
type Checker struct {
	probes  map[string]Probe
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time

	mu      sync.Mutex
	cached  Summary
	expires time.Time
}

// Option configures a Checker.
type Option func(*Checker)

// WithTTL sets how long a summary is reused.
func WithTTL(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.ttl = d
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) {
		if now != nil {
			c.now = now
		}
	}
}

func NewChecker(probes map[string]Probe, opts ...Option) *Checker {
	c := &Checker{
		probes:  probes,
		ttl:     defaultTTL,
		timeout: defaultTimeout,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Set registers or replaces the probe for name and drops the cached summary.
func (c *Checker) Set(name string, probe Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.probes == nil {
		c.probes = map[string]Probe{}
	}
	c.probes[name] = probe
	c.expires = time.Time{}
}

// Summary returns the cached summary or probes every component again.
func (c *Checker) Summary(ctx context.Context) Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if now.Before(c.expires) {
		return clone(c.cached)
	}

	names := make([]string, 0, len(c.probes))
	for name := range c.probes {
		names = append(names, name)
	}
	sort.Strings(names)

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	components := make([]Component, len(names))
	var g errgroup.Group
	for i, name := range names {
		g.Go(func() error {
			components[i] = run(ctx, name, c.probes[name])
			return nil
		})
	}
	_ = g.Wait()

	summary := Summary{State: StateOperational, UpdatedAt: now, Components: components}
	for _, comp := range components {
		if comp.Status == StateDegraded {
			summary.State = StateDegraded
		}
	}
	c.cached = summary
	c.expires = now.Add(c.ttl)
	return clone(summary)
}

func run(ctx context.Context, name string, probe Probe) Component {
	err := probe(ctx)
	switch {
	case err == nil:
		return Component{Name: name, Status: StateOperational}
	case errors.Is(err, ErrDisabled):
		return Component{Name: name, Status: StateDisabled}
	default:
		return Component{Name: name, Status: StateDegraded, Error: err.Error()}
	}
}

func clone(s Summary) Summary {
	out := s
	out.Components = append([]Component(nil), s.Components...)
	return out
}

// Handler serves the summary as JSON: 200 when operational, 503 otherwise.
func (c *Checker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		summary := c.Summary(r.Context())
		status := http.StatusOK
		if summary.State != StateOperational {
			status = http.StatusServiceUnavailable
		}
		httpx.WriteJSON(w, status, summary)
	})
}
