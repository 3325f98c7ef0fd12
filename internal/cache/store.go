// Package cache provides the tagged, time-boxed memoization used in front of the CMS.
package cache

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const pruneEvery = 64

// Store memoizes values by key with a TTL and a set of invalidation tags.
// The zero value is not usable; construct with New.
type Store struct {
	mu       sync.Mutex
	entries  map[string]*entry
	tagIndex map[string]map[string]struct{}
	// generations bump on invalidation so in-flight fetches started before it are
	// not stored.
	tagGen    map[string]uint64
	globalGen uint64
	sets      int

	group   singleflight.Group
	now     func() time.Time
	logger  *zap.Logger
	metrics *metrics
}

type entry struct {
	value   any
	expires time.Time
	tags    []string
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the time source (primarily for tests).
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger used for invalidation diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New constructs an empty Store.
func New(opts ...Option) *Store {
	s := &Store{
		entries:  make(map[string]*entry),
		tagIndex: make(map[string]map[string]struct{}),
		tagGen:   make(map[string]uint64),
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newMetrics(s.Len)
	return s
}

// Get returns a live value for key.
func (s *Store) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	if !s.now().Before(e.expires) {
		s.removeLocked(key)
		return nil, false
	}
	return e.value, true
}

// Set stores value under key for ttl. A non-positive ttl stores nothing.
func (s *Store) Set(key string, value any, ttl time.Duration, tags ...string) {
	if ttl <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setLocked(key, value, ttl, tags)
}

func (s *Store) setLocked(key string, value any, ttl time.Duration, tags []string) {
	s.removeLocked(key)
	now := s.now()
	s.entries[key] = &entry{value: value, expires: now.Add(ttl), tags: tags}
	for _, tag := range tags {
		keys, ok := s.tagIndex[tag]
		if !ok {
			keys = make(map[string]struct{})
			s.tagIndex[tag] = keys
		}
		keys[key] = struct{}{}
	}
	s.sets++
	if s.sets%pruneEvery == 0 {
		s.pruneLocked(now)
	}
}

func (s *Store) removeLocked(key string) {
	e, ok := s.entries[key]
	if !ok {
		return
	}
	delete(s.entries, key)
	for _, tag := range e.tags {
		if keys, ok := s.tagIndex[tag]; ok {
			delete(keys, key)
			if len(keys) == 0 {
				delete(s.tagIndex, tag)
			}
		}
	}
}

func (s *Store) pruneLocked(now time.Time) {
	for key, e := range s.entries {
		if !now.Before(e.expires) {
			s.removeLocked(key)
		}
	}
}

// InvalidateTags drops every entry carrying any of tags and returns how many were removed.
func (s *Store) InvalidateTags(tags ...string) int {
	s.mu.Lock()
	removed := 0
	for _, tag := range tags {
		s.tagGen[tag]++
		keys := s.tagIndex[tag]
		for key := range keys {
			s.removeLocked(key)
			removed++
		}
	}
	s.mu.Unlock()
	s.metrics.invalidations.WithLabelValues("tag").Add(float64(len(tags)))
	s.logger.Debug("cache tags invalidated", zap.Strings("tags", tags), zap.Int("removed", removed))
	return removed
}

// InvalidateAll drops every entry.
func (s *Store) InvalidateAll() int {
	s.mu.Lock()
	removed := len(s.entries)
	s.entries = make(map[string]*entry)
	s.tagIndex = make(map[string]map[string]struct{})
	s.globalGen++
	s.mu.Unlock()
	s.metrics.invalidations.WithLabelValues("all").Inc()
	s.logger.Debug("cache cleared", zap.Int("removed", removed))
	return removed
}

// Len reports the number of stored entries, including expired ones not yet pruned.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Tags lists tags that currently index at least one entry.
func (s *Store) Tags() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.tagIndex))
	for tag := range s.tagIndex {
		out = append(out, tag)
	}
	sort.Strings(out)
	return out
}

type generation struct {
	global uint64
	tags   []uint64
}

func (s *Store) snapshotLocked(tags []string) generation {
	g := generation{global: s.globalGen, tags: make([]uint64, len(tags))}
	for i, tag := range tags {
		g.tags[i] = s.tagGen[tag]
	}
	return g
}

func (s *Store) currentLocked(tags []string, g generation) bool {
	if s.globalGen != g.global {
		return false
	}
	for i, tag := range tags {
		if s.tagGen[tag] != g.tags[i] {
			return false
		}
	}
	return true
}

// Do returns the cached value for key or calls fn once to produce it, no matter how
// many goroutines ask concurrently. Errors are returned to every waiter and never
// cached. A result whose tags were invalidated while fn ran is returned but not stored.
func (s *Store) Do(ctx context.Context, key string, ttl time.Duration, tags []string, fn func(context.Context) (any, error)) (any, error) {
	if v, ok := s.Get(key); ok {
		s.metrics.hits.Inc()
		return v, nil
	}
	s.metrics.misses.Inc()

	v, err, _ := s.group.Do(key, func() (any, error) {
		s.mu.Lock()
		gen := s.snapshotLocked(tags)
		s.mu.Unlock()

		// One caller going away must not fail the others sharing this fetch.
		value, err := fn(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if ttl > 0 {
			s.mu.Lock()
			if s.currentLocked(tags, gen) {
				s.setLocked(key, value, ttl, tags)
			} else {
				s.logger.Debug("cache result discarded after invalidation", zap.String("key", key))
			}
			s.mu.Unlock()
		}
		return value, nil
	})
	return v, err
}

// Memoize is a typed wrapper around Store.Do.
func Memoize[T any](ctx context.Context, s *Store, key string, ttl time.Duration, tags []string, fn func(context.Context) (T, error)) (T, error) {
	var zero T
	if s == nil {
		return fn(ctx)
	}
	v, err := s.Do(ctx, key, ttl, tags, func(ctx context.Context) (any, error) {
		return fn(ctx)
	})
	if err != nil {
		return zero, err
	}
	typed, ok := v.(T)
	if !ok && v != nil {
		return zero, fmt.Errorf("cache: key %q holds %T, not %T", key, v, zero)
	}
	return typed, nil
}
