// Package cache layers TTL-aware, typed entries over a kv.Store.
//
// Entries live in logical namespaces. Reads never fail: a missing, expired,
// or undecodable entry is a miss. Expired entries are only removed when
// something new is written to the same namespace.
package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/donaldgifford/market-comps/internal/kv"
	"github.com/donaldgifford/market-comps/internal/metrics"
	domain "github.com/donaldgifford/market-comps/pkg/types"
)

const separator = "/"

// envelope is the stored form of every entry.
type envelope struct {
	CachedAt time.Time `msgpack:"cached_at"`
	Policy   Policy    `msgpack:"policy"`
	Payload  []byte    `msgpack:"payload"`
}

// Store owns the kv keys of every namespace built on it.
type Store struct {
	kv      kv.Store
	locks   *kv.KeyMutex
	nowFunc func() time.Time
	logger  *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithNowFunc overrides the clock, for tests.
func WithNowFunc(f func() time.Time) Option {
	return func(s *Store) {
		s.nowFunc = f
	}
}

// WithLogger sets the logger for corrupt-entry and collection reports.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithLocks shares a KeyMutex with other writers of the same kv.Store.
func WithLocks(m *kv.KeyMutex) Option {
	return func(s *Store) {
		s.locks = m
	}
}

// NewStore creates a Store over backend.
func NewStore(backend kv.Store, opts ...Option) *Store {
	s := &Store{
		kv:      backend,
		locks:   kv.NewKeyMutex(),
		nowFunc: time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Entry is a cached value with its metadata.
type Entry[T any] struct {
	Value    T
	CachedAt time.Time
	Policy   Policy
}

// Cache is one typed namespace of a Store.
type Cache[T any] struct {
	store     *Store
	namespace string
}

// New returns the namespace name of s, holding values of type T.
func New[T any](s *Store, name string) *Cache[T] {
	return &Cache[T]{store: s, namespace: name}
}

// Name returns the namespace name.
func (c *Cache[T]) Name() string {
	return c.namespace
}

func (c *Cache[T]) prefix() string {
	return c.namespace + separator
}

func (c *Cache[T]) fullKey(key string) string {
	return c.prefix() + key
}

// Get returns the value under key if present and valid.
func (c *Cache[T]) Get(ctx context.Context, key string) (T, bool) {
	e, ok := c.GetEntry(ctx, key)
	return e.Value, ok
}

// GetEntry is Get with the entry metadata.
func (c *Cache[T]) GetEntry(ctx context.Context, key string) (Entry[T], bool) {
	var zero Entry[T]

	raw, ok, err := c.store.kv.Get(ctx, c.fullKey(key))
	if err != nil {
		c.store.logger.Warn("cache read failed",
			"cache", c.namespace, "key", key, "error", err)
		metrics.CacheMissesTotal.WithLabelValues(c.namespace).Inc()
		return zero, false
	}
	if !ok {
		metrics.CacheMissesTotal.WithLabelValues(c.namespace).Inc()
		return zero, false
	}

	e, err := decode[T](raw)
	if err != nil {
		c.store.logger.Warn("cache entry corrupt, treating as miss",
			"cache", c.namespace, "key", key, "error", err)
		metrics.CacheMissesTotal.WithLabelValues(c.namespace).Inc()
		return zero, false
	}

	if !e.Policy.Valid(e.CachedAt, c.store.nowFunc()) {
		metrics.CacheMissesTotal.WithLabelValues(c.namespace).Inc()
		return zero, false
	}

	metrics.CacheHitsTotal.WithLabelValues(c.namespace).Inc()
	return e, true
}

// Put stores value under key. Before writing it drops every entry in the
// namespace that has expired or does not decode as T. Collection failures are logged, never
// returned.
func (c *Cache[T]) Put(ctx context.Context, key string, value T, policy Policy) error {
	payload, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s entry: %w", c.namespace, err)
	}
	raw, err := msgpack.Marshal(envelope{
		CachedAt: c.store.nowFunc(),
		Policy:   policy,
		Payload:  payload,
	})
	if err != nil {
		return fmt.Errorf("encoding %s envelope: %w", c.namespace, err)
	}

	if _, err := c.collect(ctx, key); err != nil {
		c.store.logger.Warn("cache collection failed",
			"cache", c.namespace, "error", err)
	}

	full := c.fullKey(key)
	unlock := c.store.locks.Lock(full)
	defer unlock()

	if err := c.store.kv.Set(ctx, full, raw); err != nil {
		return fmt.Errorf("writing %s entry: %w", c.namespace, err)
	}
	metrics.CacheWritesTotal.WithLabelValues(c.namespace).Inc()
	return nil
}

// Remove deletes the entry under key.
func (c *Cache[T]) Remove(ctx context.Context, key string) error {
	full := c.fullKey(key)
	unlock := c.store.locks.Lock(full)
	defer unlock()

	if err := c.store.kv.Delete(ctx, full); err != nil {
		return fmt.Errorf("removing %s entry: %w", c.namespace, err)
	}
	return nil
}

// Keys lists the keys stored in the namespace, valid or not.
func (c *Cache[T]) Keys(ctx context.Context) ([]string, error) {
	full, err := c.store.kv.KeysWithPrefix(ctx, c.prefix())
	if err != nil {
		return nil, fmt.Errorf("listing %s keys: %w", c.namespace, err)
	}
	keys := make([]string, len(full))
	for i, k := range full {
		keys[i] = strings.TrimPrefix(k, c.prefix())
	}
	return keys, nil
}

// Collect drops expired and undecodable entries and returns how many went.
func (c *Cache[T]) Collect(ctx context.Context) (int, error) {
	return c.collect(ctx, "")
}

// collect skips the key about to be written.
func (c *Cache[T]) collect(ctx context.Context, skip string) (int, error) {
	keys, err := c.Keys(ctx)
	if err != nil {
		return 0, err
	}

	now := c.store.nowFunc()
	removed := 0
	var errs []error
	for _, key := range keys {
		if key == skip {
			continue
		}
		dropped, err := c.collectOne(ctx, key, now)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if dropped {
			removed++
		}
	}

	if removed > 0 {
		c.store.logger.Debug("cache entries collected",
			"cache", c.namespace, "removed", removed)
	}
	return removed, errors.Join(errs...)
}

// collectOne re-reads under the key lock so a concurrent Put of a fresh
// value is never deleted.
func (c *Cache[T]) collectOne(ctx context.Context, key string, now time.Time) (bool, error) {
	full := c.fullKey(key)
	unlock := c.store.locks.Lock(full)
	defer unlock()

	raw, ok, err := c.store.kv.Get(ctx, full)
	if err != nil || !ok {
		return false, err
	}

	// A payload that does not decode as T is as unreadable as a broken
	// envelope: every Get of it is a miss.
	reason := ""
	entry, derr := decode[T](raw)
	switch {
	case derr != nil:
		reason = "corrupt"
	case !entry.Policy.Valid(entry.CachedAt, now):
		reason = "expired"
	}
	if reason == "" {
		return false, nil
	}

	if err := c.store.kv.Delete(ctx, full); err != nil {
		return false, err
	}
	metrics.CacheEvictionsTotal.WithLabelValues(c.namespace, reason).Inc()
	return true, nil
}

func decode[T any](raw []byte) (Entry[T], error) {
	var e Entry[T]

	var env envelope
	if err := msgpack.Unmarshal(raw, &env); err != nil {
		return e, fmt.Errorf("%w: %w", domain.ErrCacheCorruption, err)
	}
	if err := msgpack.Unmarshal(env.Payload, &e.Value); err != nil {
		return e, fmt.Errorf("%w: %w", domain.ErrCacheCorruption, err)
	}
	e.CachedAt = env.CachedAt
	e.Policy = env.Policy
	return e, nil
}
