package kv

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

const scanBatch = 256

// RedisStore keeps entries as plain Redis strings under an optional
// namespace so several deployments can share one server.
type RedisStore struct {
	client    redis.UniversalClient
	namespace string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithNamespace prefixes every key written by the store.
func WithNamespace(ns string) RedisOption {
	return func(s *RedisStore) {
		s.namespace = ns
	}
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// DialRedis parses a redis:// URL and returns a connected store.
func DialRedis(ctx context.Context, url string, opts ...RedisOption) (*RedisStore, error) {
	o, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(o)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return NewRedisStore(client, opts...), nil
}

// Close closes the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping implements Pinger.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, err := s.client.Get(ctx, s.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("reading %q: %w", key, err)
	}
	return v, true, nil
}

// Set implements Store. Entries carry no Redis TTL; expiry is decided by
// the cache layer.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(ctx, s.namespace+key, value, 0).Err(); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.namespace+key).Err(); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// KeysWithPrefix implements Store using SCAN, never KEYS.
func (s *RedisStore) KeysWithPrefix(ctx context.Context, prefix string) ([]string, error) {
	pattern := globEscape(s.namespace+prefix) + "*"

	var keys []string
	iter := s.client.Scan(ctx, 0, pattern, scanBatch).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, strings.TrimPrefix(iter.Val(), s.namespace))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scanning prefix %q: %w", prefix, err)
	}

	// SCAN may return a key more than once.
	slices.Sort(keys)
	return slices.Compact(keys), nil
}

var globReplacer = strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`)

func globEscape(s string) string {
	return globReplacer.Replace(s)
}
