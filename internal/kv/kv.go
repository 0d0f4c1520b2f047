// Package kv provides the byte-oriented key-value stores the cache and
// curation layers persist into.
package kv

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("kv store closed")

// Store is a flat byte-value store with prefix enumeration.
//
// Get returns found=false with a nil error for a missing key. Delete of a
// missing key is not an error. KeysWithPrefix returns keys in ascending
// byte order.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	KeysWithPrefix(ctx context.Context, prefix string) ([]string, error)
}

// Pinger is implemented by stores backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks s if it supports it. Embedded stores are always healthy.
func Ping(ctx context.Context, s Store) error {
	if p, ok := s.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
