// Package store persists encoded records in a key-value backend.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/danmuck/tagwire/internal/config"
)

var ErrNotFound = errors.New("store: not found")

// Backend is a byte-oriented key-value store. Delete of a missing key is not an error.
type Backend interface {
	Name() string
	Put(ctx context.Context, key string, value []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	// Keys lists keys beginning with prefix in ascending byte order.
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// OpenBackend constructs the backend selected by cfg.
func OpenBackend(cfg config.StoreConfig) (Backend, error) {
	if err := config.ValidateStore(cfg); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(), nil
	case config.BackendPebble:
		return OpenPebble(cfg.Path)
	case config.BackendBadger:
		return OpenBadger(cfg.Path)
	case config.BackendRedis:
		return OpenRedis(cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("store: unsupported backend %q", cfg.Backend)
	}
}

// prefixEnd returns the smallest key greater than every key with the given prefix,
// or nil when no such key exists.
func prefixEnd(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
