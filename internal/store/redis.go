package store

import (
	"context"
	"sort"
	"strings"

	"github.com/pkg/errors"
	redis "github.com/redis/go-redis/v9"
)

const redisDataField = "data"

type Redis struct {
	client redis.UniversalClient
}

// NewRedis wraps an existing client. Records are stored as hashes with a single data field.
func NewRedis(client redis.UniversalClient) (*Redis, error) {
	if client == nil {
		return nil, errors.New("store: redis client is nil")
	}
	return &Redis{client: client}, nil
}

func OpenRedis(addr string, db int) (*Redis, error) {
	return NewRedis(redis.NewClient(&redis.Options{Addr: addr, DB: db}))
}

func (r *Redis) Name() string {
	return "redis"
}

func (r *Redis) Put(ctx context.Context, key string, value []byte) error {
	if err := r.client.HSet(ctx, key, redisDataField, value).Err(); err != nil {
		return errors.Wrapf(err, "store: redis put %s", key)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.HGet(ctx, key, redisDataField).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: redis get %s", key)
	}
	return data, nil
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return errors.Wrapf(err, "store: redis delete %s", key)
	}
	return nil
}

func (r *Redis) Keys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := r.client.Scan(ctx, 0, globEscape(prefix)+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, errors.Wrapf(err, "store: redis scan %s", prefix)
	}
	sort.Strings(keys)
	// SCAN may return a key more than once.
	out := keys[:0]
	for i, k := range keys {
		if i == 0 || k != keys[i-1] {
			out = append(out, k)
		}
	}
	return out, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func globEscape(s string) string {
	var b strings.Builder
	for _, c := range s {
		switch c {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(c)
	}
	return b.String()
}
