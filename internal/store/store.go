package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/danmuck/tagwire/internal/config"
	"github.com/danmuck/tagwire/internal/observability"
	"github.com/danmuck/tagwire/internal/protocol/buffer"
	"github.com/danmuck/tagwire/internal/protocol/wire"
	"github.com/rs/zerolog/log"
	"github.com/segmentio/ksuid"
)

var (
	ErrInvalidRecord = errors.New("store: value is not exactly one framed record")
	ErrInvalidType   = errors.New("store: invalid type name")
)

// Store keeps framed records under <prefix><type>/<ksuid> keys.
type Store struct {
	backend Backend
	prefix  string
}

func New(backend Backend, prefix string) *Store {
	return &Store{backend: backend, prefix: prefix}
}

// Open builds the configured backend and wraps it.
func Open(cfg config.StoreConfig) (*Store, error) {
	backend, err := OpenBackend(cfg)
	if err != nil {
		return nil, err
	}
	return New(backend, cfg.KeyPrefix), nil
}

func (s *Store) Backend() Backend {
	return s.backend
}

func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) typePrefix(typeName string) (string, error) {
	if typeName == "" || strings.ContainsAny(typeName, "/*?[]") {
		return "", fmt.Errorf("%w: %q", ErrInvalidType, typeName)
	}
	return s.prefix + typeName + "/", nil
}

func (s *Store) key(typeName string, id ksuid.KSUID) (string, error) {
	p, err := s.typePrefix(typeName)
	if err != nil {
		return "", err
	}
	return p + id.String(), nil
}

// PutRaw stores one framed record under a new id. Only the framing is checked;
// the record's fields are not decoded.
func (s *Store) PutRaw(ctx context.Context, typeName string, data []byte) (ksuid.KSUID, error) {
	n, err := wire.Skip(buffer.NewReader(data))
	if err != nil {
		return ksuid.Nil, fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if n != len(data) {
		return ksuid.Nil, fmt.Errorf("%w: record is %d bytes, value is %d", ErrInvalidRecord, n, len(data))
	}

	id := ksuid.New()
	key, err := s.key(typeName, id)
	if err != nil {
		return ksuid.Nil, err
	}
	err = s.backend.Put(ctx, key, data)
	observability.RecordStore(s.backend.Name(), "put", err)
	if err != nil {
		return ksuid.Nil, err
	}
	log.Debug().Str("backend", s.backend.Name()).Str("key", key).Int("bytes", len(data)).Msg("store.PutRaw")
	return id, nil
}

func (s *Store) GetRaw(ctx context.Context, typeName string, id ksuid.KSUID) ([]byte, error) {
	key, err := s.key(typeName, id)
	if err != nil {
		return nil, err
	}
	data, err := s.backend.Get(ctx, key)
	observability.RecordStore(s.backend.Name(), "get", err)
	return data, err
}

// Delete removes a record, returning ErrNotFound if it does not exist.
func (s *Store) Delete(ctx context.Context, typeName string, id ksuid.KSUID) error {
	if _, err := s.GetRaw(ctx, typeName, id); err != nil {
		return err
	}
	key, _ := s.key(typeName, id)
	err := s.backend.Delete(ctx, key)
	observability.RecordStore(s.backend.Name(), "delete", err)
	return err
}

// List returns the ids stored for typeName in id order, which follows creation time at
// one-second granularity.
func (s *Store) List(ctx context.Context, typeName string) ([]ksuid.KSUID, error) {
	prefix, err := s.typePrefix(typeName)
	if err != nil {
		return nil, err
	}
	keys, err := s.backend.Keys(ctx, prefix)
	observability.RecordStore(s.backend.Name(), "list", err)
	if err != nil {
		return nil, err
	}
	ids := make([]ksuid.KSUID, 0, len(keys))
	for _, k := range keys {
		id, err := ksuid.Parse(strings.TrimPrefix(k, prefix))
		if err != nil {
			log.Warn().Str("key", k).Err(err).Msg("store.List skipping foreign key")
			continue
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Put encodes rec with c and stores it under the codec's name.
func Put[R any](ctx context.Context, s *Store, c *wire.Codec[R], rec *R) (ksuid.KSUID, error) {
	data, err := c.Marshal(rec)
	if err != nil {
		return ksuid.Nil, err
	}
	return s.PutRaw(ctx, c.Name(), data)
}

// Get loads and decodes a record stored by Put.
func Get[R any](ctx context.Context, s *Store, c *wire.Codec[R], id ksuid.KSUID) (R, error) {
	var zero R
	data, err := s.GetRaw(ctx, c.Name(), id)
	if err != nil {
		return zero, err
	}
	return c.Unmarshal(data)
}
