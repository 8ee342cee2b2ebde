package store

import (
	"context"

	"github.com/cockroachdb/pebble"
	"github.com/pkg/errors"
)

type Pebble struct {
	db *pebble.DB
}

func OpenPebble(path string) (*Pebble, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, errors.Wrapf(err, "store: open pebble %s", path)
	}
	return &Pebble{db: db}, nil
}

func (p *Pebble) Name() string {
	return "pebble"
}

func (p *Pebble) Put(_ context.Context, key string, value []byte) error {
	if err := p.db.Set([]byte(key), value, pebble.Sync); err != nil {
		return errors.Wrapf(err, "store: pebble put %s", key)
	}
	return nil
}

func (p *Pebble) Get(_ context.Context, key string) ([]byte, error) {
	data, closer, err := p.db.Get([]byte(key))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: pebble get %s", key)
	}
	defer closer.Close()
	return append([]byte(nil), data...), nil
}

func (p *Pebble) Delete(_ context.Context, key string) error {
	if err := p.db.Delete([]byte(key), pebble.Sync); err != nil {
		return errors.Wrapf(err, "store: pebble delete %s", key)
	}
	return nil
}

func (p *Pebble) Keys(_ context.Context, prefix string) ([]string, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(prefix),
		UpperBound: prefixEnd([]byte(prefix)),
	})
	if err != nil {
		return nil, errors.Wrapf(err, "store: pebble iterate %s", prefix)
	}
	var keys []string
	for iter.First(); iter.Valid(); iter.Next() {
		keys = append(keys, string(iter.Key()))
	}
	if err := iter.Close(); err != nil {
		return nil, errors.Wrapf(err, "store: pebble iterate %s", prefix)
	}
	return keys, nil
}

func (p *Pebble) Close() error {
	return p.db.Close()
}
