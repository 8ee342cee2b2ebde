package store

import (
	"context"

	"github.com/dgraph-io/badger/v3"
	"github.com/pkg/errors"
)

type Badger struct {
	db *badger.DB
}

func OpenBadger(path string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(path).WithLogger(nil))
	if err != nil {
		return nil, errors.Wrapf(err, "store: open badger %s", path)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Name() string {
	return "badger"
}

func (b *Badger) Put(_ context.Context, key string, value []byte) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
	return errors.Wrapf(err, "store: badger put %s", key)
}

func (b *Badger) Get(_ context.Context, key string) ([]byte, error) {
	var data []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		data, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrapf(err, "store: badger get %s", key)
	}
	return data, nil
}

func (b *Badger) Delete(_ context.Context, key string) error {
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	return errors.Wrapf(err, "store: badger delete %s", key)
}

func (b *Badger) Keys(_ context.Context, prefix string) ([]string, error) {
	var keys []string
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefix)
		iter := txn.NewIterator(opts)
		defer iter.Close()

		for iter.Seek(opts.Prefix); iter.ValidForPrefix(opts.Prefix); iter.Next() {
			keys = append(keys, string(iter.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "store: badger iterate %s", prefix)
	}
	return keys, nil
}

func (b *Badger) Close() error {
	return b.db.Close()
}
