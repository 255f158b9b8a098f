package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	pkgerrors "github.com/absmach/fedavg/pkg/errors"
	"github.com/dgraph-io/badger/v4"
)

const defaultBadgerDir = "./data"

type badgerStorage[V any] struct {
	sync.RWMutex

	db     *badger.DB
	prefix []byte
}

// NewBadgerStorage opens a Badger database under dataDir. Keys are kept
// under the given bucket prefix.
func NewBadgerStorage[V any](dataDir, bucket string) (*badgerStorage[V], error) {
	if dataDir == "" {
		dataDir = defaultBadgerDir
	}

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	opts := badger.DefaultOptions(filepath.Join(dataDir, "badger.db"))
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open Badger database: %w", err)
	}

	return &badgerStorage[V]{
		db:     db,
		prefix: []byte(bucket + "/"),
	}, nil
}

func (s *badgerStorage[V]) key(k string) []byte {
	return append(append([]byte(nil), s.prefix...), k...)
}

func (s *badgerStorage[V]) Create(_ context.Context, key string, value V) error {
	if key == "" {
		return pkgerrors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(s.key(key))
		if err == nil {
			return pkgerrors.ErrEntityExists
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("failed to check key existence: %w", err)
		}

		return s.writeValue(txn, key, value)
	})
}

func (s *badgerStorage[V]) Get(_ context.Context, key string) (V, error) {
	var result V
	if key == "" {
		return result, pkgerrors.ErrEmptyKey
	}

	s.RLock()
	defer s.RUnlock()

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.key(key))
		if err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return pkgerrors.ErrNotFound
			}

			return fmt.Errorf("failed to get key: %w", err)
		}

		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &result)
		})
	})

	return result, err
}

func (s *badgerStorage[V]) Update(_ context.Context, key string, value V) error {
	if key == "" {
		return pkgerrors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(s.key(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return pkgerrors.ErrNotFound
			}

			return fmt.Errorf("failed to check key existence: %w", err)
		}

		return s.writeValue(txn, key, value)
	})
}

// List walks the bucket in key order; Badger iterates keys sorted.
func (s *badgerStorage[V]) List(_ context.Context, offset, limit uint64) (result []V, total uint64, err error) {
	s.RLock()
	defer s.RUnlock()

	err = s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = s.prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			idx := total
			total++
			if idx < offset || idx >= offset+limit {
				continue
			}

			var v V
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &v)
			}); err != nil {
				return fmt.Errorf("failed to decode value: %w", err)
			}
			result = append(result, v)
		}

		return nil
	})
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list keys: %w", err)
	}

	return result, total, nil
}

func (s *badgerStorage[V]) Delete(_ context.Context, key string) error {
	if key == "" {
		return pkgerrors.ErrEmptyKey
	}

	s.Lock()
	defer s.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(s.key(key))
	})
}

func (s *badgerStorage[V]) Close() error {
	s.Lock()
	defer s.Unlock()

	return s.db.Close()
}

func (s *badgerStorage[V]) writeValue(txn *badger.Txn, key string, value V) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return txn.Set(s.key(key), data)
}
