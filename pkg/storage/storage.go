package storage

import (
	"context"
	"fmt"
	"io"
)

// Storage is a keyed collection of values of a single type. List returns
// values ordered by key.
type Storage[V any] interface {
	Create(ctx context.Context, key string, value V) error
	Get(ctx context.Context, key string) (V, error)
	Update(ctx context.Context, key string, value V) error
	List(ctx context.Context, offset, limit uint64) ([]V, uint64, error)
	Delete(ctx context.Context, key string) error
}

type Config struct {
	Type       string `env:"STORAGE_TYPE"  envDefault:"memory"`
	BadgerPath string `env:"BADGER_PATH"   envDefault:"./data"`
}

// New returns the backend named by cfg.Type. The returned closer is nil for
// the in-memory backend.
func New[V any](cfg Config, bucket string) (Storage[V], io.Closer, error) {
	switch cfg.Type {
	case "badger":
		s, err := NewBadgerStorage[V](cfg.BadgerPath, bucket)
		if err != nil {
			return nil, nil, err
		}

		return s, s, nil
	case "memory", "":
		return NewInMemoryStorage[V](), nil, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage type: %s", cfg.Type)
	}
}
