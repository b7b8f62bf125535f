// Package store publishes encoded public exports so that verifiers without
// access to the owning process can fetch them by accumulator id. Only public
// data goes through here; secret keys and element scalars never leave the
// accumulator.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/archethic-foundation/crypto-accumulator/config"
)

var ErrNotFound = errors.New("export not found")

type ExportStore interface {
	Put(ctx context.Context, id string, export []byte) error
	Get(ctx context.Context, id string) ([]byte, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// Open builds the backend named by cfg.Backend. The "none" backend yields a
// nil store.
func Open(cfg config.StoreConfig) (ExportStore, error) {
	switch cfg.Backend {
	case "none":
		return nil, nil
	case "", "memory":
		return NewMemoryStore(), nil
	case "redis":
		s, err := NewRedisStore(cfg.RedisURL, cfg.TTL())
		if err != nil {
			return nil, err
		}
		return s, nil
	case "leveldb":
		s, err := NewLevelDBStore(cfg.LevelDBDir)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func dup(in []byte) []byte {
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
