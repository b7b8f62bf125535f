package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/archethic-foundation/crypto-accumulator/logging"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "acc_export:"

type RedisStore struct {
	Client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and pings it. A zero ttl keeps exports
// until they are deleted.
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = 50
	opts.MinIdleConns = 2
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.ConnMaxIdleTime = 5 * time.Minute
	opts.MaxRetries = 3

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logging.Logger().Info().
		Int("pool_size", opts.PoolSize).
		Int("db", opts.DB).
		Dur("ttl", ttl).
		Msg("Redis export store connected")

	return &RedisStore{Client: client, ttl: ttl}, nil
}

func redisKey(id string) string {
	return redisKeyPrefix + id
}

func (s *RedisStore) Put(ctx context.Context, id string, export []byte) error {
	if err := s.Client.Set(ctx, redisKey(id), export, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store export: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, id string) ([]byte, error) {
	export, err := s.Client.Get(ctx, redisKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load export: %w", err)
	}
	return export, nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return s.Client.Del(ctx, redisKey(id)).Err()
}

func (s *RedisStore) Close() error {
	return s.Client.Close()
}
