package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/archethic-foundation/crypto-accumulator/config"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const TestRedisURL = "redis://localhost:6379/15"

func exerciseStore(t *testing.T, s ExportStore) {
	ctx := context.Background()
	id := uuid.New().String()

	_, err := s.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	export := []byte("ACEX-first")
	require.NoError(t, s.Put(ctx, id, export))
	export[0] = 'X'

	got, err := s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ACEX-first"), got)

	require.NoError(t, s.Put(ctx, id, []byte("ACEX-second")))
	got, err = s.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []byte("ACEX-second"), got)

	require.NoError(t, s.Delete(ctx, id))
	_, err = s.Get(ctx, id)
	require.ErrorIs(t, err, ErrNotFound)

	// deleting twice is fine
	require.NoError(t, s.Delete(ctx, id))
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestLevelDBStore(t *testing.T) {
	s, err := NewLevelDBStore(filepath.Join(t.TempDir(), "exports"))
	require.NoError(t, err)
	defer s.Close()
	exerciseStore(t, s)
}

func TestLevelDBStoreUpdated(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "exports")
	s, err := NewLevelDBStore(dir)
	require.NoError(t, err)

	before := time.Now().Add(-time.Second)
	require.NoError(t, s.Put(context.Background(), "a", []byte{1}))
	ts, err := s.Updated("a")
	require.NoError(t, err)
	assert.True(t, ts.After(before))

	_, err = s.Updated("b")
	require.ErrorIs(t, err, ErrNotFound)

	// reopen: data survives
	require.NoError(t, s.Close())
	s, err = NewLevelDBStore(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Get(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, []byte{1}, got)
}

func setupRedisStore(t *testing.T, ttl time.Duration) *RedisStore {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = TestRedisURL
	}

	s, err := NewRedisStore(redisURL, ttl)
	if err != nil {
		t.Skipf("Redis not available for testing: %v", err)
	}
	t.Cleanup(func() {
		s.Client.FlushDB(context.Background())
		s.Close()
	})
	return s
}

func TestRedisStore(t *testing.T) {
	s := setupRedisStore(t, 0)
	exerciseStore(t, s)
}

func TestRedisStoreTTL(t *testing.T) {
	s := setupRedisStore(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, s.Put(ctx, "with-ttl", []byte{1}))
	ttl, err := s.Client.TTL(ctx, redisKey("with-ttl")).Result()
	require.NoError(t, err)
	assert.True(t, ttl > 0 && ttl <= time.Minute, "ttl %s", ttl)
}

func TestOpen(t *testing.T) {
	s, err := Open(config.StoreConfig{Backend: "none"})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = Open(config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = Open(config.StoreConfig{Backend: "leveldb", LevelDBDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &LevelDBStore{}, s)
	require.NoError(t, s.Close())

	_, err = Open(config.StoreConfig{Backend: "etcd"})
	assert.Error(t, err)
}
