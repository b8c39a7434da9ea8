package repository

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/comitanigiacomo/vibedesk-engine/internal/adapters/cache"
	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

func connectCacheRedis(t *testing.T) *redis.Client {
	t.Helper()
	_ = godotenv.Load("../../../.env")

	rdb, err := cache.NewRedisClient(context.Background(), cache.Options{
		Host:     getEnv("REDIS_HOST", "localhost"),
		Port:     getEnv("REDIS_PORT", "6379"),
		Password: getEnv("REDIS_PASSWORD", "secret_redis_pass_local"),
		DB:       3,
	})
	if err != nil {
		t.Skipf("Skipping Redis integration test: %v", err)
	}
	require.NoError(t, rdb.FlushDB(context.Background()).Err())
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

// slowReadStore returns what it read, but holds the first read until
// released, after the caller had the chance to merge.
type slowReadStore struct {
	domain.DocumentStore

	once    sync.Once
	read    chan struct{}
	release chan struct{}
}

func (s *slowReadStore) Get(ctx context.Context, userID string) (*domain.StoredDocument, error) {
	doc, err := s.DocumentStore.Get(ctx, userID)
	s.once.Do(func() {
		close(s.read)
		<-s.release
	})
	return doc, err
}

func premiumFlag(t *testing.T, doc *domain.StoredDocument) bool {
	t.Helper()
	var premium bool
	require.NoError(t, json.Unmarshal(doc.Fields[domain.FieldIsPremium], &premium))
	return premium
}

func TestCachedDocumentStore_ReadThrough(t *testing.T) {
	rdb := connectCacheRedis(t)
	ctx := context.Background()

	inner := NewInMemoryDocumentStore()
	store := NewCachedDocumentStore(inner, rdb, nil)
	require.NoError(t, inner.Merge(ctx, "u1", domain.DocumentPatch{domain.FieldStreakCount: 3}))

	doc, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `3`, string(doc.Fields[domain.FieldStreakCount]))
	assert.Equal(t, int64(1), rdb.Exists(ctx, "document:u1").Val(), "first read fills the cache")

	require.NoError(t, store.Merge(ctx, "u1", domain.DocumentPatch{domain.FieldStreakCount: 4}))
	assert.Zero(t, rdb.Exists(ctx, "document:u1").Val(), "merge invalidates")

	doc, err = store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.JSONEq(t, `4`, string(doc.Fields[domain.FieldStreakCount]))

	_, err = store.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrDocumentNotFound)
}

func TestCachedDocumentStore_ReadOverlappingMergeIsNotCached(t *testing.T) {
	rdb := connectCacheRedis(t)
	ctx := context.Background()

	inner := NewInMemoryDocumentStore()
	require.NoError(t, inner.Merge(ctx, "u1", domain.DocumentPatch{domain.FieldIsPremium: false}))

	slow := &slowReadStore{DocumentStore: inner, read: make(chan struct{}), release: make(chan struct{})}
	store := NewCachedDocumentStore(slow, rdb, nil)

	done := make(chan *domain.StoredDocument)
	go func() {
		doc, _ := store.Get(ctx, "u1")
		done <- doc
	}()

	<-slow.read
	require.NoError(t, store.Merge(ctx, "u1", domain.DocumentPatch{domain.FieldIsPremium: true}))
	close(slow.release)

	stale := <-done
	require.NotNil(t, stale)
	assert.False(t, premiumFlag(t, stale), "the overlapping read saw the old document")

	assert.Zero(t, rdb.Exists(ctx, "document:u1").Val(), "old document must not be cached")

	doc, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, premiumFlag(t, doc))
}
