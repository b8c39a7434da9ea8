package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/comitanigiacomo/vibedesk-engine/internal/core/domain"
)

var _ domain.DocumentStore = (*CachedDocumentStore)(nil)

var errStaleRead = errors.New("document changed during read")

const documentCacheTTL = 30 * time.Minute

// CachedDocumentStore is a read-through Redis cache in front of another store.
// Every merge bumps a per-user version and invalidates the cached copy; a read
// only fills the cache when no merge ran since it started.
type CachedDocumentStore struct {
	next   domain.DocumentStore
	cache  *redis.Client
	logger *zap.Logger
}

type cachedDocument struct {
	Fields    map[string]json.RawMessage `json:"fields"`
	CreatedAt time.Time                  `json:"created_at"`
	UpdatedAt time.Time                  `json:"updated_at"`
}

func NewCachedDocumentStore(next domain.DocumentStore, cache *redis.Client, logger *zap.Logger) *CachedDocumentStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedDocumentStore{
		next:   next,
		cache:  cache,
		logger: logger,
	}
}

func (s *CachedDocumentStore) cacheKey(userID string) string {
	return fmt.Sprintf("document:%s", userID)
}

func (s *CachedDocumentStore) versionKey(userID string) string {
	return fmt.Sprintf("document:%s:version", userID)
}

func (s *CachedDocumentStore) invalidate(ctx context.Context, userID string) {
	verKey := s.versionKey(userID)
	_, err := s.cache.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, verKey)
		pipe.Expire(ctx, verKey, 2*documentCacheTTL)
		pipe.Del(ctx, s.cacheKey(userID))
		return nil
	})
	if err != nil {
		s.logger.Warn("cache invalidation failed", zap.String("uid", userID), zap.Error(err))
	}
}

// version returns the current merge version of userID, "" when none is stored.
func (s *CachedDocumentStore) version(ctx context.Context, userID string) (string, error) {
	v, err := s.cache.Get(ctx, s.versionKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

// fill caches doc unless the version moved away from seen.
func (s *CachedDocumentStore) fill(ctx context.Context, userID, seen string, doc *domain.StoredDocument) {
	data, err := json.Marshal(cachedDocument{Fields: doc.Fields, CreatedAt: doc.CreatedAt, UpdatedAt: doc.UpdatedAt})
	if err != nil {
		return
	}

	verKey := s.versionKey(userID)
	err = s.cache.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, verKey).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != seen {
			return errStaleRead
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.cacheKey(userID), data, documentCacheTTL)
			return nil
		})
		return err
	}, verKey)

	switch {
	case err == nil:
	case errors.Is(err, errStaleRead), errors.Is(err, redis.TxFailedErr):
		s.logger.Debug("skipping cache fill, document changed during read", zap.String("uid", userID))
	default:
		s.logger.Warn("redis set error", zap.Error(err))
	}
}

func (s *CachedDocumentStore) Get(ctx context.Context, userID string) (*domain.StoredDocument, error) {
	key := s.cacheKey(userID)

	val, err := s.cache.Get(ctx, key).Result()
	if err == nil {
		var cached cachedDocument
		if err := json.Unmarshal([]byte(val), &cached); err == nil {
			return &domain.StoredDocument{
				UserID:    userID,
				Fields:    cached.Fields,
				CreatedAt: cached.CreatedAt,
				UpdatedAt: cached.UpdatedAt,
			}, nil
		}

		s.logger.Warn("corrupted cache entry, cleaning up key", zap.String("uid", userID))
		s.cache.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		s.logger.Warn("redis read error", zap.Error(err))
	}

	seen, verErr := s.version(ctx, userID)

	doc, err := s.next.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if verErr != nil {
		s.logger.Warn("redis read error", zap.Error(verErr))
	} else {
		s.fill(ctx, userID, seen, doc)
	}
	return doc, nil
}

func (s *CachedDocumentStore) Merge(ctx context.Context, userID string, patch domain.DocumentPatch) error {
	if err := s.next.Merge(ctx, userID, patch); err != nil {
		return err
	}
	s.invalidate(ctx, userID)
	return nil
}

func (s *CachedDocumentStore) FindByEmail(ctx context.Context, email string) (string, error) {
	return s.next.FindByEmail(ctx, email)
}
