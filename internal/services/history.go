package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	domainagg "github.com/cordee/cordee-backend/internal/domain/aggregates"
	"github.com/cordee/cordee-backend/internal/observability"
	"github.com/cordee/cordee-backend/internal/platform/logger"
)

// VersionCache stores encoded version views by key.
type VersionCache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
}

type RedisVersionCache struct {
	rdb    goredis.UniversalClient
	prefix string
}

func NewRedisVersionCache(rdb goredis.UniversalClient, prefix string) *RedisVersionCache {
	if prefix == "" {
		prefix = "cordee:version:"
	}
	return &RedisVersionCache{rdb: rdb, prefix: prefix}
}

func (c *RedisVersionCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *RedisVersionCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, c.prefix+key, val, ttl).Err()
}

// HistoryService serves the version ledger reads. Version views are cached
// under "<cache_key>-<version_id>"; a write bumps the cache version embedded
// in the cache key, so stale entries are never read again.
type HistoryService interface {
	GetVersion(ctx context.Context, documentID int64, lang string, versionID int64) (domainagg.VersionView, error)
	GetHistory(ctx context.Context, documentID int64, lang string) (domainagg.HistoryView, error)
	GetCacheKey(ctx context.Context, documentID int64, lang string) (string, error)
}

type historyService struct {
	log     *logger.Logger
	reader  domainagg.DocumentReader
	cache   VersionCache
	ttl     time.Duration
	metrics *observability.Metrics
	group   singleflight.Group
}

// NewHistoryService wraps reader. A nil cache disables caching.
func NewHistoryService(log *logger.Logger, reader domainagg.DocumentReader, cache VersionCache, ttl time.Duration, metrics *observability.Metrics) HistoryService {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &historyService{
		log:     log.With("service", "HistoryService"),
		reader:  reader,
		cache:   cache,
		ttl:     ttl,
		metrics: metrics,
	}
}

func (s *historyService) GetCacheKey(ctx context.Context, documentID int64, lang string) (string, error) {
	return s.reader.GetCacheKey(ctx, documentID, lang)
}

func (s *historyService) GetHistory(ctx context.Context, documentID int64, lang string) (domainagg.HistoryView, error) {
	return s.reader.GetHistory(ctx, documentID, lang)
}

func (s *historyService) GetVersion(ctx context.Context, documentID int64, lang string, versionID int64) (domainagg.VersionView, error) {
	if s.cache == nil {
		return s.reader.GetVersion(ctx, documentID, lang, versionID)
	}
	cacheKey, err := s.reader.GetCacheKey(ctx, documentID, lang)
	if err != nil {
		return domainagg.VersionView{}, err
	}
	key := fmt.Sprintf("%s-%d", cacheKey, versionID)

	if raw, ok, err := s.cache.Get(ctx, key); err != nil {
		s.log.Warn("Version cache read failed", "key", key, "error", err)
	} else if ok {
		var view domainagg.VersionView
		if err := json.Unmarshal(raw, &view); err == nil {
			s.metrics.IncVersionCache(true)
			return view, nil
		}
		s.log.Warn("Version cache entry unreadable, reloading", "key", key)
	}
	s.metrics.IncVersionCache(false)

	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		// shared by every coalesced caller, so the first caller's cancellation must not end it
		loadCtx := context.WithoutCancel(ctx)
		view, err := s.reader.GetVersion(loadCtx, documentID, lang, versionID)
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(view); err == nil {
			if err := s.cache.Set(loadCtx, key, raw, s.ttl); err != nil {
				s.log.Warn("Version cache write failed", "key", key, "error", err)
			}
		}
		return view, nil
	})
	if err != nil {
		return domainagg.VersionView{}, err
	}
	return v.(domainagg.VersionView), nil
}
