package services

import (
	"context"
	"time"

	"taxilink/pkg/cache"
)

// CacheService is the read-through cache surface the mongo repositories use.
// A nil CacheService is valid everywhere; repositories treat it as a miss.
type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Exists(ctx context.Context, key string) (bool, error)
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error)
}

type redisCacheService struct {
	cache *cache.RedisCache
}

func NewCacheService(redisCache *cache.RedisCache) CacheService {
	return &redisCacheService{cache: redisCache}
}

func (s *redisCacheService) Get(ctx context.Context, key string, dest interface{}) error {
	return s.cache.Get(ctx, key, dest)
}

func (s *redisCacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	return s.cache.Set(ctx, key, value, expiration)
}

func (s *redisCacheService) Delete(ctx context.Context, keys ...string) error {
	return s.cache.Delete(ctx, keys...)
}

func (s *redisCacheService) Exists(ctx context.Context, key string) (bool, error) {
	return s.cache.Exists(ctx, key)
}

func (s *redisCacheService) SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) (bool, error) {
	return s.cache.SetNX(ctx, key, value, expiration)
}
