package service

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type RedisPresenceCacheStore struct {
	client redis.UniversalClient
	prefix string
}

func NewRedisPresenceCacheStore(client redis.UniversalClient, prefix string) *RedisPresenceCacheStore {
	if prefix == "" {
		prefix = "presence_cache"
	}
	return &RedisPresenceCacheStore{client: client, prefix: prefix}
}

func (s *RedisPresenceCacheStore) Get(ctx context.Context, userID uint) (bool, bool, error) {
	if s.client == nil {
		return false, false, nil
	}
	v, err := s.client.Get(ctx, s.key(userID)).Result()
	if err == redis.Nil {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return v == "1", true, nil
}

func (s *RedisPresenceCacheStore) Set(ctx context.Context, userID uint, online bool, ttl time.Duration) error {
	if s.client == nil || ttl <= 0 {
		return nil
	}
	v := "0"
	if online {
		v = "1"
	}
	return s.client.Set(ctx, s.key(userID), v, ttl).Err()
}

func (s *RedisPresenceCacheStore) key(userID uint) string {
	return fmt.Sprintf("%s:user:%d", s.prefix, userID)
}
