package blocklist

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "nuka:blocklist:"

// RedisStore keeps block and allow lists in Redis sets.
type RedisStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewRedisStore connects to redisURL and verifies the connection.
func NewRedisStore(redisURL string, logger *zap.Logger) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &RedisStore{rdb: rdb, logger: logger}, nil
}

func key(s Scope) string {
	if s.Command == "" {
		return keyPrefix + "global"
	}
	if s.Allow {
		return keyPrefix + "cmd:" + s.Command + ":allow"
	}
	return keyPrefix + "cmd:" + s.Command + ":block"
}

func (s *RedisStore) Add(ctx context.Context, scope Scope, userID string) error {
	if err := s.rdb.SAdd(ctx, key(scope), userID).Err(); err != nil {
		return fmt.Errorf("add %s to %s: %w", userID, scope, err)
	}
	return nil
}

func (s *RedisStore) Remove(ctx context.Context, scope Scope, userID string) error {
	if err := s.rdb.SRem(ctx, key(scope), userID).Err(); err != nil {
		return fmt.Errorf("remove %s from %s: %w", userID, scope, err)
	}
	return nil
}

func (s *RedisStore) Members(ctx context.Context, scope Scope) ([]string, error) {
	ids, err := s.rdb.SMembers(ctx, key(scope)).Result()
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", scope, err)
	}
	return ids, nil
}

// Close shuts down the Redis connection.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
