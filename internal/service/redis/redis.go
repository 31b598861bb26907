package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

type (
	RedisService struct {
		rdb *redis.Client
	}
)

func NewRedis(rdb *redis.Client) *RedisService {
	return &RedisService{
		rdb: rdb,
	}
}

// IsNil reports whether err means the key does not exist.
func IsNil(err error) bool {
	return errors.Is(err, redis.Nil)
}

func (r *RedisService) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// ReplaceList atomically replaces the list at key with values.
func (r *RedisService) ReplaceList(ctx context.Context, key string, values ...any) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	return err
}

func (r *RedisService) LRange(ctx context.Context, key string) ([]string, error) {
	return r.rdb.LRange(ctx, key, 0, -1).Result()
}

func (r *RedisService) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

func (r *RedisService) Get(ctx context.Context, key string) (string, error) {
	return r.rdb.Get(ctx, key).Result()
}

// SetNX sets key only if it does not exist and reports whether it did.
func (r *RedisService) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	return r.rdb.SetNX(ctx, key, value, ttl).Result()
}

func (r *RedisService) Close() error {
	return r.rdb.Close()
}
