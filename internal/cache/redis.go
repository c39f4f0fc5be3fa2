package cache

import (
	"context"
	"errors"
	"time"

	"github.com/keagan/highlightreel/internal/config"
	apperrors "github.com/keagan/highlightreel/internal/errors"
	"github.com/redis/go-redis/v9"
)

const pingTimeout = 5 * time.Second

// RedisStore keeps results in Redis so several workers can share them
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects and pings the server
func NewRedisStore(ctx context.Context, cfg config.CacheConfig) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.RedisDB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, apperrors.ErrCache("connect", err).WithDetail("addr", cfg.RedisAddr)
	}
	return &RedisStore{client: client}, nil
}

func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, apperrors.ErrCache("get", err)
	}
	return data, true, nil
}

func (r *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return apperrors.ErrCache("set", err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return apperrors.ErrCache("delete", err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
