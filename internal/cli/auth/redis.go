package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisTimeout = 5 * time.Second

// RedisStorage keeps state in Redis so several machines can share a session
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to addr. Keys are stored as "<prefix>:<key>".
func NewRedisStorage(addr, password string, db int, prefix string) *RedisStorage {
	opts := &redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	}
	return NewRedisStorageFromClient(redis.NewClient(opts), prefix)
}

// NewRedisStorageFromClient wraps an existing client
func NewRedisStorageFromClient(client *redis.Client, prefix string) *RedisStorage {
	if prefix == "" {
		prefix = "appdeck"
	}
	return &RedisStorage{client: client, prefix: prefix}
}

func (r *RedisStorage) key(key string) string {
	return r.prefix + ":" + key
}

func (r *RedisStorage) Load(key string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	data, err := r.client.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load %s from redis: %w", key, err)
	}
	return data, nil
}

func (r *RedisStorage) Save(key string, data []byte) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Set(ctx, r.key(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save %s to redis: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Delete(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	if err := r.client.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s from redis: %w", key, err)
	}
	return nil
}

// Close releases the Redis connection pool
func (r *RedisStorage) Close() error {
	return r.client.Close()
}
