package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix  = "cart:"
	defaultTTL = 30 * 24 * time.Hour
)

// RedisStore хранит снимки корзин в Redis. TTL продлевается при каждой записи.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore создаёт хранилище поверх клиента Redis.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{
		client: client,
		ttl:    defaultTTL,
	}
}

// Connect подключается к Redis по адресу и проверяет соединение.
func Connect(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return NewRedisStore(client), nil
}

// Load возвращает снимок корзины.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}
	return data, nil
}

// Save сохраняет снимок корзины.
func (s *RedisStore) Save(ctx context.Context, key string, blob []byte) error {
	if err := s.client.Set(ctx, redisKey(key), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

// Delete удаляет снимок корзины.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, redisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

func redisKey(key string) string {
	return keyPrefix + key
}
