package storage

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a DocumentStore backed by Redis. Documents live under a
// common key prefix so a shared Redis instance stays tidy.
type RedisStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStore connects to Redis and verifies the connection
func NewRedisStore(redisURL string) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: "autopost:doc:",
	}, nil
}

// NewRedisStoreWithClient wraps an existing client, mainly for tests
func NewRedisStoreWithClient(client *redis.Client) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: "autopost:doc:",
	}
}

func (s *RedisStore) docKey(key string) string {
	return s.keyPrefix + key
}

// Load returns the document stored under key, or ErrNotFound
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.Get(ctx, s.docKey(key)).Bytes()
	if err == redis.Nil {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", key, err)
	}
	return data, nil
}

// Save overwrites the document stored under key
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, s.docKey(key), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to save document %s: %w", key, err)
	}
	return nil
}

// Close closes the underlying client
func (s *RedisStore) Close() error {
	return s.client.Close()
}
