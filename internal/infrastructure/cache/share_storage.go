package cache

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient connects the ephemeral TTL store used for share records.
func NewRedisClient(ctx context.Context) (*redis.Client, error) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	rds := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: os.Getenv("REDIS_PASSWORD"),
	})

	if err := rds.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return rds, nil
}

// ShareStorage is a thin key-value facade over Redis. TTL enforcement is
// entirely the store's job: an expired share and a never-created share both
// present as a plain miss.
type ShareStorage struct {
	redis *redis.Client
}

func NewShareStorage(rds *redis.Client) *ShareStorage {
	return &ShareStorage{redis: rds}
}

// Get returns "" on a miss, never an error.
func (s *ShareStorage) Get(ctx context.Context, key string) (string, error) {
	val, err := s.redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

// Set stores value under key. A ttl <= 0 stores without an expiration.
func (s *ShareStorage) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		return s.redis.Set(ctx, key, value, 0).Err()
	}
	return s.redis.Set(ctx, key, value, ttl).Err()
}

// TTL returns the remaining lifetime of key. ok is false when the key does
// not exist; a zero duration with ok true means the key never expires.
func (s *ShareStorage) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	d, err := s.redis.TTL(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}

	switch {
	case d == -2*time.Second:
		return 0, false, nil
	case d < 0:
		return 0, true, nil
	default:
		return d, true, nil
	}
}

func (s *ShareStorage) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.redis.Del(ctx, keys...).Err()
}

// ScanPrefix walks the keyspace and returns every key under prefix.
func (s *ShareStorage) ScanPrefix(ctx context.Context, prefix string) ([]string, error) {
	keys := []string{}
	iter := s.redis.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return keys, nil
}
