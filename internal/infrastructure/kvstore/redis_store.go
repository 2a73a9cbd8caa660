package kvstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/garyjia/approval-engine/internal/application/port"
)

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisConfigStore implements port.ConfigStore on Redis string keys
type RedisConfigStore struct {
	client *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedisConfigStore creates a new store backed by Redis
func NewRedisConfigStore(cfg RedisConfig, logger *zap.Logger) *RedisConfigStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return &RedisConfigStore{
		client: rdb,
		prefix: cfg.KeyPrefix,
		logger: logger,
	}
}

// Ping checks connectivity
func (s *RedisConfigStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Load returns the value stored under key, or port.ErrNotFound
func (s *RedisConfigStore) Load(ctx context.Context, key string) (string, error) {
	value, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", port.ErrNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load config from redis", zap.String("key", key), zap.Error(err))
		return "", fmt.Errorf("failed to load config %s: %w", key, err)
	}
	return value, nil
}

// Save stores value under key without expiry
func (s *RedisConfigStore) Save(ctx context.Context, key, value string) error {
	if err := s.client.Set(ctx, s.prefix+key, value, 0).Err(); err != nil {
		s.logger.Error("Failed to save config to redis", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("failed to save config %s: %w", key, err)
	}
	return nil
}

// Close releases the connection pool
func (s *RedisConfigStore) Close() error {
	return s.client.Close()
}

var _ port.ConfigStore = (*RedisConfigStore)(nil)
