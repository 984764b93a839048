package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"djbooking/internal/config"

	"github.com/redis/go-redis/v9"
)

const presenceKeyPrefix = "presence:"

var errNilClient = errors.New("redis client is nil")

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

// RedisPresenceRepository keeps one expiring key per online user.
type RedisPresenceRepository struct {
	client *redis.Client
}

func NewRedisPresenceRepository(client *redis.Client) *RedisPresenceRepository {
	return &RedisPresenceRepository{client: client}
}

func presenceKey(username string) string {
	return presenceKeyPrefix + strings.ToLower(username)
}

func (r *RedisPresenceRepository) Touch(ctx context.Context, username string, ttl time.Duration) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Set(ctx, presenceKey(username), time.Now().Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to touch presence in redis: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) Remove(ctx context.Context, username string) error {
	if r.client == nil {
		return errNilClient
	}
	if err := r.client.Del(ctx, presenceKey(username)).Err(); err != nil {
		return fmt.Errorf("failed to delete presence from redis: %w", err)
	}
	return nil
}

func (r *RedisPresenceRepository) IsOnline(ctx context.Context, username string) (bool, error) {
	if r.client == nil {
		return false, errNilClient
	}
	n, err := r.client.Exists(ctx, presenceKey(username)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check presence in redis: %w", err)
	}
	return n > 0, nil
}

// Online scans the presence keys; expired users are already gone from Redis.
func (r *RedisPresenceRepository) Online(ctx context.Context) ([]string, error) {
	if r.client == nil {
		return nil, errNilClient
	}

	users := []string{}
	iter := r.client.Scan(ctx, 0, presenceKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		users = append(users, strings.TrimPrefix(iter.Val(), presenceKeyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan presence keys: %w", err)
	}
	sort.Strings(users)
	return users, nil
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if client == nil {
		return errNilClient
	}
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
