package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"example.com/backstage/services/skip/config"
	"example.com/backstage/services/skip/internal/model"
)

// Client defines the interface for skip cache operations
type Client interface {
	GetSkip(ctx context.Context, code string) (*model.Skip, error)
	SetSkip(ctx context.Context, skip *model.Skip) error
	DeleteSkip(ctx context.Context, code string) error
}

// RedisClient implements Client using Redis
type RedisClient struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisClient creates a new Redis client. With redis disabled it returns
// a no-op client so callers never need to branch.
func NewRedisClient(cfg config.Config) (Client, error) {
	if !cfg.RedisEnabled {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.RedisTTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisClient{
		client:  client,
		enabled: true,
		ttl:     ttl,
	}, nil
}

// NewDisabledClient returns a cache client that stores nothing
func NewDisabledClient() Client {
	return &RedisClient{enabled: false}
}

// Prefix keys to avoid collisions
func skipKey(code string) string {
	return fmt.Sprintf("skip:%s", code)
}

// GetSkip retrieves a skip from cache by its QR code
func (c *RedisClient) GetSkip(ctx context.Context, code string) (*model.Skip, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.Get(ctx, skipKey(code)).Bytes()
	if err != nil {
		return nil, err
	}

	var skip model.Skip
	if err := json.Unmarshal(data, &skip); err != nil {
		return nil, err
	}

	return &skip, nil
}

// SetSkip caches a skip under its QR code
func (c *RedisClient) SetSkip(ctx context.Context, skip *model.Skip) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(skip)
	if err != nil {
		return err
	}

	return c.client.Set(ctx, skipKey(skip.QRCode), data, c.ttl).Err()
}

// DeleteSkip removes a skip from cache
func (c *RedisClient) DeleteSkip(ctx context.Context, code string) error {
	if !c.enabled {
		return nil
	}

	return c.client.Del(ctx, skipKey(code)).Err()
}
