package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/postersnap/postersnap/pkg/models"
	"github.com/redis/go-redis/v9"
)

// Cache provides a short-lived read cache for poster records consumed by the
// status-polling endpoint. Polling clients hit the API every couple of
// seconds; a small TTL keeps the database out of that loop while staying
// eventually consistent.
type Cache struct {
	client      *redis.Client
	statusTTL   time.Duration
	terminalTTL time.Duration
}

// NewCache creates a new cache instance
func NewCache(host string, port int, password string, db int, statusTTL, terminalTTL time.Duration) (*Cache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Cache{
		client:      client,
		statusTTL:   statusTTL,
		terminalTTL: terminalTTL,
	}, nil
}

// Close closes the Redis connection
func (c *Cache) Close() error {
	return c.client.Close()
}

// Ping checks the Redis connection
func (c *Cache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// SetPoster caches a poster record. Terminal records live longer since they
// can no longer change.
func (c *Cache) SetPoster(ctx context.Context, poster *models.Poster) error {
	data, err := json.Marshal(poster)
	if err != nil {
		return fmt.Errorf("failed to marshal poster: %w", err)
	}

	ttl := c.statusTTL
	if poster.Status.Terminal() {
		ttl = c.terminalTTL
	}

	key := posterKey(poster.ID)
	return c.client.Set(ctx, key, data, ttl).Err()
}

// GetPoster retrieves a poster record from cache, nil on miss.
func (c *Cache) GetPoster(ctx context.Context, posterID string) (*models.Poster, error) {
	data, err := c.client.Get(ctx, posterKey(posterID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil // Cache miss
		}
		return nil, fmt.Errorf("failed to get poster from cache: %w", err)
	}

	var poster models.Poster
	if err := json.Unmarshal(data, &poster); err != nil {
		return nil, fmt.Errorf("failed to unmarshal poster: %w", err)
	}

	return &poster, nil
}

// DeletePoster removes a poster record from cache
func (c *Cache) DeletePoster(ctx context.Context, posterID string) error {
	return c.client.Del(ctx, posterKey(posterID)).Err()
}

func posterKey(posterID string) string {
	return fmt.Sprintf("poster:%s", posterID)
}
