// Package cache keeps computed recommendation lists in Redis.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/The24thDS/karen-backend/internal/models"
)

const (
	recommendationPrefix = "recommendations:"

	defaultRecommendationTTL = 10 * time.Minute
)

// Recommendations stores the recommendation list of a model by slug. A miss is
// reported with ok == false and a nil error.
type Recommendations interface {
	Get(ctx context.Context, slug string) (recs []models.Recommendation, ok bool, err error)
	Set(ctx context.Context, slug string, recs []models.Recommendation) error
	Invalidate(ctx context.Context, slug string) error
}

// RedisRecommendations is the Redis-backed Recommendations cache.
type RedisRecommendations struct {
	redis *redis.Client
	ttl   time.Duration
}

// Options configures the Redis connection of the cache.
type Options struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// New returns a Redis cache, or Nop when no address is configured.
func New(opts Options) Recommendations {
	if opts.Addr == "" {
		return Nop{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisRecommendations(client, opts.TTL)
}

func NewRedisRecommendations(client *redis.Client, ttl time.Duration) *RedisRecommendations {
	if ttl <= 0 {
		ttl = defaultRecommendationTTL
	}
	return &RedisRecommendations{redis: client, ttl: ttl}
}

// Key is the Redis key of a model's recommendation list.
func Key(slug string) string {
	return recommendationPrefix + slug
}

func (c *RedisRecommendations) Get(ctx context.Context, slug string) ([]models.Recommendation, bool, error) {
	data, err := c.redis.Get(ctx, Key(slug)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get error: %w", err)
	}

	var recs []models.Recommendation
	if err := json.Unmarshal(data, &recs); err != nil {
		return nil, false, fmt.Errorf("json unmarshal error: %w", err)
	}
	return recs, true, nil
}

func (c *RedisRecommendations) Set(ctx context.Context, slug string, recs []models.Recommendation) error {
	data, err := json.Marshal(recs)
	if err != nil {
		return fmt.Errorf("json marshal error: %w", err)
	}
	if err := c.redis.Set(ctx, Key(slug), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set error: %w", err)
	}
	return nil
}

func (c *RedisRecommendations) Invalidate(ctx context.Context, slug string) error {
	if err := c.redis.Del(ctx, Key(slug)).Err(); err != nil {
		return fmt.Errorf("redis del error: %w", err)
	}
	return nil
}

// Close releases the Redis connection pool.
func (c *RedisRecommendations) Close() error {
	return c.redis.Close()
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) ([]models.Recommendation, bool, error) { return nil, false, nil }
func (Nop) Set(context.Context, string, []models.Recommendation) error        { return nil }
func (Nop) Invalidate(context.Context, string) error                          { return nil }
