package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"servus-backend/internal/config"
	"servus-backend/internal/models"
)

// Rating summary cache keys
const ratingKeyFmt = "ratings:technician:%s"

// RedisCache caches technician rating summaries. A cache without a client
// (redis not configured or unreachable) misses on every read and ignores writes.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to redis when an address is configured.
func New(cfg *config.Config) *RedisCache {
	c := &RedisCache{ttl: cfg.Redis.RatingTTL}
	if cfg.Redis.Addr == "" {
		log.Printf("[Cache] REDIS_ADDR not set, rating cache disabled")
		return c
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		// degrade gracefully, the database stays the source of truth
		log.Printf("[Cache] Redis unavailable at %s: %v", cfg.Redis.Addr, err)
		client.Close()
		return c
	}

	log.Printf("[Cache] Connected to Redis at %s", cfg.Redis.Addr)
	c.client = client
	return c
}

// NewWithClient wraps an existing client; nil yields a disabled cache.
func NewWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func ratingKey(technicianID uuid.UUID) string {
	return fmt.Sprintf(ratingKeyFmt, technicianID)
}

// GetRatingSummary returns the cached summary if present.
func (c *RedisCache) GetRatingSummary(ctx context.Context, technicianID uuid.UUID) (*models.RatingSummary, bool) {
	if c.client == nil {
		return nil, false
	}
	data, err := c.client.Get(ctx, ratingKey(technicianID)).Bytes()
	if err != nil {
		return nil, false
	}
	var s models.RatingSummary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, false
	}
	return &s, true
}

func (c *RedisCache) SetRatingSummary(ctx context.Context, s *models.RatingSummary) {
	if c.client == nil {
		return
	}
	data, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ratingKey(s.TechnicianID), data, c.ttl).Err(); err != nil {
		log.Printf("[Cache] Failed to cache rating summary: %v", err)
	}
}

// InvalidateRatingSummary drops a technician's summary after new feedback.
func (c *RedisCache) InvalidateRatingSummary(ctx context.Context, technicianID uuid.UUID) {
	if c.client == nil {
		return
	}
	c.client.Del(ctx, ratingKey(technicianID))
}

// IsHealthy checks if Redis is available
func (c *RedisCache) IsHealthy(ctx context.Context) bool {
	if c.client == nil {
		return false
	}
	return c.client.Ping(ctx).Err() == nil
}

// Enabled reports whether a redis client is attached.
func (c *RedisCache) Enabled() bool {
	return c.client != nil
}

func (c *RedisCache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
