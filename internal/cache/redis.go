package cache

import (
	"FrameForge/internal/batch"
	types "FrameForge/pkg"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const keyPrefix = "frameforge:batch:"

// MetadataCache stores sealed batch metadata in Redis. Cache failures are
// logged and treated as misses.
type MetadataCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewMetadataCache(cfg types.RedisConfig, logger *zap.Logger) (*MetadataCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewMetadataCacheWithClient(client, time.Duration(cfg.TTLMinutes)*time.Minute, logger), nil
}

func NewMetadataCacheWithClient(client *redis.Client, ttl time.Duration, logger *zap.Logger) *MetadataCache {
	return &MetadataCache{client: client, ttl: ttl, logger: logger}
}

func (c *MetadataCache) Get(ctx context.Context, batchID string) (*batch.Metadata, bool) {
	data, err := c.client.Get(ctx, keyPrefix+batchID).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Metadata cache read failed", zap.String("batch_id", batchID), zap.Error(err))
		}
		return nil, false
	}
	var meta batch.Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		c.logger.Warn("Corrupt metadata cache entry", zap.String("batch_id", batchID), zap.Error(err))
		return nil, false
	}
	return &meta, true
}

func (c *MetadataCache) Set(ctx context.Context, batchID string, meta *batch.Metadata) {
	data, err := json.Marshal(meta)
	if err != nil {
		c.logger.Warn("Failed to marshal metadata for cache", zap.String("batch_id", batchID), zap.Error(err))
		return
	}
	if err := c.client.Set(ctx, keyPrefix+batchID, data, c.ttl).Err(); err != nil {
		c.logger.Warn("Metadata cache write failed", zap.String("batch_id", batchID), zap.Error(err))
	}
}

func (c *MetadataCache) Close() error {
	return c.client.Close()
}
