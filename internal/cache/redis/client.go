// Package redis caches embedding vectors keyed by a hash of the input
// text. The embedding service is deterministic for identical input, so
// cached vectors never go stale within their TTL.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tj-assistant/ml-backend/internal/metrics"
	"github.com/tj-assistant/ml-backend/pkg/logger"
	"github.com/tj-assistant/ml-backend/pkg/utils"
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	_, err := client.Ping(ctx).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	err = c.client.Set(ctx, fmt.Sprintf("embedding:%s", textHash), data, ttl).Err()
	if err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, fmt.Sprintf("embedding:%s", textHash)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	err = json.Unmarshal(data, &embedding)
	if err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}

// EmbeddingCache is the subset of the client the cached embedder needs.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32, ttl time.Duration) error
}

// Embedder computes one embedding vector for a text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder wraps an embedding service with the cache. Cache
// failures are logged and treated as misses so the cache can never make
// a request fail.
type CachedEmbedder struct {
	inner Embedder
	cache EmbeddingCache
	ttl   time.Duration
}

func NewCachedEmbedder(inner Embedder, cache EmbeddingCache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{
		inner: inner,
		cache: cache,
		ttl:   ttl,
	}
}

func (e *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	hash := utils.HashString(text)

	embedding, found, err := e.cache.GetEmbedding(ctx, hash)
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
	}
	if found {
		metrics.CacheHits.WithLabelValues("embedding").Inc()
		return embedding, nil
	}
	metrics.CacheMisses.WithLabelValues("embedding").Inc()

	embedding, err = e.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.cache.SetEmbedding(ctx, hash, embedding, e.ttl); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}

	return embedding, nil
}
