package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/pkg/logger"
)

// Client caches embeddings keyed by a hash of the normalized input text, so
// re-grading runs and repeated interactive queries skip provider round-trips.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

func NewClient(host string, port int, password string, db int, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis client initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32) error {
	data, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if err := c.client.Set(ctx, "embedding:"+textHash, data, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set embedding cache: %w", err)
	}

	logger.Debug("Embedding cached", zap.String("text_hash", textHash))
	return nil
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error) {
	data, err := c.client.Get(ctx, "embedding:"+textHash).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to get embedding cache: %w", err)
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal embedding: %w", err)
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true, nil
}
