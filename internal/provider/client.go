// Package provider wraps the external embedding and summarization models
// behind one client with retries, a circuit breaker and an optional cache.
package provider

import (
	"context"
	"fmt"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/pkg/circuitbreaker"
	"github.com/reviewlens/backend/pkg/config"
	"github.com/reviewlens/backend/pkg/logger"
	"github.com/reviewlens/backend/pkg/retry"
	"github.com/reviewlens/backend/pkg/textutil"
)

// FallbackSummary is returned for records that carry no usable notes or
// feedback; no model call is made for those.
const FallbackSummary = "Review flagged a quality issue, but no notes or feedback were recorded."

// EmbeddingCache is the subset of the redis client the provider consults
// before spending a request. A nil cache disables caching.
type EmbeddingCache interface {
	GetEmbedding(ctx context.Context, textHash string) ([]float32, bool, error)
	SetEmbedding(ctx context.Context, textHash string, embedding []float32) error
}

type Client struct {
	client         *openai.Client
	embeddingModel string
	embeddingDim   int
	summaryModel   string
	temperature    float32
	maxTokens      int
	timeout        time.Duration
	maxInputChars  int
	cache          EmbeddingCache
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

func NewClient(cfg config.ProviderConfig, cache EmbeddingCache) *Client {
	client := openai.NewClient(cfg.APIKey)

	cb := circuitbreaker.New("provider", circuitbreaker.Config{
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.DefaultConfig()
	retryConfig.Logger = logger.GetLogger()

	logger.Info("Provider client initialized",
		zap.String("embedding_model", cfg.EmbeddingModel),
		zap.Int("embedding_dim", cfg.EmbeddingDim),
		zap.String("summary_model", cfg.SummaryModel),
	)

	return &Client{
		client:         client,
		embeddingModel: cfg.EmbeddingModel,
		embeddingDim:   cfg.EmbeddingDim,
		summaryModel:   cfg.SummaryModel,
		temperature:    cfg.Temperature,
		maxTokens:      cfg.MaxTokens,
		timeout:        time.Duration(cfg.TimeoutSec) * time.Second,
		maxInputChars:  cfg.MaxInputChars,
		cache:          cache,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

// Dimension is the width of vectors the current embedding model produces.
func (c *Client) Dimension() int {
	return c.embeddingDim
}

// Embed returns the vector for already-normalized text. Empty input yields a
// nil vector with no error and no request; provider failures propagate to the
// caller. Callers are expected to enforce the minimum-length precondition
// before calling.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, nil
	}

	text = textutil.Truncate(text, c.maxInputChars)
	textHash := textutil.HashText(text)

	if c.cache != nil {
		if cached, ok, err := c.cache.GetEmbedding(ctx, textHash); err != nil {
			logger.Warn("Embedding cache read failed", zap.Error(err))
		} else if ok {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}
			if len(resp.Data) == 0 {
				return fmt.Errorf("embedding response contained no data")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	if len(embedding) != c.embeddingDim {
		logger.Warn("Embedding dimension differs from configured width",
			zap.Int("got", len(embedding)),
			zap.Int("configured", c.embeddingDim),
		)
	}

	if c.cache != nil {
		if err := c.cache.SetEmbedding(ctx, textHash, embedding); err != nil {
			logger.Warn("Embedding cache write failed", zap.Error(err))
		}
	}

	return embedding, nil
}

// Summarize produces a one-sentence description of the quality issue behind a
// low-scoring review. Records without notes or feedback get the generic
// fallback without a model call.
func (c *Client) Summarize(ctx context.Context, rec *models.ReviewRecord) (string, error) {
	content := rec.EmbeddingInput()
	if content == "" {
		return FallbackSummary, nil
	}

	content = textutil.Truncate(content, c.maxInputChars)

	systemPrompt := `You are a support-quality reviewer. Summarize the performance issue described in a graded agent review in exactly one sentence. Name the concrete behavior, not the score. Answer in the language the review is written in.`

	userPrompt := fmt.Sprintf("Review notes and feedback:\n\n%s", content)
	if rec.Score != nil {
		userPrompt = fmt.Sprintf("Quality score: %d/100\n%s", *rec.Score, userPrompt)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var summary string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model: c.summaryModel,
					Messages: []openai.ChatCompletionMessage{
						{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
						{Role: openai.ChatMessageRoleUser, Content: userPrompt},
					},
					Temperature: c.temperature,
					MaxTokens:   c.maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to summarize review: %w", err)
			}
			if len(resp.Choices) == 0 {
				return fmt.Errorf("summary response contained no choices")
			}

			logger.Debug("Review summarized",
				zap.String("review_id", rec.ID),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			summary = resp.Choices[0].Message.Content
			return nil
		})
	})

	if err != nil {
		return "", err
	}

	if summary == "" {
		return FallbackSummary, nil
	}

	return summary, nil
}
