// Package issues decides which low-scoring reviews have been addressed by a
// later high-scoring review, and summarizes the ones that have not.
package issues

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/reviewlens/backend/internal/embedding"
	"github.com/reviewlens/backend/internal/metrics"
	"github.com/reviewlens/backend/internal/normalize"
	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/config"
	"github.com/reviewlens/backend/pkg/logger"
)

// Embedder and Summarizer are the provider capabilities the engine consumes.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Summarizer interface {
	Summarize(ctx context.Context, rec *models.ReviewRecord) (string, error)
}

// AgentResult reports one agent's analysis outcome.
type AgentResult struct {
	AgentID         string `json:"agent_id"`
	BadCount        int    `json:"bad_count"`
	UnresolvedCount int    `json:"unresolved_count"`
}

type Engine struct {
	store       *sqlite.Client
	embedder    Embedder
	summarizer  Summarizer
	cfg         config.IssuesConfig
	minChars    int
	summaryGate *rate.Limiter
}

func NewEngine(store *sqlite.Client, embedder Embedder, summarizer Summarizer, cfg config.IssuesConfig, minChars int) *Engine {
	delay := time.Duration(cfg.SummaryDelayMS) * time.Millisecond
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}

	return &Engine{
		store:       store,
		embedder:    embedder,
		summarizer:  summarizer,
		cfg:         cfg,
		minChars:    minChars,
		summaryGate: rate.NewLimiter(rate.Every(delay), 1),
	}
}

// AnalyzeAll runs the analysis for every active agent. Per-agent failures are
// logged and do not stop the sweep.
func (e *Engine) AnalyzeAll(ctx context.Context) ([]AgentResult, error) {
	agents, err := e.store.ListActiveAgents()
	if err != nil {
		return nil, fmt.Errorf("failed to list active agents: %w", err)
	}

	results := make([]AgentResult, 0, len(agents))
	for _, agent := range agents {
		result, err := e.AnalyzeAgent(ctx, agent.ID)
		if err != nil {
			logger.Error("Agent analysis failed",
				zap.String("agent_id", agent.ID),
				zap.Error(err),
			)
			continue
		}
		results = append(results, result)

		if ctx.Err() != nil {
			return results, ctx.Err()
		}
	}

	return results, nil
}

// AnalyzeAgent recomputes the agent's unresolved-issue list from scratch over
// the trailing analysis window and replaces the stored set.
func (e *Engine) AnalyzeAgent(ctx context.Context, agentID string) (AgentResult, error) {
	since := time.Now().Add(-time.Duration(e.cfg.WindowDays) * 24 * time.Hour)

	reviews, err := e.store.GradedReviewsInWindow(agentID, since)
	if err != nil {
		return AgentResult{}, fmt.Errorf("failed to load graded reviews: %w", err)
	}

	var bad, good []models.ReviewRecord
	for _, r := range reviews {
		if *r.Score < e.cfg.BadScoreCutoff {
			bad = append(bad, r)
		} else {
			good = append(good, r)
		}
	}

	vectors := newVectorCache(e)

	var unresolved []models.ReviewRecord
	for i := range bad {
		if e.isResolved(ctx, &bad[i], good, vectors) {
			continue
		}
		unresolved = append(unresolved, bad[i])
	}

	entries := make([]models.AgentIssueEntry, 0, len(unresolved))
	for i := range unresolved {
		if err := e.summaryGate.Wait(ctx); err != nil {
			return AgentResult{}, err
		}

		summary, err := e.summarizer.Summarize(ctx, &unresolved[i])
		if err != nil {
			logger.Warn("Failed to summarize unresolved review",
				zap.String("review_id", unresolved[i].ID),
				zap.Error(err),
			)
			summary = "Summary unavailable"
		}
		metrics.SummariesGenerated.Inc()

		entries = append(entries, models.AgentIssueEntry{
			ID:        uuid.New().String(),
			AgentID:   agentID,
			ReviewID:  unresolved[i].ID,
			Summary:   summary,
			Resolved:  false,
			CreatedAt: time.Now(),
		})
	}

	if err := e.store.ReplaceAgentIssues(agentID, entries); err != nil {
		return AgentResult{}, err
	}

	metrics.AnalysisBadReviews.Observe(float64(len(bad)))
	metrics.AnalysisUnresolved.Observe(float64(len(entries)))

	logger.Info("Agent issues analyzed",
		zap.String("agent_id", agentID),
		zap.Int("graded", len(reviews)),
		zap.Int("bad", len(bad)),
		zap.Int("unresolved", len(entries)),
	)

	return AgentResult{
		AgentID:         agentID,
		BadCount:        len(bad),
		UnresolvedCount: len(entries),
	}, nil
}

// isResolved checks the category shortcut first: the earliest later good
// review sharing any label resolves the bad one outright. Only when no label
// matches does it fall back to embedding similarity, walking later good
// reviews in ascending time order.
//
// The shortcut accepts any same-category later review without checking
// semantic relevance; that can over-resolve distinct issues sharing a label.
func (e *Engine) isResolved(ctx context.Context, bad *models.ReviewRecord, good []models.ReviewRecord, vectors *vectorCache) bool {
	hasLater := false
	for i := range good {
		if !good[i].GradedAt.After(bad.GradedAt) {
			continue
		}
		hasLater = true
		if bad.SharesCategory(&good[i]) {
			logger.Debug("Issue resolved by category match",
				zap.String("bad_review_id", bad.ID),
				zap.String("resolving_review_id", good[i].ID),
			)
			return true
		}
	}
	if !hasLater {
		return false
	}

	badVector := vectors.get(ctx, bad)
	if badVector == nil {
		return false
	}

	for i := range good {
		if !good[i].GradedAt.After(bad.GradedAt) {
			continue
		}

		goodVector := vectors.get(ctx, &good[i])
		if goodVector == nil {
			continue
		}

		if sim := embedding.Cosine(badVector, goodVector); sim >= e.cfg.SimThreshold {
			logger.Debug("Issue resolved by embedding similarity",
				zap.String("bad_review_id", bad.ID),
				zap.String("resolving_review_id", good[i].ID),
				zap.Float64("similarity", sim),
			)
			return true
		}
	}

	return false
}

// vectorCache reuses fresh stored embeddings and memoizes computed ones for
// the duration of one analysis run. Newly computed vectors are persisted so
// the record counts as freshly embedded afterwards.
type vectorCache struct {
	engine  *Engine
	vectors map[string][]float32
}

func newVectorCache(e *Engine) *vectorCache {
	return &vectorCache{engine: e, vectors: make(map[string][]float32)}
}

func (vc *vectorCache) get(ctx context.Context, rec *models.ReviewRecord) []float32 {
	if v, ok := vc.vectors[rec.ID]; ok {
		return v
	}

	if len(rec.Embedding) > 0 && !rec.EmbeddingStale {
		vc.vectors[rec.ID] = rec.Embedding
		return rec.Embedding
	}

	text := normalize.Clean(rec.EmbeddingInput())
	if len([]rune(text)) < vc.engine.minChars {
		vc.vectors[rec.ID] = nil
		return nil
	}

	vector, err := vc.engine.embedder.Embed(ctx, text)
	if err != nil {
		logger.Warn("Failed to embed review during analysis",
			zap.String("review_id", rec.ID),
			zap.Error(err),
		)
		vc.vectors[rec.ID] = nil
		return nil
	}

	if vector != nil {
		if err := vc.engine.store.StoreEmbedding(rec.ID, vector); err != nil {
			logger.Warn("Failed to persist computed embedding",
				zap.String("review_id", rec.ID),
				zap.Error(err),
			)
		}
	}

	vc.vectors[rec.ID] = vector
	return vector
}
