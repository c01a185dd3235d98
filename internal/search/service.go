// Package search implements hybrid retrieval over review records: a lexical
// pre-filter, a cosine-similarity pass over fresh embeddings, and fusion of
// the two candidate streams.
package search

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/reviewlens/backend/internal/metrics"
	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/config"
	"github.com/reviewlens/backend/pkg/logger"
)

// Embedder is the provider capability the vector path depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Service struct {
	store    *sqlite.Client
	embedder Embedder
	cfg      config.SearchConfig
	minChars int
}

func NewService(store *sqlite.Client, embedder Embedder, cfg config.SearchConfig, minChars int) *Service {
	return &Service{
		store:    store,
		embedder: embedder,
		cfg:      cfg,
		minChars: minChars,
	}
}

// FindSimilar returns up to limit records resembling the query, ranked by
// score. The embedding leg runs under its own timeout and any failure there
// degrades the call to keyword-only results; the call itself only fails when
// the document store does.
func (s *Service) FindSimilar(ctx context.Context, query string, excludeID string, limit int) ([]models.CandidateResult, error) {
	start := time.Now()

	if limit <= 0 {
		limit = s.cfg.DefaultLimit
	}

	var exclude []string
	if excludeID != "" {
		exclude = append(exclude, excludeID)
	}

	keyword, tokens, err := s.keywordCandidates(query, exclude)
	if err != nil {
		return nil, err
	}

	vectorExclude := make([]string, 0, len(exclude)+len(keyword))
	vectorExclude = append(vectorExclude, exclude...)
	for _, c := range keyword {
		vectorExclude = append(vectorExclude, c.DocumentID)
	}

	embedCtx, cancel := context.WithTimeout(ctx, time.Duration(s.cfg.EmbedTimeoutSec)*time.Second)
	vector, err := s.vectorCandidates(embedCtx, query, vectorExclude)
	cancel()
	if err != nil {
		// Degrade to keyword-only rather than surfacing an error to the
		// interactive caller.
		metrics.SearchDegraded.Inc()
		logger.Warn("Vector path unavailable, returning keyword-only results",
			zap.Error(err),
		)
		vector = nil
	}

	results := fuse(keyword, vector, limit)

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchResults.WithLabelValues(string(models.MatchKeyword)).Observe(float64(len(keyword)))
	metrics.SearchResults.WithLabelValues(string(models.MatchEmbedding)).Observe(float64(len(vector)))

	logger.Info("Similarity search completed",
		zap.Int("tokens", len(tokens)),
		zap.Int("keyword_hits", len(keyword)),
		zap.Int("vector_hits", len(vector)),
		zap.Int("returned", len(results)),
		zap.Duration("elapsed", time.Since(start)),
	)

	return results, nil
}
