package search

import (
	"context"
	"math"

	"github.com/reviewlens/backend/internal/embedding"
	"github.com/reviewlens/backend/internal/normalize"
	"github.com/reviewlens/backend/internal/storage/models"
)

// vectorCandidates scores records with a fresh embedding against the query
// vector. Records already surfaced by the keyword path are excluded, so the
// two result sets stay disjoint.
func (s *Service) vectorCandidates(ctx context.Context, query string, excludeIDs []string) ([]models.CandidateResult, error) {
	text := normalize.Clean(query)
	if len([]rune(text)) < s.minChars {
		return nil, nil
	}

	queryVector, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if queryVector == nil {
		return nil, nil
	}

	pool, err := s.store.FreshEmbeddings(excludeIDs, s.cfg.RawCandidateCap)
	if err != nil {
		return nil, err
	}

	var candidates []models.CandidateResult
	for _, row := range pool {
		score := int(math.Round(100 * embedding.Cosine(queryVector, row.Vector)))
		if score < s.cfg.VectorFloor {
			continue
		}

		candidates = append(candidates, models.CandidateResult{
			DocumentID: row.ID,
			Score:      score,
			MatchType:  models.MatchEmbedding,
		})
	}

	sortCandidates(candidates)
	if len(candidates) > s.cfg.VectorTopN {
		candidates = candidates[:s.cfg.VectorTopN]
	}

	return candidates, nil
}
