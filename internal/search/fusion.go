package search

import "github.com/reviewlens/backend/internal/storage/models"

// fuse merges the keyword and vector candidate streams by document id. The
// vector finder already excludes keyword hits, so overlap should not occur;
// if it does, the higher score wins and the match type follows it.
func fuse(keyword, vector []models.CandidateResult, limit int) []models.CandidateResult {
	byID := make(map[string]models.CandidateResult, len(keyword)+len(vector))

	for _, c := range keyword {
		byID[c.DocumentID] = c
	}
	for _, c := range vector {
		if existing, ok := byID[c.DocumentID]; !ok || c.Score > existing.Score {
			byID[c.DocumentID] = c
		}
	}

	merged := make([]models.CandidateResult, 0, len(byID))
	for _, c := range byID {
		merged = append(merged, c)
	}

	sortCandidates(merged)
	if len(merged) > limit {
		merged = merged[:limit]
	}

	return merged
}
