package search

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"github.com/reviewlens/backend/internal/normalize"
	"github.com/reviewlens/backend/internal/storage/models"
)

// Token boundaries are runs of anything that is not a letter or digit, so the
// corpus's accented letters (č, ć, đ, š, ž) stay inside tokens.
var tokenRE = regexp.MustCompile(`[\p{L}\p{N}]+`)

const minTokenLen = 3

// Tokenize normalizes and lowercases the query, splits it on non-alphanumeric
// boundaries, drops short tokens and stop-words, and keeps at most maxTokens
// survivors in their original order.
func Tokenize(query string, maxTokens int) []string {
	text := strings.ToLower(normalize.Clean(query))

	var tokens []string
	for _, tok := range tokenRE.FindAllString(text, -1) {
		if len([]rune(tok)) < minTokenLen || isStopWord(tok) {
			continue
		}
		tokens = append(tokens, tok)
		if len(tokens) == maxTokens {
			break
		}
	}

	return tokens
}

// keywordCandidates runs the lexical pre-filter: any record containing any
// token is a raw candidate, scored by the fraction of query tokens it
// contains.
func (s *Service) keywordCandidates(query string, excludeIDs []string) ([]models.CandidateResult, []string, error) {
	tokens := Tokenize(query, s.cfg.MaxTokens)
	if len(tokens) == 0 {
		return nil, nil, nil
	}

	hits, err := s.store.SearchByTokens(tokens, excludeIDs, s.cfg.RawCandidateCap)
	if err != nil {
		return nil, tokens, err
	}

	var candidates []models.CandidateResult
	for _, hit := range hits {
		matched := 0
		for _, tok := range tokens {
			if strings.Contains(hit.SearchText, tok) {
				matched++
			}
		}

		score := int(math.Round(100 * float64(matched) / float64(len(tokens))))
		if score < s.cfg.KeywordFloor {
			continue
		}

		candidates = append(candidates, models.CandidateResult{
			DocumentID: hit.ID,
			Score:      score,
			MatchType:  models.MatchKeyword,
		})
	}

	sortCandidates(candidates)
	if len(candidates) > s.cfg.KeywordTopN {
		candidates = candidates[:s.cfg.KeywordTopN]
	}

	return candidates, tokens, nil
}

func sortCandidates(cs []models.CandidateResult) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Score == cs[j].Score {
			return cs[i].DocumentID < cs[j].DocumentID
		}
		return cs[i].Score > cs[j].Score
	})
}
