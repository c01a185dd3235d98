package search

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/config"
)

type stubEmbedder struct {
	vector []float32
	err    error
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.vector, nil
}

func searchConfig() config.SearchConfig {
	return config.SearchConfig{
		KeywordFloor:    20,
		VectorFloor:     25,
		KeywordTopN:     5,
		VectorTopN:      5,
		MaxTokens:       15,
		RawCandidateCap: 100,
		DefaultLimit:    10,
		EmbedTimeoutSec: 1,
	}
}

func seedStore(t *testing.T) *sqlite.Client {
	t.Helper()

	store, err := sqlite.NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { store.Close() })

	return store
}

func addReview(t *testing.T, store *sqlite.Client, id, notes string) {
	t.Helper()

	score := 80
	now := time.Now()
	rec := &models.ReviewRecord{
		ID:        id,
		AgentID:   "a1",
		Notes:     notes,
		Score:     &score,
		GradedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.CreateReview(rec, strings.ToLower(notes)))
}

func TestFindSimilarKeywordPath(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "hit", "close-ovao tiket nakon rg-a")
	addReview(t, store, "miss", "potpuno nepovezan sadržaj o povratu")

	svc := NewService(store, &stubEmbedder{err: errors.New("no provider")}, searchConfig(), 8)

	results, err := svc.FindSimilar(context.Background(), "close-ovao tiket nakon rg1 macro-a", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "hit", results[0].DocumentID)
	assert.Equal(t, models.MatchKeyword, results[0].MatchType)
	assert.GreaterOrEqual(t, results[0].Score, 20)
}

func TestFindSimilarVectorPath(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "semantic", "agent je prekasno odgovorio na upit")
	require.NoError(t, store.StoreEmbedding("semantic", []float32{1, 0, 0}))
	addReview(t, store, "far", "unrelated shipping damage complaint")
	require.NoError(t, store.StoreEmbedding("far", []float32{0, 1, 0}))

	svc := NewService(store, &stubEmbedder{vector: []float32{0.9, 0.1, 0}}, searchConfig(), 8)

	results, err := svc.FindSimilar(context.Background(), "kašnjenje odgovora na upite", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "semantic", results[0].DocumentID)
	assert.Equal(t, models.MatchEmbedding, results[0].MatchType)
	assert.GreaterOrEqual(t, results[0].Score, 25)
}

func TestFindSimilarNeverReturnsExcludedID(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "self", "close-ovao tiket nakon rg-a")
	addReview(t, store, "other", "close-ovao tiket bez odgovora korisniku")

	svc := NewService(store, &stubEmbedder{err: errors.New("down")}, searchConfig(), 8)

	results, err := svc.FindSimilar(context.Background(), "close-ovao tiket", "self", 10)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "self", r.DocumentID)
	}
	require.Len(t, results, 1)
	assert.Equal(t, "other", results[0].DocumentID)
}

func TestFindSimilarPathsAreDisjoint(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "lexical", "refund process skipped entirely by agent")
	require.NoError(t, store.StoreEmbedding("lexical", []float32{1, 0, 0}))
	addReview(t, store, "vectorial", "povrat novca nije obrađen na vrijeme")
	require.NoError(t, store.StoreEmbedding("vectorial", []float32{1, 0, 0}))

	// The query matches "lexical" by wording; both stored vectors are
	// identical to the query vector, but the keyword hit must not reappear
	// on the embedding side.
	svc := NewService(store, &stubEmbedder{vector: []float32{1, 0, 0}}, searchConfig(), 8)

	results, err := svc.FindSimilar(context.Background(), "refund process skipped", "", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)

	seen := map[string]models.MatchType{}
	for _, r := range results {
		_, dup := seen[r.DocumentID]
		assert.False(t, dup, "duplicate document id in results")
		seen[r.DocumentID] = r.MatchType
	}
	assert.Equal(t, models.MatchKeyword, seen["lexical"])
	assert.Equal(t, models.MatchEmbedding, seen["vectorial"])
}

func TestFindSimilarDegradesToKeywordOnlyOnEmbedFailure(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "hit", "eskalacija bez odobrenja voditelja")

	svc := NewService(store, &stubEmbedder{err: errors.New("provider timeout")}, searchConfig(), 8)

	results, err := svc.FindSimilar(context.Background(), "eskalacija bez odobrenja", "", 10)
	require.NoError(t, err, "embedding failures must not surface to the caller")
	require.Len(t, results, 1)
	assert.Equal(t, models.MatchKeyword, results[0].MatchType)
}

func TestFindSimilarShortQuerySkipsProvider(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "any", "xyz abc")
	require.NoError(t, store.StoreEmbedding("any", []float32{1}))

	embedderCalled := false
	svc := NewService(store, embedFunc(func(ctx context.Context, text string) ([]float32, error) {
		embedderCalled = true
		return []float32{1}, nil
	}), searchConfig(), 8)

	_, err := svc.FindSimilar(context.Background(), "xyz", "", 10)
	require.NoError(t, err)
	assert.False(t, embedderCalled, "below-minimum query must never reach the provider")
}

func TestFindSimilarRespectsLimit(t *testing.T) {
	store := seedStore(t)
	for _, id := range []string{"r1", "r2", "r3", "r4"} {
		addReview(t, store, id, "identical complaint wording for "+id)
	}

	svc := NewService(store, &stubEmbedder{err: errors.New("down")}, searchConfig(), 8)

	results, err := svc.FindSimilar(context.Background(), "identical complaint wording", "", 2)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

type embedFunc func(ctx context.Context, text string) ([]float32, error)

func (f embedFunc) Embed(ctx context.Context, text string) ([]float32, error) {
	return f(ctx, text)
}

func TestFuseKeepsHigherScoreOnOverlap(t *testing.T) {
	keyword := []models.CandidateResult{
		{DocumentID: "d1", Score: 40, MatchType: models.MatchKeyword},
	}
	vector := []models.CandidateResult{
		{DocumentID: "d1", Score: 80, MatchType: models.MatchEmbedding},
		{DocumentID: "d2", Score: 30, MatchType: models.MatchEmbedding},
	}

	merged := fuse(keyword, vector, 10)
	require.Len(t, merged, 2)
	assert.Equal(t, "d1", merged[0].DocumentID)
	assert.Equal(t, 80, merged[0].Score)
	assert.Equal(t, models.MatchEmbedding, merged[0].MatchType)
}
