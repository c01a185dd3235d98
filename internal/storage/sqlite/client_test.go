package sqlite

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewlens/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(":memory:")
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })

	return c
}

func intPtr(v int) *int { return &v }

func testReview(id, agentID, notes string) *models.ReviewRecord {
	now := time.Now()
	return &models.ReviewRecord{
		ID:        id,
		AgentID:   agentID,
		Notes:     notes,
		Score:     intPtr(75),
		GradedAt:  now,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndGetReview(t *testing.T) {
	c := newTestClient(t)

	rec := testReview("r1", "a1", "agent skipped the greeting macro")
	rec.Categories = []string{"tone", "process"}
	require.NoError(t, c.CreateReview(rec, "agent skipped the greeting macro"))

	got, err := c.GetReview("r1", false)
	require.NoError(t, err)
	assert.Equal(t, "a1", got.AgentID)
	assert.Equal(t, 75, *got.Score)
	assert.Equal(t, []string{"tone", "process"}, got.Categories)
	assert.True(t, got.EmbeddingStale, "new review must start stale")
	assert.Nil(t, got.Embedding)
}

func TestStoreEmbeddingClearsStaleFlag(t *testing.T) {
	c := newTestClient(t)

	rec := testReview("r1", "a1", "notes")
	require.NoError(t, c.CreateReview(rec, "notes"))
	require.NoError(t, c.StoreEmbedding("r1", []float32{0.1, 0.2, 0.3}))

	got, err := c.GetReview("r1", true)
	require.NoError(t, err)
	assert.False(t, got.EmbeddingStale)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, got.Embedding)
}

func TestUpdateReviewMarksStaleOnContentChange(t *testing.T) {
	c := newTestClient(t)

	rec := testReview("r1", "a1", "original notes")
	require.NoError(t, c.CreateReview(rec, "original notes"))
	require.NoError(t, c.StoreEmbedding("r1", []float32{1, 0}))

	// Non-content change (score only): embedding stays fresh.
	rec.Score = intPtr(90)
	require.NoError(t, c.UpdateReview(rec, "original notes"))
	got, err := c.GetReview("r1", true)
	require.NoError(t, err)
	assert.False(t, got.EmbeddingStale)

	// Content change: stale, but the old vector is kept until backfill.
	rec.Notes = "edited notes"
	require.NoError(t, c.UpdateReview(rec, "edited notes"))
	got, err = c.GetReview("r1", true)
	require.NoError(t, err)
	assert.True(t, got.EmbeddingStale)
	assert.Equal(t, []float32{1, 0}, got.Embedding)
}

func TestSelectBackfillCandidates(t *testing.T) {
	c := newTestClient(t)
	since := time.Now().Add(-24 * time.Hour)

	fresh := testReview("fresh", "a1", "already embedded")
	require.NoError(t, c.CreateReview(fresh, "already embedded"))
	require.NoError(t, c.StoreEmbedding("fresh", []float32{1}))

	missing := testReview("missing", "a1", "never embedded")
	require.NoError(t, c.CreateReview(missing, "never embedded"))

	empty := testReview("empty", "a1", "")
	require.NoError(t, c.CreateReview(empty, ""))

	got, err := c.SelectBackfillCandidates(since, false)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "missing", got[0].ID)

	// Force mode picks up the fresh record too, but never the empty one.
	got, err = c.SelectBackfillCandidates(since, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestSearchByTokensExcludesIDs(t *testing.T) {
	c := newTestClient(t)

	a := testReview("a", "x", "")
	require.NoError(t, c.CreateReview(a, "close-ovao tiket nakon rg-a"))
	b := testReview("b", "x", "")
	require.NoError(t, c.CreateReview(b, "eskalirao tiket bez razloga"))

	hits, err := c.SearchByTokens([]string{"tiket"}, []string{"b"}, 100)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "a", hits[0].ID)
}

func TestFreshEmbeddingsPool(t *testing.T) {
	c := newTestClient(t)

	for _, id := range []string{"r1", "r2", "r3"} {
		require.NoError(t, c.CreateReview(testReview(id, "a1", "text "+id), "text "+id))
	}
	require.NoError(t, c.StoreEmbedding("r1", []float32{1, 0}))
	require.NoError(t, c.StoreEmbedding("r2", []float32{0, 1}))
	// r3 keeps no embedding; r2 goes stale again via a content edit.
	r2 := testReview("r2", "a1", "changed")
	require.NoError(t, c.UpdateReview(r2, "changed"))

	rows, err := c.FreshEmbeddings(nil, 10)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "r1", rows[0].ID)

	rows, err = c.FreshEmbeddings([]string{"r1"}, 10)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReplaceAgentIssues(t *testing.T) {
	c := newTestClient(t)

	first := []models.AgentIssueEntry{
		{ID: "i1", AgentID: "a1", ReviewID: "r1", Summary: "missed SLA", CreatedAt: time.Now()},
		{ID: "i2", AgentID: "a1", ReviewID: "r2", Summary: "wrong macro", CreatedAt: time.Now()},
	}
	require.NoError(t, c.ReplaceAgentIssues("a1", first))

	second := []models.AgentIssueEntry{
		{ID: "i3", AgentID: "a1", ReviewID: "r3", Summary: "tone issue", CreatedAt: time.Now()},
	}
	require.NoError(t, c.ReplaceAgentIssues("a1", second))

	got, err := c.ListAgentIssues("a1")
	require.NoError(t, err)
	require.Len(t, got, 1, "replacement must not merge with the previous run")
	assert.Equal(t, "i3", got[0].ID)
	assert.Equal(t, "tone issue", got[0].Summary)
}

func TestAgentDirectory(t *testing.T) {
	c := newTestClient(t)

	require.NoError(t, c.UpsertAgent(&models.Agent{ID: "a1", DisplayName: "Ivana K.", Team: "tier1", Active: true}))
	require.NoError(t, c.UpsertAgent(&models.Agent{ID: "a2", DisplayName: "Marko B.", Active: false}))

	agents, err := c.ListActiveAgents()
	require.NoError(t, err)
	require.Len(t, agents, 1)
	assert.Equal(t, "Ivana K.", agents[0].DisplayName)

	got, err := c.GetAgent("a2")
	require.NoError(t, err)
	assert.False(t, got.Active)
}
