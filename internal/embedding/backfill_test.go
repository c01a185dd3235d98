package embedding

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/internal/storage/sqlite"
	"github.com/reviewlens/backend/pkg/config"
)

type stubEmbedder struct {
	calls         atomic.Int32
	failSubstring string
}

func (s *stubEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	s.calls.Add(1)
	if s.failSubstring != "" && strings.Contains(text, s.failSubstring) {
		return nil, errors.New("provider unavailable")
	}
	return []float32{1, 0, 0}, nil
}

func backfillConfig() config.BackfillConfig {
	return config.BackfillConfig{
		BatchSize:    2,
		BatchDelayMS: 1,
		WindowDays:   30,
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

func TestBackfillFreshMissingIsIdempotent(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "r1", "agent closed the ticket without confirmation")
	addReview(t, store, "r2", "eskalirao tiket bez provjere procedure")
	addReview(t, store, "r3", "agent ignored two follow-up replies")

	emb := &stubEmbedder{}
	bf := NewBackfiller(store, emb, backfillConfig(), 8)

	first, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 3}, first)

	second, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Processed, "second run with no edits must process nothing")
	assert.Equal(t, int32(3), emb.calls.Load(), "no provider calls on the second run")
}

func TestBackfillForceRecomputesEverything(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "r1", "agent closed the ticket without confirmation")
	addReview(t, store, "r2", "eskalirao tiket bez provjere procedure")

	emb := &stubEmbedder{}
	bf := NewBackfiller(store, emb, backfillConfig(), 8)

	_, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)

	forced, err := bf.Run(context.Background(), ModeForce)
	require.NoError(t, err)
	assert.Equal(t, 2, forced.Processed)
	assert.Equal(t, int32(4), emb.calls.Load())
}

func TestBackfillSkipsShortTextWithoutProviderCall(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "short", "ok")
	addReview(t, store, "long", "detailed notes about a mishandled refund request")

	emb := &stubEmbedder{}
	bf := NewBackfiller(store, emb, backfillConfig(), 8)

	result, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)
	assert.Equal(t, Result{Processed: 1, Skipped: 1}, result)
	assert.Equal(t, int32(1), emb.calls.Load(), "too-short text must never reach the provider")
}

func TestBackfillIsolatesPerRecordFailures(t *testing.T) {
	store := seedStore(t)
	addReview(t, store, "bad", "poisoned record that the provider rejects")
	addReview(t, store, "good-1", "agent answered with the wrong macro entirely")
	addReview(t, store, "good-2", "agent forgot to tag the conversation category")

	emb := &stubEmbedder{failSubstring: "poisoned"}
	bf := NewBackfiller(store, emb, backfillConfig(), 8)

	result, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Processed)
	assert.Equal(t, 1, result.Errors)

	// The failed record stays eligible; the processed ones do not.
	retry, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)
	assert.Equal(t, 1, retry.Errors)
	assert.Equal(t, 0, retry.Processed)
}

func TestBackfillEmitsProgress(t *testing.T) {
	store := seedStore(t)
	for _, id := range []string{"r1", "r2", "r3"} {
		addReview(t, store, id, "notes long enough to embed for "+id)
	}

	bf := NewBackfiller(store, &stubEmbedder{}, backfillConfig(), 8)

	var events []Progress
	bf.OnProgress(func(p Progress) { events = append(events, p) })

	_, err := bf.Run(context.Background(), ModeFreshMissing)
	require.NoError(t, err)

	require.Len(t, events, 2, "batch size 2 over 3 records yields 2 batches")
	assert.Equal(t, 3, events[0].Total)
	assert.Equal(t, 2, events[0].Done)
	assert.Equal(t, 3, events[1].Done)
	assert.Equal(t, 3, events[1].Processed)
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("force")
	require.NoError(t, err)
	assert.Equal(t, ModeForce, m)

	_, err = ParseMode("everything")
	assert.Error(t, err)
}
