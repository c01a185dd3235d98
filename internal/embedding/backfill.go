package embedding

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/reviewlens/backend/internal/metrics"
	"github.com/reviewlens/backend/internal/normalize"
	"github.com/reviewlens/backend/internal/storage/models"
	"github.com/reviewlens/backend/pkg/config"
	"github.com/reviewlens/backend/pkg/logger"
)

// Mode selects which records a backfill run touches.
type Mode string

const (
	// ModeFreshMissing embeds only records whose vector is absent or stale.
	// Running it twice with no intervening edits processes nothing the
	// second time.
	ModeFreshMissing Mode = "fresh-missing"
	// ModeForce recomputes every eligible vector, used after a provider or
	// model upgrade. Not idempotent by design.
	ModeForce Mode = "force"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeFreshMissing, ModeForce:
		return Mode(s), nil
	default:
		return "", fmt.Errorf("unknown backfill mode %q", s)
	}
}

// Embedder is the provider capability the backfiller depends on.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the slice of the document store the backfiller uses.
type Store interface {
	SelectBackfillCandidates(since time.Time, force bool) ([]models.ReviewRecord, error)
	StoreEmbedding(reviewID string, vector []float32) error
}

// Result tallies per-record outcomes of one run.
type Result struct {
	Processed int `json:"processed"`
	Skipped   int `json:"skipped"`
	Errors    int `json:"errors"`
}

// Progress is emitted after each batch for observers (the websocket stream).
type Progress struct {
	Mode      Mode `json:"mode"`
	Total     int  `json:"total"`
	Done      int  `json:"done"`
	Processed int  `json:"processed"`
	Skipped   int  `json:"skipped"`
	Errors    int  `json:"errors"`
}

// Backfiller embeds record populations in fixed-size concurrent batches with
// a fixed delay between batches, so load on the provider stays bounded and
// analyzable.
type Backfiller struct {
	store      Store
	embedder   Embedder
	batchSize  int
	gate       *rate.Limiter
	window     time.Duration
	minChars   int
	onProgress func(Progress)
}

func NewBackfiller(store Store, embedder Embedder, cfg config.BackfillConfig, minChars int) *Backfiller {
	batchDelay := time.Duration(cfg.BatchDelayMS) * time.Millisecond
	if batchDelay <= 0 {
		batchDelay = time.Second
	}

	return &Backfiller{
		store:     store,
		embedder:  embedder,
		batchSize: cfg.BatchSize,
		gate:      rate.NewLimiter(rate.Every(batchDelay), 1),
		window:    time.Duration(cfg.WindowDays) * 24 * time.Hour,
		minChars:  minChars,
	}
}

// OnProgress registers a batch-completion observer. Must be set before Run.
func (b *Backfiller) OnProgress(fn func(Progress)) {
	b.onProgress = fn
}

// Run selects the eligible population for the mode and embeds it. Per-record
// provider failures are counted and never abort the remaining batch.
func (b *Backfiller) Run(ctx context.Context, mode Mode) (Result, error) {
	since := time.Now().Add(-b.window)

	candidates, err := b.store.SelectBackfillCandidates(since, mode == ModeForce)
	if err != nil {
		return Result{}, fmt.Errorf("failed to select candidates: %w", err)
	}

	logger.Info("Embedding backfill started",
		zap.String("mode", string(mode)),
		zap.Int("candidates", len(candidates)),
		zap.Int("batch_size", b.batchSize),
	)

	var processed, skipped, errored atomic.Int64

	for start := 0; start < len(candidates); start += b.batchSize {
		if err := b.gate.Wait(ctx); err != nil {
			return b.result(&processed, &skipped, &errored), err
		}

		end := start + b.batchSize
		if end > len(candidates) {
			end = len(candidates)
		}

		g, gctx := errgroup.WithContext(ctx)
		for i := start; i < end; i++ {
			rec := candidates[i]
			g.Go(func() error {
				b.processRecord(gctx, mode, &rec, &processed, &skipped, &errored)
				return nil
			})
		}
		g.Wait()

		if b.onProgress != nil {
			b.onProgress(Progress{
				Mode:      mode,
				Total:     len(candidates),
				Done:      end,
				Processed: int(processed.Load()),
				Skipped:   int(skipped.Load()),
				Errors:    int(errored.Load()),
			})
		}

		if ctx.Err() != nil {
			return b.result(&processed, &skipped, &errored), ctx.Err()
		}
	}

	result := b.result(&processed, &skipped, &errored)

	logger.Info("Embedding backfill finished",
		zap.String("mode", string(mode)),
		zap.Int("processed", result.Processed),
		zap.Int("skipped", result.Skipped),
		zap.Int("errors", result.Errors),
	)

	return result, nil
}

func (b *Backfiller) processRecord(ctx context.Context, mode Mode, rec *models.ReviewRecord, processed, skipped, errored *atomic.Int64) {
	text := normalize.Clean(rec.EmbeddingInput())
	if len([]rune(text)) < b.minChars {
		skipped.Add(1)
		metrics.BackfillRecords.WithLabelValues(string(mode), "skipped").Inc()
		return
	}

	vector, err := b.embedder.Embed(ctx, text)
	if err != nil {
		errored.Add(1)
		metrics.BackfillRecords.WithLabelValues(string(mode), "error").Inc()
		logger.Warn("Embedding failed, record left untouched",
			zap.String("review_id", rec.ID),
			zap.Error(err),
		)
		return
	}
	if vector == nil {
		skipped.Add(1)
		metrics.BackfillRecords.WithLabelValues(string(mode), "skipped").Inc()
		return
	}

	if err := b.store.StoreEmbedding(rec.ID, vector); err != nil {
		errored.Add(1)
		metrics.BackfillRecords.WithLabelValues(string(mode), "error").Inc()
		logger.Error("Failed to store embedding", zap.String("review_id", rec.ID), zap.Error(err))
		return
	}

	processed.Add(1)
	metrics.BackfillRecords.WithLabelValues(string(mode), "processed").Inc()
}

func (b *Backfiller) result(processed, skipped, errored *atomic.Int64) Result {
	return Result{
		Processed: int(processed.Load()),
		Skipped:   int(skipped.Load()),
		Errors:    int(errored.Load()),
	}
}
