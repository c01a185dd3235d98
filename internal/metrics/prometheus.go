package metrics

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewlens_search_duration_seconds",
			Help:    "Similarity search duration in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		},
	)

	SearchResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reviewlens_search_results",
			Help:    "Candidates returned per search by match type",
			Buckets: []float64{0, 1, 2, 5, 10},
		},
		[]string{"match_type"},
	)

	SearchDegraded = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewlens_search_degraded_total",
			Help: "Searches that fell back to keyword-only results",
		},
	)

	BackfillRecords = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reviewlens_backfill_records_total",
			Help: "Backfill per-record outcomes",
		},
		[]string{"mode", "outcome"},
	)

	AnalysisBadReviews = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewlens_analysis_bad_reviews",
			Help:    "Low-scoring reviews found per analyzed agent",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	AnalysisUnresolved = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reviewlens_analysis_unresolved_issues",
			Help:    "Unresolved issues per analyzed agent",
			Buckets: []float64{0, 1, 2, 5, 10, 20},
		},
	)

	SummariesGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reviewlens_summaries_generated_total",
			Help: "Issue summaries requested from the provider",
		},
	)
)

func Init() {
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(SearchResults)
	prometheus.MustRegister(SearchDegraded)
	prometheus.MustRegister(BackfillRecords)
	prometheus.MustRegister(AnalysisBadReviews)
	prometheus.MustRegister(AnalysisUnresolved)
	prometheus.MustRegister(SummariesGenerated)
}

func MetricsHandler() fiber.Handler {
	return adaptor.HTTPHandler(promhttp.Handler())
}
