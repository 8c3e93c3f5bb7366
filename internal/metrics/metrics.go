// Package metrics holds the Prometheus collectors for the pipeline. They are
// registered on the default registry and served at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ItemsFetchedTotal counts threads and posts returned by connectors.
	ItemsFetchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_items_fetched_total",
			Help: "Threads and posts returned by source connectors",
		},
		[]string{"source", "kind"},
	)

	CommentsInsertedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_comments_inserted_total",
			Help: "New comments stored",
		},
		[]string{"source"},
	)

	CommentsDuplicateTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_comments_duplicate_total",
			Help: "Posts skipped because the comment was already stored",
		},
		[]string{"source"},
	)

	MentionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_mentions_total",
			Help: "Player mentions recorded",
		},
		[]string{"source"},
	)

	ScoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_sentiment_scores_total",
			Help: "Sentiment score rows written",
		},
		[]string{"source", "model"},
	)

	MalformedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_malformed_items_total",
			Help: "Upstream items skipped as malformed",
		},
		[]string{"source"},
	)

	FetchErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_fetch_errors_total",
			Help: "Connector fetch errors by transience",
		},
		[]string{"source", "transient"},
	)

	CrawlDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fansapprove_crawl_duration_seconds",
			Help:    "Duration of one source crawl including retries",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"source", "outcome"},
	)

	AggregateRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_aggregate_rows_total",
			Help: "Daily metric rows written or deleted by the aggregator",
		},
		[]string{"op"},
	)

	RosterReconcileTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fansapprove_roster_reconcile_total",
			Help: "Roster reconcile changes",
		},
		[]string{"change"},
	)
)

func RecordCrawl(source string, ok bool, d time.Duration) {
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	CrawlDuration.WithLabelValues(source, outcome).Observe(d.Seconds())
}

func RecordFetchError(source string, transient bool) {
	label := "false"
	if transient {
		label = "true"
	}
	FetchErrorsTotal.WithLabelValues(source, label).Inc()
}
