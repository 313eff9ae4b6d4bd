package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/review-insights-backend/internal/domain"
)

var (
	// processed counts finalized submissions by terminal status.
	processed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "submissions_processed_total",
			Help: "Total number of submissions finalized by the processor.",
		},
		[]string{"status"},
	)

	// processingLat records load-to-final-write duration.
	processingLat = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "submission_processing_seconds",
			Help:    "Time spent processing one submission in seconds.",
			Buckets: []float64{.1, .25, .5, 1, 2, 5, 10, 30, 60, 120},
		},
	)
)

func init() {
	prometheus.MustRegister(processed, processingLat)
}

func observeProcessed(st domain.SubmissionStatus, start time.Time) {
	processed.WithLabelValues(string(st)).Inc()
	processingLat.Observe(time.Since(start).Seconds())
}
