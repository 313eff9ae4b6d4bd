package llm

import "github.com/prometheus/client_golang/prometheus"

var (
	// llmRequests counts provider calls by provider and outcome
	// (ok|invalid_response|timeout|error).
	llmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "Total number of language model requests.",
		},
		[]string{"provider", "outcome"},
	)

	// llmLatency records end-to-end call duration including retries.
	llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "Duration of language model requests in seconds, retries included.",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(llmRequests, llmLatency)
}
