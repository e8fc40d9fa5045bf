package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	DonorsRegistered = promauto.NewCounter(prometheus.CounterOpts{Namespace: "donor_finder", Name: "donors_registered_total", Help: "Total donors registered"})
	SearchesTotal    = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "donor_finder", Name: "searches_total", Help: "Donor searches by mode"},
		[]string{"mode"},
	)
	RankLatency     = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "donor_finder", Name: "rank_latency_seconds", Help: "Time spent ranking a candidate list", Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10)})
	RankCandidates  = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "donor_finder", Name: "rank_candidates", Help: "Candidate donors per ranking call", Buckets: []float64{0, 5, 10, 25, 50, 100, 200, 400}})
	PublishFailures = promauto.NewCounter(prometheus.CounterOpts{Namespace: "donor_finder", Name: "publish_failures_total", Help: "Registration events that could not be published"})
	IndexFailures   = promauto.NewCounter(prometheus.CounterOpts{Namespace: "donor_finder", Name: "geo_index_failures_total", Help: "Geo index writes or lookups that failed"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "donor_finder", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "donor_finder",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
