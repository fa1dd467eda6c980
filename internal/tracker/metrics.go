package tracker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "psync",
			Subsystem: "tracker",
			Name:      "requests_total",
			Help:      "Tracker API calls by HTTP method and outcome kind.",
		},
		[]string{"method", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "psync",
			Subsystem: "tracker",
			Name:      "request_duration_seconds",
			Help:      "Tracker API call latency.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method"},
	)
)
