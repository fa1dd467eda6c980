package sync

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	syncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psync_sync_runs_total",
		Help: "Sync runs by outcome (ok, warning, fatal).",
	}, []string{"outcome"})

	syncWarnings = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psync_sync_warnings_total",
		Help: "Warnings reported by sync runs.",
	})

	docTasks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "psync_doc_tasks_total",
		Help: "Documentation tasks written, by operation.",
	}, []string{"op"})

	backfilledEntries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "psync_backfilled_entries_total",
		Help: "Journal entries backfilled as remote tasks.",
	})

	syncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "psync_sync_duration_seconds",
		Help:    "Wall time of sync runs.",
		Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
	})
)

func recordRun(res *Result, err error) {
	switch {
	case err != nil:
		syncRuns.WithLabelValues("fatal").Inc()
		return
	case len(res.Warnings) > 0:
		syncRuns.WithLabelValues("warning").Inc()
	default:
		syncRuns.WithLabelValues("ok").Inc()
	}
	syncWarnings.Add(float64(len(res.Warnings)))
	docTasks.WithLabelValues("created").Add(float64(res.DocsCreated))
	docTasks.WithLabelValues("updated").Add(float64(res.DocsUpdated))
	backfilledEntries.Add(float64(res.BackfillCount))
	syncDuration.Observe(res.Duration.Seconds())
}
