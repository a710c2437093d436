// Package metrics exposes fabrication counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// segmentsCrafted counts segments that reached Crafted.
	// Labels: type (Initial, Continue, NextMain, NextMacro)
	segmentsCrafted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segmentcraft",
		Subsystem: "fabrication",
		Name:      "segments_crafted_total",
		Help:      "Total segments crafted by segment type",
	}, []string{"type"})

	// segmentsFailed counts craft attempts that were reverted.
	// Labels: kind (validation, existence, privilege, fatal, other)
	segmentsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segmentcraft",
		Subsystem: "fabrication",
		Name:      "segments_failed_total",
		Help:      "Total failed craft attempts by error kind",
	}, []string{"kind"})

	craftDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "segmentcraft",
		Subsystem: "fabrication",
		Name:      "craft_duration_seconds",
		Help:      "Time to craft one segment",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
	})

	segmentsCleaned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "segmentcraft",
		Subsystem: "fabrication",
		Name:      "segments_cleaned_total",
		Help:      "Total segments removed after leaving the persistence window",
	})

	// chainsFabricating is the number of chains in Fabricate state at the last work cycle.
	chainsFabricating = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "segmentcraft",
		Subsystem: "worker",
		Name:      "chains_fabricating",
		Help:      "Chains in Fabricate state at the last work cycle",
	})

	workCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "segmentcraft",
		Subsystem: "worker",
		Name:      "cycles_total",
		Help:      "Work cycles by outcome",
	}, []string{"status"})
)

func RecordSegmentCrafted(segmentType string, elapsed time.Duration) {
	segmentsCrafted.WithLabelValues(segmentType).Inc()
	craftDuration.Observe(elapsed.Seconds())
}

func RecordSegmentFailed(kind string) {
	if kind == "" {
		kind = "other"
	}
	segmentsFailed.WithLabelValues(kind).Inc()
}

func RecordSegmentsCleaned(n int) {
	segmentsCleaned.Add(float64(n))
}

func SetChainsFabricating(n int) {
	chainsFabricating.Set(float64(n))
}

// RecordWorkCycle counts a finished cycle; status is "success" or "error".
func RecordWorkCycle(status string) {
	workCycles.WithLabelValues(status).Inc()
}
