// Package metrics holds the prometheus collectors shared by the engine,
// refresh controller and notification sources.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iamgilwell/proctopo/internal/topology"
)

const namespace = "proctopo"

// Refresh outcomes.
const (
	OutcomeApplied   = "applied"
	OutcomeFailed    = "failed"
	OutcomeDiscarded = "discarded"
	OutcomeRejected  = "rejected"
)

var (
	RefreshTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_total",
		Help:      "Completed refreshes by outcome.",
	}, []string{"outcome"})

	RefreshCoalesced = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "refresh_coalesced_total",
		Help:      "Refresh signals absorbed by an in-flight fetch.",
	})

	RefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "refresh_duration_seconds",
		Help:      "Duration of one process and socket fetch pair.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
	})

	ForestNodes = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forest_nodes",
		Help:      "Nodes in the current forest, placeholders included.",
	})

	ForestPlaceholders = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forest_placeholders",
		Help:      "Placeholder roots in the current forest.",
	})

	ForestCyclesBroken = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "forest_cycles_broken",
		Help:      "Parent cycles broken while building the current forest.",
	})

	SelectionChanges = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selection_changes_total",
		Help:      "Selection changes, clears included.",
	})

	Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notifications_total",
		Help:      "Refresh notifications published by source.",
	}, []string{"source"})
)

// ObserveForest records the shape of a freshly applied forest.
func ObserveForest(s topology.Stats) {
	ForestNodes.Set(float64(s.Nodes))
	ForestPlaceholders.Set(float64(s.Placeholders))
	ForestCyclesBroken.Set(float64(s.CyclesBroken))
}
