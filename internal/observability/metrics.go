package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	activityCreatedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "fenverest",
		Subsystem: "engine",
		Name:      "last_activity_created_timestamp_seconds",
		Help:      "Unix timestamp of the most recent activity persisted.",
	})

	joinResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fenverest",
		Subsystem: "engine",
		Name:      "join_attempts_total",
		Help:      "Join attempts by outcome.",
	}, []string{"outcome"})

	swipeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fenverest",
		Subsystem: "engine",
		Name:      "swipes_total",
		Help:      "Recorded swipes by action.",
	}, []string{"action"})

	matchCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fenverest",
		Subsystem: "engine",
		Name:      "matches_total",
		Help:      "Likes that evaluated to a match.",
	})
)

func init() {
	prometheus.MustRegister(activityCreatedGauge, joinResults, swipeCounter, matchCounter)
}

// RecordActivityCreated updates the persistence watermark gauge.
func RecordActivityCreated(ts time.Time) {
	if ts.IsZero() {
		return
	}
	activityCreatedGauge.Set(float64(ts.Unix()))
}

// RecordJoin counts a join attempt outcome ("admitted", "full", "rejected").
func RecordJoin(outcome string) {
	joinResults.WithLabelValues(outcome).Inc()
}

// RecordSwipe counts a recorded swipe and, when it produced a match, the match.
func RecordSwipe(action string, matched bool) {
	swipeCounter.WithLabelValues(action).Inc()
	if matched {
		matchCounter.Inc()
	}
}
