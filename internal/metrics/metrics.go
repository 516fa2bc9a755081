// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livepoll",
		Name:      "votes_total",
		Help:      "Vote submissions by outcome.",
	}, []string{"outcome"})

	PollsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livepoll",
		Name:      "polls_created_total",
		Help:      "Polls created.",
	})

	LiveSubscriptions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livepoll",
		Name:      "live_subscriptions",
		Help:      "Active live result subscriptions.",
	})

	ChangeFeedEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "livepoll",
		Name:      "change_feed_events_total",
		Help:      "Events received from the change feed by kind.",
	}, []string{"kind"})
)
