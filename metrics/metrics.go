// Package metrics holds the prometheus collectors shared by all engines.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// ActorsSpawned counts actors started per engine.
	ActorsSpawned = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaybench",
			Subsystem: "actor",
			Name:      "spawned_total",
			Help:      "The total number of actors spawned.",
		}, []string{"engine"})
	// LiveActors tracks actors that have been spawned and not yet stopped.
	LiveActors = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "relaybench",
			Subsystem: "actor",
			Name:      "live",
			Help:      "The number of live actors.",
		}, []string{"engine"})
	// MessagesHandled counts handler invocations.
	MessagesHandled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaybench",
			Subsystem: "actor",
			Name:      "messages_handled_total",
			Help:      "The total number of messages handled by actors.",
		}, []string{"engine"})
	// DeliveryFailures counts messages rejected by torn down mailboxes.
	DeliveryFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relaybench",
			Subsystem: "actor",
			Name:      "delivery_failures_total",
			Help:      "The total number of messages that could not be delivered.",
		}, []string{"engine"})
)

// InitMetrics registers all metrics in this file
func InitMetrics(registry *prometheus.Registry) {
	registry.MustRegister(ActorsSpawned)
	registry.MustRegister(LiveActors)
	registry.MustRegister(MessagesHandled)
	registry.MustRegister(DeliveryFailures)
}
