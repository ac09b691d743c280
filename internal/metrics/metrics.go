// Package metrics defines the Prometheus collectors shared across hirecall.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsPlaced counts outbound calls handed to the telephony provider.
	CallsPlaced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hirecall_calls_placed_total",
		Help: "Outbound calls placed.",
	})

	// CallsCompleted counts conversations that reached an outcome, by final
	// hiring status.
	CallsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hirecall_calls_completed_total",
		Help: "Conversations that produced a final outcome.",
	}, []string{"status"})

	// FallbackActivations counts degraded turns, by failing service.
	FallbackActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hirecall_fallback_activations_total",
		Help: "External service failures absorbed by the fallback policy.",
	}, []string{"service"})

	// ConversationTurns observes how many turns each conversation took.
	ConversationTurns = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hirecall_conversation_turns",
		Help:    "Turns taken per completed conversation.",
		Buckets: prometheus.LinearBuckets(1, 1, 10),
	})
)
