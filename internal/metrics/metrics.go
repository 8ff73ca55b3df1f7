// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ride_dispatch"

var (
	RidesRequested = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rides_requested_total", Help: "Ride requests accepted for dispatch"},
		[]string{"vehicle_class"},
	)
	OffersSent = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "offers_sent_total", Help: "Ride offers emitted to drivers",
	})
	NoDriversAvailable = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "no_drivers_available_total", Help: "Requests or re-offers that found no eligible driver",
	})
	ClaimAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "claim_attempts_total", Help: "Driver accept attempts by outcome"},
		[]string{"result"},
	)
	Withdrawals = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace, Name: "driver_withdrawals_total", Help: "Assigned drivers that withdrew before pickup",
	})
	RideTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "ride_transitions_total", Help: "Ride status changes by target status"},
		[]string{"status"},
	)
	DispatchLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "dispatch_latency_seconds",
		Help:      "Time from ride request to offers sent",
		Buckets:   prometheus.DefBuckets,
	})

	ActiveSessions = promauto.NewGaugeVec(
		prometheus.GaugeOpts{Namespace: namespace, Name: "active_sessions", Help: "Connected realtime sessions"},
		[]string{"role"},
	)
	NotificationsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "notifications_dropped_total", Help: "Events not delivered because the recipient was offline or slow"},
		[]string{"event"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Claim outcomes.
const (
	ClaimWon  = "won"
	ClaimLost = "lost"
)
