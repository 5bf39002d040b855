package analytics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// EventsAnalyzed counts envelopes applied to the aggregate by type.
	EventsAnalyzed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ordermesh_analytics_events_total",
			Help: "Total number of order events applied to the analytics aggregate",
		},
		[]string{"event_type"},
	)

	// RevenueTotal mirrors the running revenue sum of Created totals.
	RevenueTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ordermesh_analytics_revenue_total",
			Help: "Running revenue total from OrderCreated events",
		},
	)
)
