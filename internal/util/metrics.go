package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	TransitionsAppliedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_applied_total",
		Help: "Total number of committed status transitions",
	}, []string{"axis"})

	TransitionsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_transitions_rejected_total",
		Help: "Total number of rejected status transitions",
	}, []string{"axis", "reason"})

	VersionConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "order_version_conflicts_total",
		Help: "Total number of updates lost to a concurrent writer",
	})

	ReturnsRequestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "returns_requested_total",
		Help: "Total number of return requests filed",
	})

	ReturnsDecidedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_decided_total",
		Help: "Total number of return decisions",
	}, []string{"decision"})

	ReturnsCompletedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "returns_completed_total",
		Help: "Total number of completed returns",
	}, []string{"outcome"})

	RefundAmountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "refund_amount_minor_units_total",
		Help: "Sum of refund amounts recorded, in minor currency units",
	})

	SubscriptionsMaterializedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_materialized_total",
		Help: "Total number of subscriptions created from orders",
	})

	MaterializeDuplicatesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "subscriptions_materialize_duplicates_total",
		Help: "Total number of materialize calls answered with an existing subscription",
	})

	InvoicesGeneratedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_generated_total",
		Help: "Total number of invoices rendered",
	})

	InvoicesEmailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoices_emailed_total",
		Help: "Total number of invoices handed to the delivery collaborator",
	})

	InvoiceDeliveryFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "invoice_delivery_failed_total",
		Help: "Total number of invoice delivery failures",
	})

	StoreUpdateLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "order_store_update_latency_seconds",
		Help:    "Latency of versioned order store updates",
		Buckets: prometheus.DefBuckets,
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
