package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RegistrationsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrations_created_total",
		Help: "Total number of registrations created or reactivated",
	})

	RegistrationsCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "registrations_cancelled_total",
		Help: "Total number of cancelled registrations",
	})

	RegistrationsRejectedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "registrations_rejected_total",
		Help: "Total number of refused registrations and orders",
	}, []string{"reason"})

	OrdersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "merch_orders_created_total",
		Help: "Total number of merchandise orders created",
	}, []string{"flow"})

	OrdersApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merch_orders_approved_total",
		Help: "Total number of merchandise orders approved",
	})

	OrdersPaymentRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "merch_orders_payment_rejected_total",
		Help: "Total number of payment proofs rejected",
	})

	StockDecrementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stock_decrement_latency_seconds",
		Help:    "Latency of conditional stock decrements",
		Buckets: prometheus.DefBuckets,
	})

	TicketsIssuedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tickets_issued_total",
		Help: "Total number of tickets issued",
	})

	ScansTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ticket_scans_total",
		Help: "Total number of ticket scans by result",
	}, []string{"result"})

	OverridesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "attendance_overrides_total",
		Help: "Total number of manual attendance overrides",
	}, []string{"action"})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of notifications delivered",
	}, []string{"channel", "kind"})

	NotificationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification deliveries that failed",
	}, []string{"channel"})

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
