package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stay_requests_total",
			Help: "Total number of requests",
		},
		[]string{"route", "code", "method"},
	)

	QuotesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stay_quotes_total",
			Help: "Total reservation quotes produced",
		},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stay_orders_created_total",
			Help: "Total gateway orders created",
		},
	)

	VerificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stay_payment_verifications_total",
			Help: "Payment verification outcomes",
		},
		[]string{"result"},
	)

	BookingConflictsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stay_booking_conflicts_total",
			Help: "Availability conflicts detected after payment",
		},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stay_db_tx_seconds",
			Help:    "Duration of ledger transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "stay_outbox_lag_seconds",
			Help: "Lag of outbox publishing",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "stay_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
