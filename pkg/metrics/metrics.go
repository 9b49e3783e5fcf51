// Package metrics declares the prometheus instruments of the exchange and
// gateway services.
package metrics

import (
	"bookswap/pkg/apperr"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Exchange struct {
	TransactionsCreated *prometheus.CounterVec
	Transitions         *prometheus.CounterVec
	Ratings             *prometheus.CounterVec
	TrustScore          prometheus.Histogram
	AuditDrift          *prometheus.CounterVec
	RepairsApplied      *prometheus.CounterVec
	RepairQueueSize     prometheus.Gauge
}

func NewExchange(reg prometheus.Registerer) *Exchange {
	f := promauto.With(reg)
	return &Exchange{
		TransactionsCreated: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_exchange_transactions_created_total",
			Help: "Borrow requests by outcome",
		}, []string{"result"}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_exchange_transitions_total",
			Help: "Transaction status changes by target status and outcome",
		}, []string{"target", "result"}),
		Ratings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_exchange_ratings_total",
			Help: "Rating submissions by outcome",
		}, []string{"result"}),
		TrustScore: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "bookswap_exchange_trust_score",
			Help:    "Trust scores served",
			Buckets: prometheus.LinearBuckets(0, 10, 11),
		}),
		AuditDrift: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_exchange_audit_drift_total",
			Help: "Book status drift found by the audit by kind",
		}, []string{"kind"}),
		RepairsApplied: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_exchange_repairs_total",
			Help: "Book status repairs by outcome",
		}, []string{"result"}),
		RepairQueueSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "bookswap_exchange_repair_queue_size",
			Help: "Repairs waiting in the queue",
		}),
	}
}

type Gateway struct {
	UpstreamRequests *prometheus.CounterVec
	BreakerState     prometheus.Gauge
}

func NewGateway(reg prometheus.Registerer) *Gateway {
	f := promauto.With(reg)
	return &Gateway{
		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "bookswap_gateway_upstream_requests_total",
			Help: "Requests forwarded to the exchange service by outcome",
		}, []string{"result"}),
		BreakerState: f.NewGauge(prometheus.GaugeOpts{
			Name: "bookswap_gateway_breaker_state",
			Help: "Exchange circuit breaker state (0 closed, 1 open, 2 half-open)",
		}),
	}
}

// Result turns an error into a low cardinality label value.
func Result(err error) string {
	if err == nil {
		return "ok"
	}
	return string(apperr.KindOf(err))
}
