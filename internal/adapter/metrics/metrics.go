package metrics

import (
	"errors"
	"time"

	"github.com/niksmo/club-stock/internal/core/domain"
	"github.com/niksmo/club-stock/internal/core/port"
	"github.com/prometheus/client_golang/prometheus"
)

var _ port.LedgerMetrics = (*LedgerMetrics)(nil)

const (
	namespace = "ledger"

	resultOK       = "ok"
	resultRejected = "rejected"
	resultNotFound = "not_found"
	resultError    = "error"
)

// LedgerMetrics collects outcomes of inventory operations.
type LedgerMetrics struct {
	operations *prometheus.CounterVec
	skipped    *prometheus.CounterVec
	consumed   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewLedgerMetrics creates the collectors and registers them in reg.
// It panics if any of them is already registered.
func NewLedgerMetrics(reg prometheus.Registerer) LedgerMetrics {
	m := LedgerMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Inventory operations by outcome.",
		}, []string{"op", "result"}),

		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skipped_lines_total",
			Help:      "Order lines skipped during stock reduction.",
		}, []string{"reason"}),

		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "units_consumed_total",
			Help:      "Units taken from stock by orders per location.",
		}, []string{"location"}),

		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "update_duration_seconds",
			Help:      "Duration of inventory operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"op"}),
	}

	reg.MustRegister(m.operations, m.skipped, m.consumed, m.duration)
	return m
}

func (m LedgerMetrics) ObserveOperation(
	op string, err error, elapsed time.Duration,
) {
	m.operations.WithLabelValues(op, result(err)).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func (m LedgerMetrics) SkippedLine(reason string) {
	m.skipped.WithLabelValues(reason).Inc()
}

func (m LedgerMetrics) UnitsConsumed(res domain.ConsumptionResult) {
	if res.Online > 0 {
		m.consumed.WithLabelValues(domain.LocationOnline.String()).
			Add(float64(res.Online))
	}
	if res.Club > 0 {
		m.consumed.WithLabelValues(domain.LocationClub.String()).
			Add(float64(res.Club))
	}
}

func result(err error) string {
	switch {
	case err == nil:
		return resultOK
	case domain.IsRejection(err):
		return resultRejected
	case errors.Is(err, domain.ErrProductNotFound):
		return resultNotFound
	default:
		return resultError
	}
}
