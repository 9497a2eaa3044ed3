package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/vedran77/mentormatch/internal/apperr"
)

// Metrics tracks ledger activity. All methods are safe on a nil receiver so
// services can run without metrics in tests.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	CascadeRejected   prometheus.Counter
	TxRetries         prometheus.Counter
}

// New registers the ledger metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mentormatch_ledger_operations_total",
			Help: "Match request operations by operation and outcome",
		}, []string{"operation", "outcome"}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mentormatch_ledger_operation_duration_seconds",
			Help:    "Duration of match request operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
		CascadeRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "mentormatch_cascade_rejected_total",
			Help: "Pending requests rejected because a sibling was accepted",
		}),
		TxRetries: f.NewCounter(prometheus.CounterOpts{
			Name: "mentormatch_tx_retries_total",
			Help: "Transactions retried after a serialization conflict",
		}),
	}
}

// ObserveOperation records the outcome and duration of one ledger call.
// Call with time.Now() taken at the start of the operation.
func (m *Metrics) ObserveOperation(op string, err error, start time.Time) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(apperr.KindOf(err)))
	}
	m.Operations.WithLabelValues(op, outcome).Inc()
	m.OperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) AddCascadeRejected(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.CascadeRejected.Add(float64(n))
}

func (m *Metrics) IncTxRetry() {
	if m == nil {
		return
	}
	m.TxRetries.Inc()
}
