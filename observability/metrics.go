package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LendingMetrics tracks protocol transactions and the lending events they emit.
type LendingMetrics struct {
	txs        *prometheus.CounterVec
	txLatency  *prometheus.HistogramVec
	operations *prometheus.CounterVec
	interest   prometheus.Counter
	globalDebt prometheus.Gauge
	reserve    *prometheus.CounterVec
	kills      prometheus.Counter
	badDebt    prometheus.Counter
	bounties   *prometheus.CounterVec
	reinvests  *prometheus.CounterVec
	keeper     *prometheus.CounterVec
}

var (
	lendingOnce     sync.Once
	lendingRegistry *LendingMetrics
)

// Lending returns the process-wide metrics registered with the default
// prometheus registerer.
func Lending() *LendingMetrics {
	lendingOnce.Do(func() {
		lendingRegistry = NewLendingMetrics(prometheus.DefaultRegisterer)
	})
	return lendingRegistry
}

// NewLendingMetrics builds a metric set registered with reg. A nil reg
// leaves the collectors unregistered.
func NewLendingMetrics(reg prometheus.Registerer) *LendingMetrics {
	m := &LendingMetrics{
		txs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "protocol",
			Name:      "transactions_total",
			Help:      "Protocol transactions segmented by method and outcome.",
		}, []string{"method", "outcome"}),
		txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "alpha",
			Subsystem: "protocol",
			Name:      "transaction_duration_seconds",
			Help:      "Latency of protocol transactions including commit.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "operations_total",
			Help:      "Committed lending operations by type.",
		}, []string{"type"}),
		interest: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "interest_accrued_wei_total",
			Help:      "Interest added to the global debt, in base units.",
		}),
		globalDebt: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "global_debt_wei",
			Help:      "Global debt value after the last accrual, in base units.",
		}),
		reserve: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "reserve_flow_wei_total",
			Help:      "Reserve inflows and outflows by source, in base units.",
		}, []string{"flow"}),
		kills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "kills_total",
			Help:      "Positions liquidated.",
		}),
		badDebt: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "bad_debt_wei_total",
			Help:      "Debt written off by liquidations, in base units.",
		}),
		bounties: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "lending",
			Name:      "bounties_wei_total",
			Help:      "Bounties paid to liquidators and reinvestors, in units of the paid asset.",
		}, []string{"kind"}),
		reinvests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "vault",
			Name:      "reinvests_total",
			Help:      "Reward compounding runs by vault.",
		}, []string{"vault"}),
		keeper: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "alpha",
			Subsystem: "keeper",
			Name:      "actions_total",
			Help:      "Keeper actions segmented by action and outcome.",
		}, []string{"action", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.txs,
			m.txLatency,
			m.operations,
			m.interest,
			m.globalDebt,
			m.reserve,
			m.kills,
			m.badDebt,
			m.bounties,
			m.reinvests,
			m.keeper,
		)
	}
	return m
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// ObserveTx records the outcome and latency of one protocol transaction.
func (m *LendingMetrics) ObserveTx(method string, latency time.Duration, err error) {
	if m == nil {
		return
	}
	m.txs.WithLabelValues(method, outcome(err)).Inc()
	m.txLatency.WithLabelValues(method).Observe(latency.Seconds())
}

// ObserveKeeper records one keeper action.
func (m *LendingMetrics) ObserveKeeper(action string, err error) {
	if m == nil {
		return
	}
	m.keeper.WithLabelValues(action, outcome(err)).Inc()
}
