package observability

import (
	"math/big"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
)

var _ events.Emitter = (*LendingMetrics)(nil)

// Emit implements events.Emitter so the metrics can sit behind the protocol's
// event sink and only see committed events.
func (m *LendingMetrics) Emit(e events.Event) {
	if m == nil || e == nil {
		return
	}
	m.operations.WithLabelValues(e.EventType()).Inc()
	switch ev := e.(type) {
	case events.InterestAccrued:
		m.interest.Add(wei(ev.Interest))
		m.reserve.WithLabelValues("interest").Add(wei(ev.ToReserve))
		m.globalDebt.Set(wei(ev.GlobalDebt))
	case events.PositionKilled:
		m.kills.Inc()
		m.badDebt.Add(wei(ev.BadDebt))
		m.bounties.WithLabelValues("kill").Add(wei(ev.Bounty))
		m.reserve.WithLabelValues("kill").Add(wei(ev.ReserveCut))
	case events.ReserveWithdrawn:
		m.reserve.WithLabelValues("withdrawn").Add(wei(ev.Amount))
	case events.ReserveReduced:
		m.reserve.WithLabelValues("reduced").Add(wei(ev.Amount))
	case events.VaultReinvested:
		m.reinvests.WithLabelValues(ev.Vault.Hex()).Inc()
		m.bounties.WithLabelValues("reinvest").Add(wei(ev.Bounty))
	}
}

// wei converts a base-unit amount for a float metric. Precision loss above
// 2^53 is acceptable for monitoring.
func wei(v *big.Int) float64 {
	if v == nil || v.Sign() <= 0 {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	return f
}
