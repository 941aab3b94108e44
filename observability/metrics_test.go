package observability

import (
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core/events"
)

func TestLendingMetricsFollowEvents(t *testing.T) {
	m := NewLendingMetrics(prometheus.NewRegistry())

	m.Emit(events.InterestAccrued{
		Elapsed:    86400,
		Interest:   big.NewInt(3000),
		ToReserve:  big.NewInt(300),
		GlobalDebt: big.NewInt(13000),
	})
	m.Emit(events.PositionKilled{
		PositionID: 1,
		Bounty:     big.NewInt(25),
		ReserveCut: big.NewInt(2),
		BadDebt:    big.NewInt(0),
	})
	m.Emit(events.VaultReinvested{Vault: common.HexToAddress("0x60"), Bounty: big.NewInt(7)})
	m.Emit(events.ReserveWithdrawn{Amount: big.NewInt(100)})

	if got := testutil.ToFloat64(m.interest); got != 3000 {
		t.Fatalf("unexpected interest: got %v want 3000", got)
	}
	if got := testutil.ToFloat64(m.globalDebt); got != 13000 {
		t.Fatalf("unexpected global debt: got %v want 13000", got)
	}
	if got := testutil.ToFloat64(m.reserve.WithLabelValues("interest")); got != 300 {
		t.Fatalf("unexpected reserve inflow: got %v want 300", got)
	}
	if got := testutil.ToFloat64(m.reserve.WithLabelValues("withdrawn")); got != 100 {
		t.Fatalf("unexpected reserve outflow: got %v want 100", got)
	}
	if got := testutil.ToFloat64(m.kills); got != 1 {
		t.Fatalf("unexpected kills: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.bounties.WithLabelValues("reinvest")); got != 7 {
		t.Fatalf("unexpected reinvest bounty: got %v want 7", got)
	}
	if got := testutil.ToFloat64(m.operations.WithLabelValues(events.TypePositionKilled)); got != 1 {
		t.Fatalf("unexpected kill operations: got %v want 1", got)
	}
}

func TestObserveTxAndKeeper(t *testing.T) {
	m := NewLendingMetrics(prometheus.NewRegistry())
	m.ObserveTx("work", time.Millisecond, nil)
	m.ObserveTx("work", time.Millisecond, errors.New("bad work factor"))
	m.ObserveTx("work", time.Millisecond, nil)
	m.ObserveKeeper("kill", nil)

	if got := testutil.ToFloat64(m.txs.WithLabelValues("work", "ok")); got != 2 {
		t.Fatalf("unexpected ok count: got %v want 2", got)
	}
	if got := testutil.ToFloat64(m.txs.WithLabelValues("work", "error")); got != 1 {
		t.Fatalf("unexpected error count: got %v want 1", got)
	}
	if got := testutil.ToFloat64(m.keeper.WithLabelValues("kill", "ok")); got != 1 {
		t.Fatalf("unexpected keeper count: got %v want 1", got)
	}

	var nilMetrics *LendingMetrics
	nilMetrics.ObserveTx("noop", 0, nil)
	nilMetrics.Emit(events.ReserveReduced{Amount: big.NewInt(1)})
}
