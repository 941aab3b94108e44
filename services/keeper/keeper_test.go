package keeper

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/core"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/native/lending"
	"github.com/AlphaFinanceLab/alpha-homora-v1-eth-contract/observability"
)

type fakeProtocol struct {
	accrueErr  error
	positions  []*core.PositionView
	killErr    map[uint64]error
	killed     []uint64
	rewards    map[common.Address]*big.Int
	reinvested []common.Address
	accrued    int
}

func (f *fakeProtocol) Accrue(context.Context) error {
	f.accrued++
	return f.accrueErr
}

func (f *fakeProtocol) Positions() ([]*core.PositionView, error) { return f.positions, nil }

func (f *fakeProtocol) Kill(_ context.Context, _ common.Address, id uint64) (*lending.KillResult, error) {
	if err := f.killErr[id]; err != nil {
		return nil, err
	}
	f.killed = append(f.killed, id)
	return &lending.KillResult{Debt: big.NewInt(1), Bounty: big.NewInt(0), BadDebt: big.NewInt(0)}, nil
}

func (f *fakeProtocol) Vaults() []common.Address {
	return []common.Address{common.HexToAddress("0x60"), common.HexToAddress("0x61")}
}

func (f *fakeProtocol) PendingReward(vault common.Address) (*big.Int, error) {
	if r, ok := f.rewards[vault]; ok {
		return r, nil
	}
	return big.NewInt(0), nil
}

func (f *fakeProtocol) Reinvest(_ context.Context, _, vault common.Address) (*big.Int, error) {
	f.reinvested = append(f.reinvested, vault)
	return big.NewInt(1), nil
}

func position(id uint64, killable bool) *core.PositionView {
	return &core.PositionView{Position: &lending.Position{ID: id}, Killable: killable}
}

func newTestKeeper(t *testing.T, proto Protocol, cfg Config) *Keeper {
	t.Helper()
	cfg.ActionsPerSecond = 1000
	cfg.Burst = 10
	k, err := New(proto, common.HexToAddress("0xe0"), cfg, nil)
	require.NoError(t, err)
	k.SetMetrics(observability.NewLendingMetrics(prometheus.NewRegistry()))
	return k
}

func TestTickKillsOnlyKillablePositions(t *testing.T) {
	proto := &fakeProtocol{
		positions: []*core.PositionView{position(1, false), position(2, true), position(3, true)},
		killErr:   map[uint64]error{3: lending.ErrCannotLiquidate},
	}
	report, err := newTestKeeper(t, proto, Config{}).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, proto.accrued)
	require.Equal(t, []uint64{2}, report.Killed)
	require.Equal(t, 1, report.Failures)
	require.Empty(t, proto.reinvested)
}

func TestTickReinvestsVaultsAboveThreshold(t *testing.T) {
	rich, poor := common.HexToAddress("0x60"), common.HexToAddress("0x61")
	proto := &fakeProtocol{rewards: map[common.Address]*big.Int{
		rich: big.NewInt(500),
		poor: big.NewInt(5),
	}}
	report, err := newTestKeeper(t, proto, Config{Reinvest: true, MinReward: big.NewInt(100)}).Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, []common.Address{rich}, report.Reinvested)
	require.Equal(t, []common.Address{rich}, proto.reinvested)
}

func TestTickStopsOnAccrueFailure(t *testing.T) {
	proto := &fakeProtocol{
		accrueErr: errors.New("module paused"),
		positions: []*core.PositionView{position(1, true)},
	}
	_, err := newTestKeeper(t, proto, Config{}).Tick(context.Background())
	require.Error(t, err)
	require.Empty(t, proto.killed)
}

func TestRunStopsWithContext(t *testing.T) {
	proto := &fakeProtocol{}
	k := newTestKeeper(t, proto, Config{Interval: time.Millisecond})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := k.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, proto.accrued, 1)
}
